package subscribers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/svdberg/atwood-monitor/app/database"
)

const SubscriptionTTL = 30 * 24 * time.Hour

var (
	ErrInvalidSubscription = errors.New("subscription must be a JSON object")
	ErrMissingEndpoint     = errors.New("missing endpoint in subscription")
)

type PushRegistry struct {
	repo database.PushRepository
	now  func() time.Time
}

func NewPushRegistry(repo database.PushRepository) *PushRegistry {
	return &PushRegistry{repo: repo, now: time.Now}
}

// Register stores a browser subscription and returns its id. The payload is
// re-encoded compactly with sorted keys before hashing, so the same
// subscription always maps to the same id whatever its formatting.
func (r *PushRegistry) Register(ctx context.Context, payload []byte) (string, error) {
	canonical, err := canonicalSubscription(payload)
	if err != nil {
		return "", err
	}

	id := SubscriptionID(canonical)
	sub := database.PushSubscription{
		ID:        id,
		Payload:   canonical,
		ExpiresAt: r.now().Add(SubscriptionTTL).Truncate(time.Second),
	}

	if err := r.repo.UpsertSubscription(ctx, sub); err != nil {
		return "", err
	}

	slog.Info("Push subscription registered", "subscription_id", id, "expires_at", sub.ExpiresAt)
	return id, nil
}

func (r *PushRegistry) Remove(ctx context.Context, id string) error {
	if err := r.repo.DeleteSubscription(ctx, id); err != nil {
		return err
	}
	slog.Info("Push subscription removed", "subscription_id", id)
	return nil
}

// SubscriptionID is the hex SHA-256 of the canonical subscription JSON.
func SubscriptionID(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

func canonicalSubscription(payload []byte) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var body map[string]any
	if err := decoder.Decode(&body); err != nil || body == nil {
		return nil, ErrInvalidSubscription
	}

	endpoint, _ := body["endpoint"].(string)
	if strings.TrimSpace(endpoint) == "" {
		return nil, ErrMissingEndpoint
	}

	canonical, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode subscription: %w", err)
	}
	return canonical, nil
}
