package subscribers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/svdberg/atwood-monitor/app/database"
)

var ErrInvalidEmail = errors.New("invalid email")

// Confirmer asks a new subscriber to confirm their address.
type Confirmer interface {
	RequestConfirmation(ctx context.Context, email string) error
}

type EmailRegistry struct {
	repo      database.EmailRepository
	confirmer Confirmer
}

func NewEmailRegistry(repo database.EmailRepository, confirmer Confirmer) *EmailRegistry {
	return &EmailRegistry{repo: repo, confirmer: confirmer}
}

// Register stores the address and requests confirmation. Anything without
// an @ is rejected before touching the store.
func (r *EmailRegistry) Register(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}

	if err := r.repo.UpsertEmail(ctx, email); err != nil {
		return err
	}

	if err := r.confirmer.RequestConfirmation(ctx, email); err != nil {
		return fmt.Errorf("failed to request confirmation: %w", err)
	}

	slog.Info("Email subscriber registered", "email", email)
	return nil
}

func (r *EmailRegistry) Remove(ctx context.Context, email string) error {
	if err := r.repo.DeleteEmail(ctx, strings.TrimSpace(email)); err != nil {
		return err
	}
	slog.Info("Email subscriber removed", "email", email)
	return nil
}
