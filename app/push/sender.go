package push

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Sender delivers one encrypted payload to one subscription.
type Sender interface {
	Send(ctx context.Context, target Target, payload []byte) Result
}

var _ Sender = (*WebPushSender)(nil)

// WebPushSender signs requests with a VAPID key pair and encrypts payloads
// per RFC 8291. The library signs the token for the endpoint origin, which is
// target.Audience.
type WebPushSender struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	httpClient *http.Client
}

func NewWebPushSender(publicKey, privateKey, subject string, ttl int, httpClient *http.Client) *WebPushSender {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WebPushSender{
		publicKey:  publicKey,
		privateKey: privateKey,
		// webpush-go adds the mailto: scheme itself.
		subscriber: strings.TrimPrefix(subject, "mailto:"),
		ttl:        ttl,
		httpClient: httpClient,
	}
}

func (s *WebPushSender) Send(ctx context.Context, target Target, payload []byte) Result {
	subscription := &webpush.Subscription{
		Endpoint: target.Endpoint,
		Keys: webpush.Keys{
			Auth:   target.Keys.Auth,
			P256dh: target.Keys.P256dh,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, subscription, &webpush.Options{
		HTTPClient:      s.httpClient,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return Failed(0, err.Error())
	}
	defer resp.Body.Close()

	slog.Debug("Push service responded", "subscription_id", target.ID, "audience", target.Audience, "status", resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Delivered()
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = resp.Status
	}
	return Failed(resp.StatusCode, message)
}

// GenerateVAPIDKeys returns a fresh base64url-encoded key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	return publicKey, privateKey, err
}
