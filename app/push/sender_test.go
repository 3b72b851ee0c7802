package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTarget(t *testing.T, endpoint string) Target {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	aud, err := Audience(endpoint)
	require.NoError(t, err)

	return Target{
		ID:       "sub-1",
		Endpoint: endpoint,
		Audience: aud,
		Keys: Keys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
}

func newTestSender(t *testing.T, client *http.Client) *WebPushSender {
	t.Helper()

	publicKey, privateKey, err := GenerateVAPIDKeys()
	require.NoError(t, err)

	return NewWebPushSender(publicKey, privateKey, "mailto:ops@example.com", 60, client)
}

func TestWebPushSenderDelivered(t *testing.T) {
	var (
		authorization string
		encoding      string
		body          []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		encoding = r.Header.Get("Content-Encoding")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sender := newTestSender(t, server.Client())
	target := newTestTarget(t, server.URL+"/push/abc")
	result := sender.Send(context.Background(), target, []byte(`{"title":"t"}`))

	assert.True(t, result.Delivered)
	require.True(t, strings.HasPrefix(authorization, "vapid t="), authorization)
	assert.Equal(t, target.Audience, tokenAudience(t, authorization))
	assert.Equal(t, "aes128gcm", encoding)
	assert.NotContains(t, string(body), `"title"`, "payload is encrypted")
}

// tokenAudience decodes the aud claim of a "vapid t=<jwt>, k=<key>" header.
func tokenAudience(t *testing.T, authorization string) string {
	t.Helper()

	token, _, _ := strings.Cut(strings.TrimPrefix(authorization, "vapid t="), ",")
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var claims struct {
		Aud string `json:"aud"`
	}
	require.NoError(t, json.Unmarshal(raw, &claims))
	return claims.Aud
}

func TestWebPushSenderStatusFailures(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone, http.StatusTooManyRequests} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "push subscription has unsubscribed or expired", status)
		}))

		result := newTestSender(t, server.Client()).Send(context.Background(), newTestTarget(t, server.URL), []byte("{}"))
		server.Close()

		assert.False(t, result.Delivered)
		assert.Equal(t, status, result.StatusCode)
		assert.Contains(t, result.Message, "unsubscribed")
		assert.Equal(t, status != http.StatusTooManyRequests, result.Gone())
	}
}

func TestWebPushSenderTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	result := newTestSender(t, nil).Send(context.Background(), newTestTarget(t, endpoint), []byte("{}"))

	assert.False(t, result.Delivered)
	assert.Equal(t, 0, result.StatusCode)
	assert.False(t, result.Gone())
}

func TestAudience(t *testing.T) {
	tests := []struct {
		endpoint string
		expected string
		wantErr  bool
	}{
		{"https://fcm.googleapis.com/fcm/send/abc123", "https://fcm.googleapis.com", false},
		{"https://updates.push.services.mozilla.com:443/wpush/v2/x", "https://updates.push.services.mozilla.com:443", false},
		{"/relative/path", "", true},
		{"", "", true},
		{"://bad", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			aud, err := Audience(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, aud)
		})
	}
}

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("id-1", []byte(`{"endpoint":"https://push.test/1","expirationTime":null,"keys":{"p256dh":"pk","auth":"ak"}}`))
	require.NoError(t, err)
	assert.Equal(t, Target{ID: "id-1", Endpoint: "https://push.test/1", Keys: Keys{P256dh: "pk", Auth: "ak"}, Audience: "https://push.test"}, target)

	_, err = ParseTarget("id-2", []byte(`{"keys":{}}`))
	assert.Error(t, err)

	_, err = ParseTarget("id-3", []byte(`[`))
	assert.Error(t, err)

	_, err = ParseTarget("id-4", []byte(`{"endpoint":"push.test/relative"}`))
	assert.Error(t, err)
}
