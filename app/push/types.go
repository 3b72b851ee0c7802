package push

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Keys struct {
	Auth   string `json:"auth"`
	P256dh string `json:"p256dh"`
}

// Target is a stored subscription decoded into something deliverable.
// Audience is the endpoint origin the VAPID token is issued for.
type Target struct {
	ID       string `json:"-"`
	Endpoint string `json:"endpoint"`
	Keys     Keys   `json:"keys"`
	Audience string `json:"-"`
}

func ParseTarget(id string, payload []byte) (Target, error) {
	var target Target
	if err := json.Unmarshal(payload, &target); err != nil {
		return Target{}, fmt.Errorf("failed to decode subscription %s: %w", id, err)
	}
	target.ID = id

	if strings.TrimSpace(target.Endpoint) == "" {
		return Target{}, fmt.Errorf("subscription %s has no endpoint", id)
	}

	aud, err := Audience(target.Endpoint)
	if err != nil {
		return Target{}, err
	}
	target.Audience = aud

	return target, nil
}

// Audience returns the origin (scheme://host) of a push endpoint, used as
// the aud claim of the VAPID token.
func Audience(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no origin", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Message is the JSON document the service worker receives.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Result is the outcome of one delivery attempt. StatusCode is zero when the
// push service was never reached.
type Result struct {
	Delivered  bool
	StatusCode int
	Message    string
}

func Delivered() Result {
	return Result{Delivered: true}
}

func Failed(statusCode int, message string) Result {
	return Result{StatusCode: statusCode, Message: message}
}

// Gone reports whether the push service says the subscription no longer
// exists.
func (r Result) Gone() bool {
	return !r.Delivered && (r.StatusCode == http.StatusNotFound || r.StatusCode == http.StatusGone)
}
