package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Push gateway error codes that mark a token as permanently dead. Tokens
// reported with one of these are removed from the registry.
const (
	errCodeTokenNotRegistered = "registration-token-not-registered"
	errCodeTokenInvalid       = "invalid-registration-token"
)

// SendResult reports the gateway outcome for one device token.
type SendResult struct {
	Token     string
	ErrorCode string
}

// Invalid reports whether the token should be pruned from the registry.
func (r SendResult) Invalid() bool {
	return r.ErrorCode == errCodeTokenNotRegistered || r.ErrorCode == errCodeTokenInvalid
}

// PushClient delivers one message to a batch of device tokens.
type PushClient interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]SendResult, error)
}

// HTTPPushClient talks to an FCM-style HTTP push gateway.
type HTTPPushClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPPushClient constructs a gateway client for the given endpoint.
func NewHTTPPushClient(endpoint, apiKey string) *HTTPPushClient {
	return &HTTPPushClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type multicastRequest struct {
	Tokens       []string          `json:"registration_ids"`
	Notification pushNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type multicastResponse struct {
	Results []struct {
		Error string `json:"error,omitempty"`
	} `json:"results"`
}

// SendMulticast posts the message to the gateway and maps per-token outcomes
// back to the input order.
func (c *HTTPPushClient) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]SendResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(multicastRequest{
		Tokens:       tokens,
		Notification: pushNotification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		return nil, fmt.Errorf("notify: marshal multicast request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("notify: build multicast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "key="+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notify: send multicast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notify: push gateway returned status %d", resp.StatusCode)
	}

	var decoded multicastResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("notify: decode multicast response: %w", err)
	}

	results := make([]SendResult, len(tokens))
	for i, token := range tokens {
		results[i] = SendResult{Token: token}
		if i < len(decoded.Results) {
			results[i].ErrorCode = decoded.Results[i].Error
		}
	}
	return results, nil
}
