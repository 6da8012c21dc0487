package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// defaultHTTPClient bounds every directory and mailer round-trip so a
// stuck collaborator cannot hold a message in flight indefinitely.
var defaultHTTPClient = &http.Client{Timeout: 10 * time.Second}

// HTTPDirectory resolves email addresses against the user-directory
// service: GET {base}/users/{id}/email returning {"email": "..."}.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory constructs an HTTPDirectory. A nil client falls back to
// a shared client with a 10s timeout.
func NewHTTPDirectory(baseURL string, client *http.Client) *HTTPDirectory {
	if client == nil {
		client = defaultHTTPClient
	}
	return &HTTPDirectory{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// ResolveEmail implements Directory. A 404 or an empty address maps to
// ErrUserNotFound.
func (d *HTTPDirectory) ResolveEmail(ctx context.Context, userID string) (string, error) {
	endpoint := fmt.Sprintf("%s/users/%s/email", d.baseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build directory request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("directory lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("directory lookup: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Email string `json:"email"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read directory response: %w", err)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decode directory response: %w", err)
	}
	if strings.TrimSpace(payload.Email) == "" {
		return "", ErrUserNotFound
	}

	return payload.Email, nil
}

// HTTPMailer delivers notifications through the mail-gateway service:
// POST {base}/send with a JSON body.
type HTTPMailer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPMailer constructs an HTTPMailer. A nil client falls back to a
// shared client with a 10s timeout.
func NewHTTPMailer(baseURL string, client *http.Client) *HTTPMailer {
	if client == nil {
		client = defaultHTTPClient
	}
	return &HTTPMailer{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Send implements Mailer.
func (m *HTTPMailer) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      to,
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return fmt.Errorf("encode mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send mail: unexpected status %d", resp.StatusCode)
	}
	return nil
}
