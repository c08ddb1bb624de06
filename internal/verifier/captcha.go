package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// ErrNoToken is returned by CaptchaWidget.Verify when no client token has
// been supplied for the current attempt.
var ErrNoToken = errors.New("verifier: no captcha token supplied")

// CaptchaClient verifies challenge tokens against a reCAPTCHA-style
// siteverify endpoint.
type CaptchaClient struct {
	Secret     string
	VerifyURL  string
	HTTPClient *http.Client
}

// NewCaptchaClient returns a client for the given secret and optional verify URL.
func NewCaptchaClient(secret, verifyURL string) *CaptchaClient {
	if verifyURL == "" {
		verifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	return &CaptchaClient{
		Secret:     secret,
		VerifyURL:  verifyURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Check posts the token to the siteverify endpoint and returns nil when the
// endpoint reports success. Does not log the token.
func (c *CaptchaClient) Check(ctx context.Context, token string) error {
	if c.Secret == "" {
		return fmt.Errorf("verifier: captcha secret not configured")
	}
	form := url.Values{}
	form.Set("secret", c.Secret)
	form.Set("response", token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verifier: request failed status=%d", resp.StatusCode)
	}
	var out struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("verifier: challenge rejected: %s", strings.Join(out.ErrorCodes, ","))
	}
	return nil
}

// CaptchaWidget adapts a CaptchaClient to the Widget interface. The client
// token for the current attempt comes from source; each Verify consumes one
// token, so every attempt needs a fresh one.
type CaptchaWidget struct {
	client *CaptchaClient
	source func() string
}

// NewCaptchaWidget returns a widget backed by client. source yields the
// pending client token for the attempt, or "" when none was supplied.
func NewCaptchaWidget(client *CaptchaClient, source func() string) *CaptchaWidget {
	return &CaptchaWidget{client: client, source: source}
}

// Verify checks the current attempt's token.
func (w *CaptchaWidget) Verify(ctx context.Context) error {
	token := w.source()
	if token == "" {
		return ErrNoToken
	}
	return w.client.Check(ctx, token)
}

// Close is a no-op; the remote endpoint holds no per-widget state.
func (w *CaptchaWidget) Close() {}

// PassthroughWidget always verifies. Used when no captcha secret is
// configured, which the config layer only permits outside production.
type PassthroughWidget struct{}

func (PassthroughWidget) Verify(context.Context) error { return nil }
func (PassthroughWidget) Close()                       {}
