// Package auth obtains and refreshes bearer tokens for the WiseFood API.
//
// Users authenticate with a username and password against system/login;
// machine clients use a client id and secret against system/mtm. The
// resulting TokenSource plugs into golang.org/x/oauth2 so the token is cached
// and attached to every request by oauth2.Transport.
package auth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/oauth2"

	"github.com/wisefood/wisefood_sdk_go/internal/httpx"
	"github.com/wisefood/wisefood_sdk_go/internal/wfapi"
	"github.com/wisefood/wisefood_sdk_go/pkg/apierror"
)

const (
	loginPath = "system/login"
	mtmPath   = "system/mtm"

	defaultExpiresIn = 3600 * time.Second
)

var (
	// ErrBadCredentials reports a login call that did not return 200.
	ErrBadCredentials = errors.New("auth: authentication failed")
	// ErrMissingToken reports a 200 login response without a token field.
	ErrMissingToken = errors.New("auth: authentication response missing token field")
)

// Error describes a failed token exchange.
type Error struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 && e.Body != "" {
		return fmt.Sprintf("%v (%d): %s", e.Err, e.StatusCode, e.Body)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%v (%d)", e.Err, e.StatusCode)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable is always false; a failed login is not retried by the transport.
func (e *Error) Retryable() bool { return false }

// Credentials holds either user credentials or client credentials. The two
// kinds are mutually exclusive.
type Credentials struct {
	Username     string `hcl:"username,optional"`
	Password     string `hcl:"password,optional"`
	ClientID     string `hcl:"client_id,optional"`
	ClientSecret string `hcl:"client_secret,optional"`
}

// IsClient reports whether c holds machine-to-machine credentials.
func (c Credentials) IsClient() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Validate checks that exactly one complete credential pair is present.
func (c Credentials) Validate() error {
	hasUser := c.Username != "" || c.Password != ""
	hasClient := c.ClientID != "" || c.ClientSecret != ""
	if hasUser && hasClient {
		return errors.New("auth: provide either username/password or client_id/client_secret, not both")
	}
	if !hasUser && !hasClient {
		return errors.New("auth: must provide either username/password or client_id/client_secret")
	}
	if hasClient {
		return validation.ValidateStruct(&c,
			validation.Field(&c.ClientID, validation.Required),
			validation.Field(&c.ClientSecret, validation.Required),
		)
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

// SafetyMargin is subtracted from a token's lifetime: ten percent of it,
// clamped to between ten seconds and one minute.
func SafetyMargin(expiresIn time.Duration) time.Duration {
	margin := time.Duration(float64(expiresIn) * 0.1)
	return time.Duration(math.Min(float64(time.Minute), math.Max(float64(10*time.Second), float64(margin))))
}

// Option configures a TokenSource.
type Option func(*loginSource)

// WithClock overrides the time source used to compute expiry.
func WithClock(now func() time.Time) Option {
	return func(s *loginSource) {
		if now != nil {
			s.now = now
		}
	}
}

type loginSource struct {
	client *httpx.Client
	creds  Credentials
	now    func() time.Time
}

// NewTokenSource returns a caching oauth2.TokenSource that logs in through
// client whenever the current token has expired. client must not itself add
// authentication.
func NewTokenSource(client *httpx.Client, creds Credentials, opts ...Option) (oauth2.TokenSource, error) {
	if client == nil {
		return nil, errors.New("auth: client is nil")
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	src := &loginSource{client: client, creds: creds, now: time.Now}
	for _, opt := range opts {
		opt(src)
	}
	return oauth2.ReuseTokenSource(nil, src), nil
}

// Token performs the login exchange.
func (s *loginSource) Token() (*oauth2.Token, error) {
	path, payload := loginPath, map[string]string{
		"username": s.creds.Username,
		"password": s.creds.Password,
	}
	if s.creds.IsClient() {
		path, payload = mtmPath, map[string]string{
			"client_id":     s.creds.ClientID,
			"client_secret": s.creds.ClientSecret,
		}
	}

	body, contentType, err := httpx.WithJSONBody(payload)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(context.Background(), &httpx.Request{
		Method:       http.MethodPost,
		Path:         path,
		Header:       http.Header{"Content-Type": []string{contentType}},
		Body:         body,
		DisableRetry: true,
	})
	if err != nil {
		authErr := &Error{Err: ErrBadCredentials, Body: err.Error()}
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) {
			authErr.StatusCode = apiErr.StatusCode
			authErr.Body = apiErr.Detail
		}
		return nil, authErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(resp.Body), Err: ErrBadCredentials}
	}

	var result struct {
		Token       string   `json:"token"`
		AccessToken string   `json:"access_token"`
		JWT         string   `json:"jwt"`
		ExpiresIn   *float64 `json:"expires_in"`
	}
	if err := wfapi.DecodeResult(resp.Body, &result); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Err: ErrMissingToken}
	}
	token := firstNonEmpty(result.Token, result.AccessToken, result.JWT)
	if token == "" {
		return nil, &Error{StatusCode: resp.StatusCode, Err: ErrMissingToken}
	}

	expiresIn := defaultExpiresIn
	if result.ExpiresIn != nil {
		expiresIn = time.Duration(*result.ExpiresIn * float64(time.Second))
	}
	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      s.now().Add(expiresIn - SafetyMargin(expiresIn)),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
