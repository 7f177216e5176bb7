package wisefood

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/wisefood/wisefood_sdk_go/internal/sandbox"
	"github.com/wisefood/wisefood_sdk_go/pkg/auth"
)

const (
	envMode         = "WISEFOOD_MODE"
	envBaseURL      = "WISEFOOD_BASE_URL"
	envAPIPrefix    = "WISEFOOD_API_PREFIX"
	envUsername     = "WISEFOOD_USERNAME"
	envPassword     = "WISEFOOD_PASSWORD"
	envClientID     = "WISEFOOD_CLIENT_ID"
	envClientSecret = "WISEFOOD_CLIENT_SECRET"
	envTimeout      = "WISEFOOD_TIMEOUT"
	envSandboxSeed  = "WISEFOOD_SANDBOX_SEED"

	modeAuto = "auto"
	modeHTTP = "http"
	modeMock = "mock"

	sandboxURL = "http://sandbox.invalid"
)

// ConfigFromEnv builds a Config from the WISEFOOD_* variables.
func ConfigFromEnv() Config {
	return Config{
		BaseURL:   env(envBaseURL),
		APIPrefix: env(envAPIPrefix),
		Timeout:   env(envTimeout),
		Credentials: auth.Credentials{
			Username:     env(envUsername),
			Password:     env(envPassword),
			ClientID:     env(envClientID),
			ClientSecret: env(envClientSecret),
		},
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// NewFromEnv initialises a Client from the environment. It returns the
// resolved mode ("http" or "mock"). An unset WISEFOOD_MODE means "auto".
func NewFromEnv(opts ...Option) (*Client, string, error) {
	mode := strings.ToLower(env(envMode))
	if mode == "" {
		mode = modeAuto
	}
	cfg := ConfigFromEnv()

	switch mode {
	case modeAuto:
		if cfg.BaseURL != "" {
			return newHTTP(cfg, opts)
		}
		return newMock(cfg.Credentials, opts)
	case modeHTTP:
		if cfg.BaseURL == "" {
			return nil, "", fmt.Errorf("wisefood: HTTP mode requires %s", envBaseURL)
		}
		return newHTTP(cfg, opts)
	case modeMock:
		return newMock(cfg.Credentials, opts)
	default:
		return nil, "", fmt.Errorf("wisefood: unsupported %s value %q", envMode, mode)
	}
}

func newHTTP(cfg Config, opts []Option) (*Client, string, error) {
	c, err := New(cfg, opts...)
	if err != nil {
		return nil, "", err
	}
	return c, modeHTTP, nil
}

func newMock(creds auth.Credentials, opts []Option) (*Client, string, error) {
	if creds == (auth.Credentials{}) {
		creds = auth.Credentials{Username: sandbox.DemoUsername, Password: sandbox.DemoPassword}
	}
	c, err := NewMock(env(envSandboxSeed), creds, opts...)
	if err != nil {
		return nil, "", err
	}
	return c, modeMock, nil
}

// NewMock returns a Client served by an in-process sandbox. An empty
// seedPath loads the built-in demo data, whose user account is demo/demo.
func NewMock(seedPath string, creds auth.Credentials, opts ...Option) (*Client, error) {
	seed := sandbox.DefaultSeed()
	if seedPath != "" {
		var err error
		if seed, err = sandbox.LoadSeed(seedPath); err != nil {
			return nil, fmt.Errorf("wisefood: load sandbox seed: %w", err)
		}
	}
	store := sandbox.NewStore()
	store.Apply(seed)

	rt := handlerTransport{h: sandbox.New(store).Handler()}
	opts = append(opts, WithHTTPClient(&http.Client{Transport: rt}))
	return New(Config{BaseURL: sandboxURL, Credentials: creds}, opts...)
}

// handlerTransport answers requests from an http.Handler without a network
// round trip.
type handlerTransport struct {
	h http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	if req.Body != nil {
		defer req.Body.Close()
	}
	rec := httptest.NewRecorder()
	t.h.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}
