package wisefood

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/wisefood/wisefood_sdk_go/pkg/auth"
)

const (
	// DefaultAPIPrefix is prepended to every resource path.
	DefaultAPIPrefix = "/api/v1"
	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 30 * time.Second
)

// Config describes how to reach and authenticate against the API.
//
//	base_url   = "https://api.wisefood.example"
//	api_prefix = "/api/v1"
//	timeout    = "10s"
//
//	credentials {
//	  username = "maria"
//	  password = "..."
//	}
type Config struct {
	BaseURL     string           `hcl:"base_url"`
	APIPrefix   string           `hcl:"api_prefix,optional"`
	Timeout     string           `hcl:"timeout,optional"`
	Credentials auth.Credentials `hcl:"credentials,block"`
}

// LoadConfig reads an HCL (or HCL-flavoured JSON) configuration file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("wisefood: load config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.APIPrefix) == "" {
		c.APIPrefix = DefaultAPIPrefix
	}
	if strings.TrimSpace(c.Timeout) == "" {
		c.Timeout = DefaultTimeout.String()
	}
	return c
}

// Validate checks the base URL, the timeout and the credentials.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.By(positiveDuration)),
	); err != nil {
		return fmt.Errorf("wisefood: invalid config: %w", err)
	}
	if err := c.Credentials.Validate(); err != nil {
		return fmt.Errorf("wisefood: invalid config: %w", err)
	}
	return nil
}

func positiveDuration(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

// endpoint joins the base URL and the API prefix.
func (c Config) endpoint() string {
	prefix := strings.Trim(c.APIPrefix, "/")
	base := strings.TrimRight(c.BaseURL, "/")
	if prefix == "" {
		return base + "/"
	}
	return base + "/" + prefix + "/"
}

func (c Config) timeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}
