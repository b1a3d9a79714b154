package client

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config is the connection setup shared by every builder a Database creates.
type Config struct {
	Endpoint string        `yaml:"endpoint"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("database endpoint is required")
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid database endpoint: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("database endpoint must be http or https, got %q", u.Scheme)
	}

	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}

	return nil
}
