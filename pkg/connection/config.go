package connection

import (
	"fmt"
	"net/url"
	"time"

	"github.com/plycad/plycad.go/internal/codec"
	"github.com/plycad/plycad.go/pkg/logger"
)

// DefaultTimeout is the time to wait for an RPC response after the request
// was written successfully.
const DefaultTimeout = 30 * time.Second

// RequestIDLength is the length of client-generated request IDs.
const RequestIDLength = 16

// Config collects everything needed to establish a connection to the
// modeling server.
type Config struct {
	URL         url.URL
	BaseURL     string
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	Logger      logger.Logger
	Timeout     time.Duration
}

// NewConfig creates a Config for the modeling server endpoint given by u,
// such as "ws://localhost:52345". The CBOR codec and the default logger are
// preconfigured.
func NewConfig(u *url.URL) *Config {
	c := codec.New()
	return &Config{
		URL:         *u,
		BaseURL:     fmt.Sprintf("%s://%s", u.Scheme, u.Host),
		Marshaler:   c,
		Unmarshaler: c,
		Logger:      logger.Default(),
		Timeout:     DefaultTimeout,
	}
}
