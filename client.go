package plycad

import (
	"context"
	"net/url"
	"time"

	"github.com/plycad/plycad.go/pkg/connection"
	"github.com/plycad/plycad.go/pkg/logger"
	"github.com/plycad/plycad.go/pkg/tree"
)

// Client is a connection to one modeling server process. Models opened
// through the same client share the RPC channel but are otherwise fully
// independent.
type Client struct {
	conn connection.Connection
	log  logger.Logger
}

// Option customizes a Client.
type Option func(cfg *connection.Config)

// WithLogger replaces the default logger.
func WithLogger(log logger.Logger) Option {
	return func(cfg *connection.Config) {
		cfg.Logger = log
	}
}

// WithTimeout sets the per-request response timeout. Zero disables it in
// favor of caller-supplied contexts.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *connection.Config) {
		cfg.Timeout = timeout
	}
}

// New creates an unconnected client for the server at rawURL, such as
// "ws://localhost:52345". Call Connect before use.
func New(rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	cfg := connection.NewConfig(u)
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		conn: connection.NewWebSocketConnection(cfg),
		log:  cfg.Logger,
	}, nil
}

// Connect creates a client and establishes the connection in one step.
func Connect(ctx context.Context, rawURL string, opts ...Option) (*Client, error) {
	client, err := New(rawURL, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.conn.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// OpenModel creates a fresh model instance from the file at path. Opening
// the same file twice yields two independent models.
func (c *Client) OpenModel(ctx context.Context, path string) (*tree.Model, error) {
	return tree.OpenModel(ctx, c.conn, c.log, path)
}

// ImportModel bulk-populates a new model instance from a file in the given
// format.
func (c *Client) ImportModel(ctx context.Context, path, format string) (*tree.Model, error) {
	return tree.ImportModel(ctx, c.conn, c.log, path, format)
}

// Close shuts the RPC channel down.
func (c *Client) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}
