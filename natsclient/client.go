// Package natsclient wraps the NATS connection and JetStream handles used by
// the storage backend and the notifier. It owns reconnect handling and feeds
// the connection state into the core metrics.
package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/cse/errors"
	"github.com/c360/cse/metric"
)

// Config holds the NATS connection settings.
type Config struct {
	URL            string        `yaml:"url"`
	Name           string        `yaml:"name"`
	MaxReconnects  int           `yaml:"maxReconnects"`
	ReconnectWait  time.Duration `yaml:"reconnectWait"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// DefaultConfig returns the connection defaults.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		Name:           "cse",
		MaxReconnects:  -1,
		ReconnectWait:  2 * time.Second,
		ConnectTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "nats url is required")
	}
	return nil
}

// Client is a connected NATS client with a JetStream handle.
type Client struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	metrics *metric.Metrics
}

// Connect establishes the NATS connection and the JetStream context. The
// metrics argument is optional.
func Connect(cfg Config, logger *slog.Logger, metrics *metric.Metrics) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{logger: logger, metrics: metrics}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setConnected(false)
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.setConnected(true)
			if metrics != nil {
				metrics.NATSReconnects.Inc()
			}
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setConnected(false)
			logger.Info("nats connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Connect",
			fmt.Sprintf("failed to connect to %s", cfg.URL))
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapFatal(err, "Client", "Connect", "failed to create jetstream context")
	}

	c.conn = conn
	c.js = js
	c.setConnected(true)
	return c, nil
}

func (c *Client) setConnected(up bool) {
	if c.metrics == nil {
		return
	}
	if up {
		c.metrics.NATSConnected.Set(1)
	} else {
		c.metrics.NATSConnected.Set(0)
	}
}

// Conn returns the underlying NATS connection.
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// JetStream returns the JetStream handle.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Publish publishes a message on a core NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	if c.conn == nil || !c.conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Publish",
			fmt.Sprintf("cannot publish to %s", subject))
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish",
			fmt.Sprintf("publish to %s failed", subject))
	}
	return nil
}

// Subscribe registers a handler on a subject, possibly a wildcard. The
// returned function unsubscribes.
func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) (func() error, error) {
	if c.conn == nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "Client", "Subscribe",
			fmt.Sprintf("cannot subscribe to %s", subject))
	}
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Subscribe",
			fmt.Sprintf("subscribe to %s failed", subject))
	}
	return sub.Unsubscribe, nil
}

// KeyValue opens a KV bucket, creating it when absent.
func (c *Client) KeyValue(ctx context.Context, bucket string) (jetstream.KeyValue, error) {
	kv, err := c.js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	kv, err = c.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: 1,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "KeyValue",
			fmt.Sprintf("failed to open bucket %s", bucket))
	}
	return kv, nil
}

// Close drains and closes the connection.
func (c *Client) Close() {
	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			c.logger.Warn("nats drain failed", "error", err)
			c.conn.Close()
		}
		c.conn = nil
	}
	c.setConnected(false)
}
