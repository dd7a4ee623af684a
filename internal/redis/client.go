// Package redis builds go-redis clients from agent URLs.
package redis

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPort = "6379"

// ParseRedisURL parses a redis:// or rediss:// URL and returns options.
// rediss enables TLS; the path selects the database (redis://host/2).
func ParseRedisURL(rawURL string) (*redis.Options, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("empty Redis URL")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opts := &redis.Options{
		Addr:        u.Host,
		DialTimeout: 2 * time.Second,
	}

	switch u.Scheme {
	case "redis":
	case "rediss":
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: u.Hostname(),
		}
	default:
		return nil, fmt.Errorf("invalid Redis URL: unsupported scheme %q", u.Scheme)
	}

	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid Redis URL: missing host")
	}

	// Default port if not specified
	if u.Port() == "" {
		opts.Addr = u.Hostname() + ":" + defaultPort
	}

	if u.User != nil {
		opts.Username = u.User.Username()
		if pwd, ok := u.User.Password(); ok {
			opts.Password = pwd
		}
	}

	// Database from path (e.g., redis://localhost/1)
	if len(u.Path) > 1 {
		db, err := strconv.Atoi(u.Path[1:])
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: bad database %q", u.Path[1:])
		}
		opts.DB = db
	}

	return opts, nil
}

// NewClientLazy creates a client without testing the connection.
// The agent pings it on Start and reconnects on every cycle.
func NewClientLazy(redisURL string) (*redis.Client, error) {
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}

	return redis.NewClient(opts), nil
}
