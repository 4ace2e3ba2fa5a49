package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spacesedan/trendlens/config"
	"github.com/valkey-io/valkey-go"
)

const (
	valkeyRetries    = 3
	valkeyRetryDelay = 250 * time.Millisecond
	// a replaced client stays open this long for commands already using it
	valkeyRetireGrace = 30 * time.Second
)

// ValkeyClient is the cache layer. It satisfies cache.Store.
type ValkeyClient struct {
	client valkey.Client
	cfg    config.ValkeyConfig
	mu     sync.RWMutex
}

func NewValkeyClient(ctx context.Context, cfg config.ValkeyConfig) (*ValkeyClient, error) {
	client, err := dialValkey(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", cfg.Address))
	return &ValkeyClient{client: client, cfg: cfg}, nil
}

func dialValkey(ctx context.Context, cfg config.ValkeyConfig) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress:      []string{cfg.Address},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
		DisableCache:     true,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func (vc *ValkeyClient) current() valkey.Client {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.client
}

// recreateClient swaps in a fresh client unless stale was already replaced by
// another caller.
func (vc *ValkeyClient) recreateClient(ctx context.Context, stale valkey.Client) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	if vc.client != stale {
		return
	}

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := dialValkey(ctx, vc.cfg)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed, keeping existing client",
			slog.String("error", err.Error()))
		return
	}
	vc.client = client
	time.AfterFunc(valkeyRetireGrace, stale.Close)
	slog.Info("[ValkeyClient] Valkey client recreated")
}

func (vc *ValkeyClient) Close() {
	vc.current().Close()
}

func (vc *ValkeyClient) Get(ctx context.Context, key string) (string, bool, error) {
	res := vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Get().Key(key).Build()
	}, valkeyRetries)
	value, err := res.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("[ValkeyClient] get %s: %w", key, err)
	}
	return value, true, nil
}

func (vc *ValkeyClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	res := vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Setex().Key(key).Seconds(seconds).Value(value).Build()
	}, valkeyRetries)
	if err := res.Error(); err != nil {
		return fmt.Errorf("[ValkeyClient] set %s: %w", key, err)
	}
	return nil
}

func (vc *ValkeyClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	res := vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Del().Key(keys...).Build()
	}, valkeyRetries)
	if err := res.Error(); err != nil {
		return fmt.Errorf("[ValkeyClient] delete %v: %w", keys, err)
	}
	return nil
}

func (vc *ValkeyClient) IsHealthy(ctx context.Context) bool {
	c := vc.current()
	return c.Do(ctx, c.B().Ping().Build()).Error() == nil
}

// DoWithRetry rebuilds the command on every attempt because valkey-go recycles
// a command once it has been sent.
func (vc *ValkeyClient) DoWithRetry(ctx context.Context, build func(valkey.Client) valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		c := vc.current()
		result = c.Do(ctx, build(c))
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		if i == retries-1 {
			break
		}
		if isConnectionError(err) {
			vc.recreateClient(ctx, c)
		}

		select {
		case <-ctx.Done():
			return result
		case <-time.After(valkeyRetryDelay):
		}
	}

	return result
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
