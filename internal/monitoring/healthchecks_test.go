package monitoring

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type flakyChecker struct {
	healthy atomic.Bool
}

func (c *flakyChecker) IsHealthy(context.Context) bool {
	return c.healthy.Load()
}

func TestMonitorHealthTracksChecker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := &flakyChecker{}
	healthy := &atomic.Bool{}
	healthy.Store(true)

	done := make(chan struct{})
	go func() {
		MonitorHealth(ctx, "opensearch", checker, 5*time.Millisecond, healthy)
		close(done)
	}()

	assert.Eventually(t, func() bool { return !healthy.Load() }, time.Second, time.Millisecond)

	checker.healthy.Store(true)
	assert.Eventually(t, healthy.Load, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}
