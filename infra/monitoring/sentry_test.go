package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremon "github.com/kilianp07/shopflow/core/monitoring"
)

func TestEmptyDSNIsNop(t *testing.T) {
	m, err := NewSentryMonitor(SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestInvalidDSN(t *testing.T) {
	_, err := NewSentryMonitor(SentryConfig{DSN: "not a dsn"})
	assert.Error(t, err)
}

func TestCaptureExceptionCarriesTags(t *testing.T) {
	var mu sync.Mutex
	var captured []*sentry.Event
	m, err := NewSentryMonitor(SentryConfig{
		DSN:         "https://public@example.com/1",
		Environment: "test",
		BeforeSend: func(ev *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			defer mu.Unlock()
			captured = append(captured, ev)
			return nil
		},
	})
	require.NoError(t, err)

	m.CaptureException(nil, nil)
	m.CaptureException(errors.New("boom"), map[string]string{"scenario": "s1"})
	m.Flush(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, captured, 1)
	ev := captured[0]
	assert.Equal(t, "s1", ev.Tags["scenario"])
	assert.Equal(t, "test", ev.Environment)
	require.NotEmpty(t, ev.Exception)
	assert.Equal(t, "boom", ev.Exception[len(ev.Exception)-1].Value)
}
