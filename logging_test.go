package forkjoin

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer serializes writes from concurrent worker goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *syncBuffer) Write(b []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(b)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func newTestLogger(buffer *syncBuffer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(buffer),
			stumpy.WithTimeField(``), // deterministic output
		),
		stumpy.L.WithLevel(level),
	).Logger()
}

func TestWithLogger_lifecycleEvents(t *testing.T) {
	var buffer syncBuffer

	scheduler, err := New(WithLogger(newTestLogger(&buffer, logiface.LevelDebug)))
	require.NoError(t, err)

	logged := buffer.String()
	assert.Contains(t, logged, `scheduler initialized`)
	assert.Contains(t, logged, `"workers":`)

	require.NoError(t, scheduler.Close())

	logged = buffer.String()
	assert.Contains(t, logged, `worker started`)
	assert.Contains(t, logged, `scheduler stopping`)
	assert.Contains(t, logged, `worker stopped`)
}

func TestWithLogger_starvationRateLimited(t *testing.T) {
	var buffer syncBuffer

	scheduler, err := New(
		WithCPUs(0),
		WithLogger(newTestLogger(&buffer, logiface.LevelTrace)),
	)
	if err != nil {
		// cpu 0 may legitimately be outside the process mask
		t.Skipf("cannot schedule on cpu 0: %v", err)
	}
	defer scheduler.Close()

	// churn the single worker between work and starvation
	for i := 0; i < 50; i++ {
		done := make(chan struct{})
		scheduler.Detach(func(*ExecutionContext) { close(done) })
		<-done
		time.Sleep(time.Millisecond)
	}

	// starvation events vastly outnumber what the limiter lets through
	logged := buffer.String()
	if n := strings.Count(logged, `worker starving`); n > 15 {
		t.Fatalf("starvation logging not rate limited: %d entries", n)
	}
}

func TestWithLogger_nilDisablesLogging(t *testing.T) {
	scheduler, err := New(WithLogger(nil))
	require.NoError(t, err)

	done := make(chan struct{})
	scheduler.Detach(func(*ExecutionContext) { close(done) })
	<-done

	require.NoError(t, scheduler.Close())
}
