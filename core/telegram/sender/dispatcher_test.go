package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherMakesOneAttempt(t *testing.T) {
	var calls atomic.Int32
	d := NewDispatcher(func(context.Context, Message) error {
		calls.Add(1)
		return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	}, Options{Workers: 1})

	require.NoError(t, d.Enqueue(context.Background(), Message{ChatID: 1, Text: "hi"}))
	d.Close()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.Failures())
	assert.Zero(t, d.Delivered())
}

func TestDispatcherDeliversQueuedMessages(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Message
	)
	d := NewDispatcher(func(_ context.Context, m Message) error {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
		return nil
	}, Options{Workers: 1})

	require.NoError(t, d.Enqueue(context.Background(), Message{ChatID: 7, Text: "a"}))
	require.NoError(t, d.Enqueue(context.Background(), Message{ChatID: 7, Text: "b"}))
	d.Close()

	assert.Equal(t, []Message{{ChatID: 7, Text: "a"}, {ChatID: 7, Text: "b"}}, got)
	assert.Equal(t, uint64(2), d.Delivered())
}

func TestDispatcherQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	d := NewDispatcher(func(context.Context, Message) error {
		started <- struct{}{}
		<-release
		return nil
	}, Options{Workers: 1, QueueSize: 1})

	require.NoError(t, d.Enqueue(context.Background(), Message{Text: "busy"}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), Message{Text: "queued"}))
	assert.ErrorIs(t, d.Enqueue(context.Background(), Message{Text: "dropped"}), ErrQueueFull)

	close(release)
	d.Close()
	assert.Equal(t, uint64(2), d.Delivered())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(func(context.Context, Message) error { return nil }, Options{})
	d.Close()
	d.Close()

	assert.ErrorIs(t, d.Enqueue(context.Background(), Message{}), ErrQueueClosed)
}

func TestDispatcherEnqueueRacingClose(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := NewDispatcher(func(context.Context, Message) error { return nil }, Options{Workers: 2, QueueSize: 4})
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < 10; k++ {
					assert.NotPanics(t, func() {
						_ = d.Enqueue(context.Background(), Message{ChatID: 1, Text: "x"})
					})
				}
			}()
		}
		d.Close()
		wg.Wait()
	}
}

func TestDispatcherDeliverRunsInline(t *testing.T) {
	d := NewDispatcher(func(context.Context, Message) error {
		return errors.New("telegram: Bad Request: chat not found (400)")
	}, Options{Workers: 1})
	d.Close()

	d.Deliver(context.Background(), Message{ChatID: 3, Text: "late"})

	assert.Equal(t, uint64(1), d.Failures())
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "dial", classifyError(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.Equal(t, "http_4xx", classifyError(errors.New("telegram: Bad Request: chat not found (400)")))
	assert.Equal(t, "blocked", classifyError(errors.New("telegram: Forbidden: bot was blocked by the user (403)")))
	assert.Equal(t, "http_5xx", classifyError(errors.New("telegram: internal (502)")))
	assert.Equal(t, "unknown", classifyError(errors.New("odd")))
}

func TestRedactHidesToken(t *testing.T) {
	msg := Redact(errors.New(`Post "https://api.telegram.org/bot123456:AA-bb_cc/sendMessage": EOF`))
	assert.NotContains(t, msg, "123456:AA-bb_cc")
	assert.Contains(t, msg, "bot<redacted>")
	assert.Empty(t, Redact(nil))
}
