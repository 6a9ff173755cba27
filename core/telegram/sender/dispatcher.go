package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/sensorbridge/core/logger"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the message was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Message is one outbound chat text.
type Message struct {
	ChatID int64
	Text   string
}

// DeliverFunc makes a single delivery attempt for m.
type DeliverFunc func(ctx context.Context, m Message) error

// Options sizes the dispatcher.
type Options struct {
	QueueSize int
	Workers   int
}

type envelope struct {
	ctx context.Context
	msg Message
}

// Dispatcher delivers messages fire-and-forget on a worker pool.
// Every message gets exactly one attempt; failures are logged and counted.
type Dispatcher struct {
	deliver DeliverFunc
	queue   chan envelope
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher starts the workers. Zero options get a 256 slot queue and 4 workers.
func NewDispatcher(deliver DeliverFunc, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	d := &Dispatcher{
		deliver: deliver,
		queue:   make(chan envelope, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue queues m without blocking.
func (d *Dispatcher) Enqueue(ctx context.Context, m Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- envelope{ctx: ctx, msg: m}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Deliver sends m on the calling goroutine with the same logging as queued messages.
func (d *Dispatcher) Deliver(ctx context.Context, m Message) {
	d.handle(envelope{ctx: ctx, msg: m})
}

// Delivered returns the number of successful deliveries.
func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

// Failures returns the number of failed deliveries.
func (d *Dispatcher) Failures() uint64 { return d.failed.Load() }

// Close rejects new messages and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for e := range d.queue {
		d.handle(e)
	}
}

func (d *Dispatcher) handle(e envelope) {
	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if d.deliver == nil {
		return
	}
	start := time.Now()
	err := d.deliver(ctx, e.msg)
	elapsed := logger.RoundMS(time.Since(start))
	if err == nil {
		d.delivered.Add(1)
		logger.Debug(ctx, component, "send.success",
			slog.String("status", "ok"),
			slog.Int64("chat_id", e.msg.ChatID),
			slog.Duration("elapsed", elapsed),
		)
		return
	}
	d.failed.Add(1)
	logger.Error(ctx, component, "send.fail",
		slog.String("status", "fail"),
		slog.Int64("chat_id", e.msg.ChatID),
		slog.String("err", Redact(err)),
		slog.String("error_kind", classifyError(err)),
		slog.Duration("elapsed", elapsed),
	)
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return "dial"
		}
		if opErr.Op == "read" || opErr.Op == "write" {
			if kind := classifyError(opErr.Err); kind != "" && kind != "unknown" {
				return kind
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
		if kind := classifyError(urlErr.Err); kind != "" && kind != "unknown" {
			return kind
		}
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	switch status := httpStatusFromError(err); {
	case status == http.StatusTooManyRequests:
		return "flood"
	case status == http.StatusForbidden:
		return "blocked"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// Redact returns the error message with bot tokens hidden.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

func httpStatusFromError(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}

	// telebot renders unknown API errors as "telegram: <desc> (<code>)"
	msg := err.Error()
	open := strings.LastIndex(msg, "(")
	end := strings.LastIndex(msg, ")")
	if open >= 0 && end > open+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : end])); convErr == nil {
			return code
		}
	}
	return 0
}
