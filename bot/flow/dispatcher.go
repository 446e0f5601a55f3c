package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"botflow/internal/lib/sl"
)

const defaultQueueSize = 64

// Runner executes one pass; implemented by Engine.
type Runner interface {
	RunPass(ctx context.Context, botID int64, chatID, message string) error
}

type event struct {
	botID   int64
	chatID  string
	message string
}

// Dispatcher serializes pass execution per chat. Session writes of a single
// chat are not transactionally isolated, so two concurrent passes for one
// chat_id could race on state-machine state; each (bot, chat) pair gets a
// single-consumer queue while different chats run concurrently.
type Dispatcher struct {
	runner      Runner
	log         *slog.Logger
	passTimeout time.Duration
	queueSize   int

	mu     sync.Mutex
	queues map[string]chan event
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. passTimeout bounds one full pass,
// zero meaning no deadline; queueSize caps per-chat backlog, zero picking
// the default.
func NewDispatcher(runner Runner, log *slog.Logger, passTimeout time.Duration, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		runner:      runner,
		log:         log.With(sl.Module("flow.dispatcher")),
		passTimeout: passTimeout,
		queueSize:   queueSize,
		queues:      make(map[string]chan event),
	}
}

// Submit enqueues an inbound chat event. Events for the same chat run in
// submission order, one at a time. Submit never blocks; a saturated chat
// queue returns ErrQueueFull.
func (d *Dispatcher) Submit(botID int64, chatID, message string) error {
	key := fmt.Sprintf("%d:%s", botID, chatID)

	// The send happens under the same lock that Stop takes to close the
	// queues, so Submit can never hit a closed channel.
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("dispatcher stopped")
	}
	q, ok := d.queues[key]
	if !ok {
		q = make(chan event, d.queueSize)
		d.queues[key] = q
		d.wg.Add(1)
		go d.consume(q)
	}

	select {
	case q <- event{botID: botID, chatID: chatID, message: message}:
		return nil
	default:
		return fmt.Errorf("%w: chat %s", ErrQueueFull, chatID)
	}
}

// Stop closes all queues and waits for in-flight passes to drain.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("dispatcher stopped")
}

func (d *Dispatcher) consume(q chan event) {
	defer d.wg.Done()
	for ev := range q {
		ctx := context.Background()
		cancel := func() {}
		if d.passTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, d.passTimeout)
		}
		// RunPass reports its own failures; the dispatcher only records
		// that the event was consumed.
		if err := d.runner.RunPass(ctx, ev.botID, ev.chatID, ev.message); err != nil {
			d.log.Debug("pass returned error",
				slog.Int64("bot_id", ev.botID),
				slog.String("chat_id", ev.chatID),
				sl.Err(err),
			)
		}
		cancel()
	}
}
