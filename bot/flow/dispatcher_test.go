package flow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botflow/bot/flow"
)

type recordingRunner struct {
	mu       sync.Mutex
	messages map[string][]string
	delay    time.Duration
}

func (r *recordingRunner) RunPass(_ context.Context, botID int64, chatID, message string) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messages == nil {
		r.messages = make(map[string][]string)
	}
	r.messages[chatID] = append(r.messages[chatID], message)
	return nil
}

func (r *recordingRunner) byChat(chatID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages[chatID]...)
}

func TestDispatcherOrdersEventsPerChat(t *testing.T) {
	runner := &recordingRunner{delay: time.Millisecond}
	d := flow.NewDispatcher(runner, testLogger(), 0, 32)

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(1, "a", string(rune('0'+i))))
		require.NoError(t, d.Submit(1, "b", string(rune('0'+i))))
	}
	d.Stop()

	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, runner.byChat("a"))
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, runner.byChat("b"))
}

func TestDispatcherQueueFull(t *testing.T) {
	runner := &recordingRunner{delay: 50 * time.Millisecond}
	d := flow.NewDispatcher(runner, testLogger(), 0, 1)
	defer d.Stop()

	// First event occupies the consumer, second fills the queue; the third
	// must be rejected rather than block the caller.
	require.NoError(t, d.Submit(1, "a", "one"))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, d.Submit(1, "a", "two"))

	err := d.Submit(1, "a", "three")
	assert.ErrorIs(t, err, flow.ErrQueueFull)
}

func TestDispatcherSubmitRacingStop(t *testing.T) {
	// Submitters hammering the dispatcher while it shuts down must get an
	// error, never a send on a closed queue.
	runner := &recordingRunner{}
	d := flow.NewDispatcher(runner, testLogger(), 0, 4)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = d.Submit(1, "a", "msg")
			}
		}()
	}

	d.Stop()
	wg.Wait()

	err := d.Submit(1, "a", "late")
	assert.Error(t, err)
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	d := flow.NewDispatcher(&recordingRunner{}, testLogger(), 0, 4)
	d.Stop()

	err := d.Submit(1, "a", "late")
	assert.Error(t, err)
}
