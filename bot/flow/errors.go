package flow

import "errors"

// Engine-level failures. All of them terminate the current pass only; the
// worker process survives and the error is reported with bot/chat/block
// context.
var (
	// ErrStepLimit — the pass exceeded the configured step ceiling.
	ErrStepLimit = errors.New("step limit exceeded")

	// ErrBotNotFound — the bot or its logic definition does not exist.
	ErrBotNotFound = errors.New("bot not found")

	// ErrBlockNotFound — a referenced block is missing from the graph.
	ErrBlockNotFound = errors.New("block not found")

	// ErrQueueFull — the per-chat dispatch queue rejected an event.
	ErrQueueFull = errors.New("chat queue full")
)

// UserError is raised by raise_error blocks: an author-defined, user-facing
// failure that always stops the current try scope and routes to the nearest
// catch. It is the only failure whose message may be shown to the
// conversation partner.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

// Catchable reports whether an error may be routed to a catch branch.
// Step-limit exhaustion is always fatal: letting a catch branch swallow it
// would keep the loop running.
func Catchable(err error) bool {
	return !errors.Is(err, ErrStepLimit)
}
