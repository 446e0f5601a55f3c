package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"botflow/entity"
	"botflow/internal/lib/sl"
)

const defaultMaxSteps = 250

// Engine executes one pass of a bot's block graph per inbound chat event.
// It owns next-block resolution, the step ceiling and catch routing; all
// observable effects are performed by the registered handlers.
type Engine struct {
	loader   GraphLoader
	sessions Sessions
	registry *Registry
	reporter ErrorReporter
	log      *slog.Logger
	maxSteps int
}

// Option configures the engine.
type Option func(*Engine)

// WithMaxSteps overrides the per-pass step ceiling.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithErrorReporter attaches an operator-facing error channel.
func WithErrorReporter(r ErrorReporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// NewEngine creates the flow engine.
func NewEngine(loader GraphLoader, sessions Sessions, registry *Registry, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		loader:   loader,
		sessions: sessions,
		registry: registry,
		log:      log.With(sl.Module("flow.engine")),
		maxSteps: defaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunPass executes the bot's graph once for one inbound event. The returned
// error is the pass's fatal failure, already reported; callers only log it.
func (e *Engine) RunPass(ctx context.Context, botID int64, chatID, message string) error {
	log := e.log.With(
		slog.Int64("bot_id", botID),
		slog.String("chat_id", chatID),
		slog.String("pass_id", uuid.NewString()),
	)

	graph, err := e.loader.LoadGraph(ctx, botID)
	if err != nil {
		err = fmt.Errorf("loading graph: %w", err)
		e.report(log, botID, chatID, 0, err)
		return err
	}

	// State-machine message_text conditions read the last inbound message
	// from the session store, so it must be saved before the walk starts.
	if err := e.sessions.Set(ctx, LastMessageKey(chatID), message); err != nil {
		err = fmt.Errorf("saving inbound message: %w", err)
		e.report(log, botID, chatID, 0, err)
		return err
	}

	cur, err := graph.EntryBlock()
	if err != nil {
		err = fmt.Errorf("resolving entry block: %w", err)
		e.report(log, botID, chatID, 0, err)
		return err
	}

	scope := NewScope()
	steps := 0
	var caught error

	for cur != nil {
		req := &Request{
			Block:   cur,
			BotID:   botID,
			ChatID:  chatID,
			Message: message,
			Scope:   scope,
			Graph:   graph,
			Stepper: e,
			Caught:  caught,
			steps:   &steps,
		}

		res, err := e.ExecuteBlock(ctx, req, cur)
		if err != nil {
			if Catchable(err) {
				if targets := graph.Outgoing(cur.ID, entity.LabelCatch); len(targets) > 0 {
					log.Warn("routing to catch block",
						slog.Int64("block_id", cur.ID),
						slog.Int64("catch_block_id", targets[0].ID),
						sl.Err(err),
					)
					caught = err
					cur = targets[0]
					continue
				}
			}
			err = fmt.Errorf("block %d (%s): %w", cur.ID, cur.Type, err)
			e.report(log, botID, chatID, cur.ID, err)
			return err
		}

		// The caught error is visible to the first block on the catch
		// path only; later blocks run outside catch scope again.
		caught = nil

		if res.Stop {
			log.Debug("pass suspended", slog.Int64("block_id", cur.ID))
			break
		}

		cur = e.next(log, graph, cur, res)
	}

	log.Debug("pass finished")
	return nil
}

// ExecuteBlock dispatches a single block to its handler. It also backs the
// Stepper capability handlers use for nested execution: every dispatch,
// nested or not, spends one step of the pass's ceiling, so cyclic try
// targets hit ErrStepLimit instead of recursing without bound.
func (e *Engine) ExecuteBlock(ctx context.Context, req *Request, block *entity.Block) (Result, error) {
	if req.steps == nil {
		req.steps = new(int)
	}
	*req.steps++
	if *req.steps > e.maxSteps {
		return Result{}, fmt.Errorf("%w: %d dispatches, block %d", ErrStepLimit, *req.steps, block.ID)
	}

	h, ok := e.registry.Get(block.Type)
	if !ok {
		e.log.Warn("unsupported block type",
			slog.Int64("block_id", block.ID),
			slog.String("type", string(block.Type)),
		)
		return Result{Stop: true}, nil
	}

	sub := *req
	sub.Block = block
	return h.Execute(ctx, &sub)
}

// next resolves the block to execute after cur. An explicit NextBlockID wins;
// otherwise the first outgoing connection matching the requested label is
// taken. A "true" label with no labeled edge falls back to the default path.
// No match ends the pass.
func (e *Engine) next(log *slog.Logger, graph Graph, cur *entity.Block, res Result) *entity.Block {
	if res.NextBlockID != 0 {
		b, err := graph.Block(res.NextBlockID)
		if err != nil {
			log.Warn("next block missing, ending pass",
				slog.Int64("block_id", cur.ID),
				slog.Int64("next_block_id", res.NextBlockID),
			)
			return nil
		}
		return b
	}

	outs := graph.Outgoing(cur.ID, res.Label)
	if len(outs) == 0 && res.Label == entity.LabelTrue {
		outs = graph.Outgoing(cur.ID, entity.LabelDefault)
	}
	if len(outs) == 0 {
		return nil
	}
	return outs[0]
}

func (e *Engine) report(log *slog.Logger, botID int64, chatID string, blockID int64, err error) {
	log.Error("pass failed", slog.Int64("block_id", blockID), sl.Err(err))
	if e.reporter != nil {
		e.reporter.ReportError(botID, chatID, blockID, err)
	}
}
