package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"botflow/bot/flow"
	"botflow/entity"
	"botflow/internal/lib/sl"
)

// ErrorHandler serves the error family: try_catch, raise_error and
// handle_exception. All failures stay inside the pass; a catch target
// absorbs them, and only an uncaught error terminates the pass.
type ErrorHandler struct {
	log *slog.Logger
}

// NewErrorHandler creates the error block family handler.
func NewErrorHandler(log *slog.Logger) *ErrorHandler {
	return &ErrorHandler{log: log.With(sl.Module("flow.handlers.error"))}
}

func (h *ErrorHandler) Types() []entity.BlockType {
	return []entity.BlockType{
		entity.BlockTryCatch,
		entity.BlockRaiseError,
		entity.BlockHandleException,
	}
}

func (h *ErrorHandler) Execute(ctx context.Context, req *flow.Request) (flow.Result, error) {
	switch req.Block.Type {
	case entity.BlockTryCatch:
		return h.tryCatch(ctx, req)
	case entity.BlockRaiseError:
		return h.raiseError(req)
	case entity.BlockHandleException:
		return h.handleException(req)
	}
	return flow.Result{}, fmt.Errorf("unexpected block type %s", req.Block.Type)
}

// tryCatch executes its try target through the injected stepper and routes
// a failure to the catch target. With no catch target the error propagates
// to the engine's own catch-edge routing.
func (h *ErrorHandler) tryCatch(ctx context.Context, req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.TryCatchContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	if c.TryBlockID == 0 {
		if c.CatchBlockID != 0 {
			return flow.Result{NextBlockID: c.CatchBlockID}, nil
		}
		return flow.Result{Stop: true}, nil
	}

	try, err := req.Graph.Block(c.TryBlockID)
	if err != nil {
		h.log.Warn("try block missing",
			slog.Int64("block_id", req.Block.ID),
			slog.Int64("try_block_id", c.TryBlockID),
		)
		if c.CatchBlockID != 0 {
			return flow.Result{NextBlockID: c.CatchBlockID}, nil
		}
		return flow.Result{Stop: true}, nil
	}

	res, err := req.Stepper.ExecuteBlock(ctx, req, try)
	if err != nil {
		if c.CatchBlockID == 0 || !flow.Catchable(err) {
			return flow.Result{}, err
		}
		h.log.Warn("try target failed, routing to catch",
			slog.Int64("block_id", req.Block.ID),
			slog.Int64("try_block_id", c.TryBlockID),
			slog.Int64("catch_block_id", c.CatchBlockID),
			sl.Err(err),
		)
		return flow.Result{NextBlockID: c.CatchBlockID}, nil
	}
	return res, nil
}

// raiseError returns an author-defined failure. The engine's catch routing
// decides where it lands.
func (h *ErrorHandler) raiseError(req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.RaiseErrorContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	msg := flow.Render(c.Message, req.Scope)
	h.log.Info("raising flow error",
		slog.Int64("block_id", req.Block.ID),
		slog.String("message", msg),
	)
	return flow.Result{}, &flow.UserError{Message: msg}
}

// handleException consumes the error that routed the pass here and either
// jumps to a follow-up block or ends the pass.
func (h *ErrorHandler) handleException(req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.HandleExceptionContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	attrs := []any{slog.Int64("block_id", req.Block.ID)}
	if req.Caught != nil {
		attrs = append(attrs, sl.Err(req.Caught))
	}
	if c.Message != "" {
		attrs = append(attrs, slog.String("message", flow.Render(c.Message, req.Scope)))
	}
	h.log.Warn("exception handled", attrs...)

	if c.ExceptionBlockID != 0 {
		if _, err := req.Graph.Block(c.ExceptionBlockID); err != nil {
			h.log.Warn("exception follow-up block missing",
				slog.Int64("block_id", req.Block.ID),
				slog.Int64("exception_block_id", c.ExceptionBlockID),
			)
			return flow.Result{Stop: true}, nil
		}
		return flow.Result{NextBlockID: c.ExceptionBlockID}, nil
	}
	return flow.Result{Stop: true}, nil
}
