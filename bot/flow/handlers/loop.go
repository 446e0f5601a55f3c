package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"botflow/bot/flow"
	"botflow/entity"
	"botflow/internal/lib/sl"
)

// loopIndexVar exposes the zero-based iteration number to the loop body.
const loopIndexVar = "loop_index"

// LoopHandler serves the repetition blocks: loop re-executes its body block
// through the injected stepper, custom_filter gates the pass on an
// expression. Every body execution spends a step of the pass's ceiling, so
// a runaway loop terminates with the step-limit error instead of spinning.
type LoopHandler struct {
	log *slog.Logger
}

// NewLoopHandler creates the loop block family handler.
func NewLoopHandler(log *slog.Logger) *LoopHandler {
	return &LoopHandler{log: log.With(sl.Module("flow.handlers.loop"))}
}

func (h *LoopHandler) Types() []entity.BlockType {
	return []entity.BlockType{entity.BlockLoop, entity.BlockCustomFilter}
}

func (h *LoopHandler) Execute(ctx context.Context, req *flow.Request) (flow.Result, error) {
	switch req.Block.Type {
	case entity.BlockLoop:
		return h.loop(ctx, req)
	case entity.BlockCustomFilter:
		return h.customFilter(req)
	}
	return flow.Result{}, fmt.Errorf("unexpected block type %s", req.Block.Type)
}

func (h *LoopHandler) loop(ctx context.Context, req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.LoopContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	body, err := req.Graph.Block(c.BodyBlockID)
	if err != nil {
		h.log.Warn("loop body block missing, skipping",
			slog.Int64("block_id", req.Block.ID),
			slog.Int64("body_block_id", c.BodyBlockID),
		)
		return flow.Result{}, nil
	}

	switch c.LoopType {
	case "for":
		return h.forLoop(ctx, req, c, body)
	case "while":
		return h.whileLoop(ctx, req, c, body)
	}
	return flow.Result{}, nil
}

// forLoop runs the body a rendered number of times, exposing the iteration
// under loop_index. The body is a single block; its own connections are not
// followed between iterations.
func (h *LoopHandler) forLoop(ctx context.Context, req *flow.Request, c *entity.LoopContent, body *entity.Block) (flow.Result, error) {
	count, convErr := strconv.Atoi(strings.TrimSpace(flow.Render(c.Count, req.Scope)))
	if convErr != nil || count <= 0 {
		h.log.Warn("invalid loop count, skipping",
			slog.String("count", c.Count),
			slog.Int64("block_id", req.Block.ID),
		)
		return flow.Result{}, nil
	}

	defer req.Scope.Delete(loopIndexVar)
	for i := 0; i < count; i++ {
		req.Scope.Set(loopIndexVar, float64(i))

		res, err := req.Stepper.ExecuteBlock(ctx, req, body)
		if err != nil {
			return flow.Result{}, fmt.Errorf("loop iteration %d: %w", i, err)
		}
		if res.Stop {
			return flow.Result{Stop: true}, nil
		}
	}
	return flow.Result{}, nil
}

// whileLoop re-evaluates the condition before each iteration. The step
// ceiling bounds a condition that never turns false.
func (h *LoopHandler) whileLoop(ctx context.Context, req *flow.Request, c *entity.LoopContent, body *entity.Block) (flow.Result, error) {
	for i := 0; ; i++ {
		ok, evalErr := flow.EvalCondition(c.Condition, req.Scope)
		if evalErr != nil {
			h.log.Warn("loop condition evaluation failed, ending loop",
				slog.Int64("block_id", req.Block.ID),
				sl.Err(evalErr),
			)
			return flow.Result{}, nil
		}
		if !ok {
			return flow.Result{}, nil
		}

		res, err := req.Stepper.ExecuteBlock(ctx, req, body)
		if err != nil {
			return flow.Result{}, fmt.Errorf("loop iteration %d: %w", i, err)
		}
		if res.Stop {
			return flow.Result{Stop: true}, nil
		}
	}
}

// customFilter lets the pass continue only when its expression holds.
// Evaluation errors count as a failed filter, never as a pass failure.
func (h *LoopHandler) customFilter(req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.CustomFilterContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	ok, evalErr := flow.EvalCondition(c.Filter, req.Scope)
	if evalErr != nil {
		h.log.Warn("filter evaluation failed, treating as not passed",
			slog.Int64("block_id", req.Block.ID),
			sl.Err(evalErr),
		)
		ok = false
	}

	if ok {
		return flow.Result{}, nil
	}
	h.log.Debug("filter not passed, ending pass", slog.Int64("block_id", req.Block.ID))
	return flow.Result{Stop: true}, nil
}
