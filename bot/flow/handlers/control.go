package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"botflow/bot/flow"
	"botflow/entity"
	"botflow/internal/lib/sl"
)

// maxTimerDelay caps timer blocks so an authored delay cannot park a chat
// worker indefinitely.
const maxTimerDelay = 5 * time.Minute

// ControlHandler serves the control-flow blocks: variables, conditions,
// suspension, logging, timers and rate limiting.
type ControlHandler struct {
	sessions flow.Sessions
	log      *slog.Logger
}

// NewControlHandler creates the control-flow block handler.
func NewControlHandler(sessions flow.Sessions, log *slog.Logger) *ControlHandler {
	return &ControlHandler{
		sessions: sessions,
		log:      log.With(sl.Module("flow.handlers.control")),
	}
}

func (h *ControlHandler) Types() []entity.BlockType {
	return []entity.BlockType{
		entity.BlockVariable,
		entity.BlockIfCondition,
		entity.BlockWaitMessage,
		entity.BlockLogMessage,
		entity.BlockTimer,
		entity.BlockRateLimit,
	}
}

func (h *ControlHandler) Execute(ctx context.Context, req *flow.Request) (flow.Result, error) {
	switch req.Block.Type {
	case entity.BlockVariable:
		return h.variable(req)
	case entity.BlockIfCondition:
		return h.ifCondition(req)
	case entity.BlockWaitMessage:
		// Suspend the pass without error; the next inbound event starts a
		// fresh one.
		return flow.Result{Stop: true}, nil
	case entity.BlockLogMessage:
		return h.logMessage(req)
	case entity.BlockTimer:
		return h.timer(ctx, req)
	case entity.BlockRateLimit:
		return h.rateLimit(ctx, req)
	}
	return flow.Result{}, nil
}

// variable writes a rendered value into the pass scope. The value is
// template-rendered first, so variable-to-variable substitution works.
func (h *ControlHandler) variable(req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.VariableContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	switch c.Action {
	case "define", "assign", "update":
		value := flow.Render(c.Value, req.Scope)
		req.Scope.Set(c.Name, value)
		h.log.Debug("variable set",
			slog.String("name", c.Name),
			slog.Int64("block_id", req.Block.ID),
		)
	case "retrieve":
		// Read-only: scope is unchanged.
		h.log.Debug("variable retrieved",
			slog.String("name", c.Name),
			slog.String("value", req.Scope.GetString(c.Name)),
		)
	default:
		h.log.Warn("unsupported variable action",
			slog.String("action", c.Action),
			slog.Int64("block_id", req.Block.ID),
		)
	}
	return flow.Result{}, nil
}

// ifCondition evaluates the block's expression over the scope. Evaluation
// errors count as false with a warning; they never fail the pass.
func (h *ControlHandler) ifCondition(req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.ConditionContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	ok, evalErr := flow.EvalCondition(c.Condition, req.Scope)
	if evalErr != nil {
		h.log.Warn("condition evaluation failed, treating as false",
			slog.Int64("block_id", req.Block.ID),
			sl.Err(evalErr),
		)
		ok = false
	}

	if ok {
		return flow.Result{Label: entity.LabelTrue}, nil
	}
	if c.ElseBlockID != 0 {
		return flow.Result{NextBlockID: c.ElseBlockID}, nil
	}
	return flow.Result{Label: entity.LabelFalse}, nil
}

func (h *ControlHandler) logMessage(req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.LogContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	msg := flow.Render(c.Message, req.Scope)
	attrs := []any{slog.String("chat_id", req.ChatID), slog.Int64("block_id", req.Block.ID)}

	switch c.Level {
	case "debug", "DEBUG":
		h.log.Debug(msg, attrs...)
	case "warning", "WARNING", "warn":
		h.log.Warn(msg, attrs...)
	case "error", "ERROR":
		h.log.Error(msg, attrs...)
	default:
		h.log.Info(msg, attrs...)
	}
	return flow.Result{}, nil
}

// timer delays the pass for a rendered number of seconds, honoring context
// cancellation and the hard delay cap.
func (h *ControlHandler) timer(ctx context.Context, req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.TimerContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	seconds, convErr := strconv.Atoi(flow.Render(c.Delay, req.Scope))
	if convErr != nil || seconds <= 0 {
		h.log.Warn("invalid timer delay, skipping",
			slog.String("delay", c.Delay),
			slog.Int64("block_id", req.Block.ID),
		)
		return flow.Result{}, nil
	}

	delay := time.Duration(seconds) * time.Second
	if delay > maxTimerDelay {
		delay = maxTimerDelay
	}

	select {
	case <-time.After(delay):
		return flow.Result{}, nil
	case <-ctx.Done():
		return flow.Result{}, ctx.Err()
	}
}

// rateLimit counts pass-throughs in the session store and suspends the pass
// once the authored limit inside the interval is reached.
func (h *ControlHandler) rateLimit(ctx context.Context, req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.RateLimitContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	limit, limitErr := strconv.Atoi(flow.Render(c.Limit, req.Scope))
	interval, intErr := strconv.Atoi(flow.Render(c.Interval, req.Scope))
	if limitErr != nil || intErr != nil || limit <= 0 || interval <= 0 {
		h.log.Warn("invalid rate limit configuration, skipping",
			slog.Int64("block_id", req.Block.ID),
		)
		return flow.Result{}, nil
	}

	key := flow.RateKey(req.ChatID, req.Block.ID)
	raw, _, err := h.sessions.Get(ctx, key)
	if err != nil {
		return flow.Result{}, err
	}
	count, _ := strconv.Atoi(raw)

	if count >= limit {
		h.log.Warn("rate limit exceeded",
			slog.String("chat_id", req.ChatID),
			slog.Int("count", count),
			slog.Int64("block_id", req.Block.ID),
		)
		return flow.Result{Stop: true}, nil
	}

	ttl := time.Duration(interval) * time.Second
	if err := h.sessions.SetEx(ctx, key, strconv.Itoa(count+1), ttl); err != nil {
		return flow.Result{}, err
	}
	return flow.Result{}, nil
}
