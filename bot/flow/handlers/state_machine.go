package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"botflow/bot/flow"
	"botflow/entity"
	"botflow/internal/lib/sl"
)

// StateMachineHandler serves state_machine blocks. The block's transition
// table is authored data; the durable current state lives in the session
// store keyed by (chat_id, block_id), and this handler is the only writer
// of that state.
type StateMachineHandler struct {
	sessions flow.Sessions
	log      *slog.Logger
}

// NewStateMachineHandler creates the state machine block handler.
func NewStateMachineHandler(sessions flow.Sessions, log *slog.Logger) *StateMachineHandler {
	return &StateMachineHandler{
		sessions: sessions,
		log:      log.With(sl.Module("flow.handlers.state")),
	}
}

func (h *StateMachineHandler) Types() []entity.BlockType {
	return []entity.BlockType{entity.BlockStateMachine}
}

func (h *StateMachineHandler) Execute(ctx context.Context, req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.StateMachineContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	key := flow.StateKey(req.ChatID, req.Block.ID)
	current, ok, err := h.sessions.Get(ctx, key)
	if err != nil {
		return flow.Result{}, fmt.Errorf("reading state: %w", err)
	}
	if !ok {
		current = flow.Render(c.InitialState, req.Scope)
		if err := h.sessions.Set(ctx, key, current); err != nil {
			return flow.Result{}, fmt.Errorf("initializing state: %w", err)
		}
	}

	// Transitions evaluate in declaration order; the first match wins.
	for _, tr := range c.Transitions {
		if flow.Render(tr.FromState, req.Scope) != current {
			continue
		}

		matched, err := h.matches(ctx, req, tr)
		if err != nil {
			return flow.Result{}, err
		}
		if !matched {
			continue
		}

		if tr.ToState != "" {
			next := flow.Render(tr.ToState, req.Scope)
			if err := h.sessions.Set(ctx, key, next); err != nil {
				return flow.Result{}, fmt.Errorf("persisting state: %w", err)
			}
			h.log.Debug("state transition",
				slog.String("chat_id", req.ChatID),
				slog.Int64("block_id", req.Block.ID),
				slog.String("from", current),
				slog.String("to", next),
			)
		}
		return flow.Result{NextBlockID: tr.NextBlockID}, nil
	}

	// No transition matched: the pass ends without advancing state. Not an
	// error.
	h.log.Debug("no transition matched",
		slog.String("chat_id", req.ChatID),
		slog.Int64("block_id", req.Block.ID),
		slog.String("state", current),
	)
	return flow.Result{Stop: true}, nil
}

func (h *StateMachineHandler) matches(ctx context.Context, req *flow.Request, tr entity.Transition) (bool, error) {
	switch tr.ConditionType {
	case "message_text":
		last, ok, err := h.sessions.Get(ctx, flow.LastMessageKey(req.ChatID))
		if err != nil {
			h.log.Warn("reading last message", sl.Err(err))
			return false, nil
		}
		return ok && last == flow.Render(tr.ConditionValue, req.Scope), nil

	case "variable_equals":
		return req.Scope.GetString(tr.Variable) == flow.Render(tr.ConditionValue, req.Scope), nil

	case "always":
		return true, nil
	}
	return false, nil
}
