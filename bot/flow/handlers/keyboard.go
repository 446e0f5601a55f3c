package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"botflow/bot/flow"
	"botflow/entity"
	"botflow/internal/lib/sl"
)

// defaultKeyboardPrompt accompanies a keyboard whose block carries no text.
const defaultKeyboardPrompt = "Please select option:"

// KeyboardHandler serves the interactive keyboard blocks: keyboard sends a
// prompt with reply or inline buttons, callback gates the pass on the
// button the user pressed.
type KeyboardHandler struct {
	messenger flow.Messenger
	log       *slog.Logger
}

// NewKeyboardHandler creates the keyboard block family handler.
func NewKeyboardHandler(m flow.Messenger, log *slog.Logger) *KeyboardHandler {
	return &KeyboardHandler{
		messenger: m,
		log:       log.With(sl.Module("flow.handlers.keyboard")),
	}
}

func (h *KeyboardHandler) Types() []entity.BlockType {
	return []entity.BlockType{entity.BlockKeyboard, entity.BlockCallback}
}

func (h *KeyboardHandler) Execute(ctx context.Context, req *flow.Request) (flow.Result, error) {
	switch req.Block.Type {
	case entity.BlockKeyboard:
		return h.keyboard(ctx, req)
	case entity.BlockCallback:
		return h.callback(req)
	}
	return flow.Result{}, fmt.Errorf("unexpected block type %s", req.Block.Type)
}

func (h *KeyboardHandler) keyboard(ctx context.Context, req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.KeyboardContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	if h.messenger == nil {
		return flow.Result{}, fmt.Errorf("messaging gateway not configured")
	}

	kb := &entity.KeyboardContent{
		KeyboardType: c.KeyboardType,
		Text:         flow.Render(c.Text, req.Scope),
		Buttons:      make([][]entity.KeyboardButton, len(c.Buttons)),
	}
	if kb.Text == "" {
		kb.Text = defaultKeyboardPrompt
	}
	for i, row := range c.Buttons {
		kb.Buttons[i] = make([]entity.KeyboardButton, len(row))
		for j, b := range row {
			b.Text = flow.Render(b.Text, req.Scope)
			kb.Buttons[i][j] = b
		}
	}

	if err := h.messenger.SendKeyboard(ctx, req.ChatID, kb); err != nil {
		return flow.Result{}, fmt.Errorf("sending keyboard: %w", err)
	}

	h.log.Debug("keyboard sent",
		slog.String("chat_id", req.ChatID),
		slog.String("keyboard_type", kb.KeyboardType),
		slog.Int64("block_id", req.Block.ID),
	)
	return flow.Result{}, nil
}

// callback compares the block's rendered callback data against the inbound
// event. A match lets the pass continue on the default path; anything else
// ends it, so other callback blocks can claim the event on their own passes.
func (h *KeyboardHandler) callback(req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.CallbackContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	data := flow.Render(c.CallbackData, req.Scope)
	if data != "" && strings.Contains(req.Message, data) {
		h.log.Debug("callback matched",
			slog.String("callback_data", data),
			slog.Int64("block_id", req.Block.ID),
		)
		return flow.Result{}, nil
	}

	h.log.Debug("callback did not match, ending pass",
		slog.String("callback_data", data),
		slog.Int64("block_id", req.Block.ID),
	)
	return flow.Result{Stop: true}, nil
}
