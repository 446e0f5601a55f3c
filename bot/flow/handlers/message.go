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

// MessageHandler serves the outbound messaging blocks.
type MessageHandler struct {
	messenger flow.Messenger
	log       *slog.Logger
}

// NewMessageHandler creates the messaging block handler.
func NewMessageHandler(m flow.Messenger, log *slog.Logger) *MessageHandler {
	return &MessageHandler{
		messenger: m,
		log:       log.With(sl.Module("flow.handlers.message")),
	}
}

func (h *MessageHandler) Types() []entity.BlockType {
	return []entity.BlockType{entity.BlockMessage, entity.BlockSendText, entity.BlockMediaGroup}
}

func (h *MessageHandler) Execute(ctx context.Context, req *flow.Request) (flow.Result, error) {
	switch req.Block.Type {
	case entity.BlockMessage:
		return h.matchMessage(req)
	case entity.BlockSendText:
		return h.sendText(ctx, req)
	case entity.BlockMediaGroup:
		return h.sendMediaGroup(ctx, req)
	}
	return flow.Result{}, nil
}

// matchMessage compares the block's rendered text against the inbound
// message. It produces no side effect; authors use it to anchor connections
// on expected user input.
func (h *MessageHandler) matchMessage(req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.MessageContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	text := flow.Render(c.Text, req.Scope)
	if text != "" && strings.Contains(req.Message, text) {
		h.log.Debug("inbound message matched block text",
			slog.Int64("block_id", req.Block.ID),
			slog.String("chat_id", req.ChatID),
		)
	}
	return flow.Result{}, nil
}

func (h *MessageHandler) sendText(ctx context.Context, req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.MessageContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	if h.messenger == nil {
		return flow.Result{}, fmt.Errorf("messaging gateway not configured")
	}

	text := flow.Render(c.Text, req.Scope)
	if err := h.messenger.SendText(ctx, req.ChatID, text); err != nil {
		return flow.Result{}, fmt.Errorf("sending text: %w", err)
	}

	h.log.Debug("text sent", slog.String("chat_id", req.ChatID), slog.Int64("block_id", req.Block.ID))
	return flow.Result{}, nil
}

func (h *MessageHandler) sendMediaGroup(ctx context.Context, req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.MediaGroupContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	if h.messenger == nil {
		return flow.Result{}, fmt.Errorf("messaging gateway not configured")
	}

	items := make([]entity.MediaItem, len(c.Items))
	for i, item := range c.Items {
		item.Caption = flow.Render(item.Caption, req.Scope)
		item.URL = flow.Render(item.URL, req.Scope)
		items[i] = item
	}

	if err := h.messenger.SendMediaGroup(ctx, req.ChatID, items); err != nil {
		return flow.Result{}, fmt.Errorf("sending media group: %w", err)
	}

	h.log.Debug("media group sent",
		slog.String("chat_id", req.ChatID),
		slog.Int("items", len(items)),
	)
	return flow.Result{}, nil
}
