package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"botflow/bot/flow"
	"botflow/entity"
	"botflow/internal/lib/sl"
)

// TemplateHandler serves create_from_template blocks: it copies another
// bot's blocks into the current bot, so a template bot acts as a reusable
// logic library.
type TemplateHandler struct {
	blocks flow.BlockWriter
	log    *slog.Logger
}

// NewTemplateHandler creates the template instantiation handler.
func NewTemplateHandler(blocks flow.BlockWriter, log *slog.Logger) *TemplateHandler {
	return &TemplateHandler{
		blocks: blocks,
		log:    log.With(sl.Module("flow.handlers.template")),
	}
}

func (h *TemplateHandler) Types() []entity.BlockType {
	return []entity.BlockType{entity.BlockCreateFromTemplate}
}

func (h *TemplateHandler) Execute(ctx context.Context, req *flow.Request) (flow.Result, error) {
	if h.blocks == nil {
		return flow.Result{}, fmt.Errorf("graph store not configured")
	}

	c, err := entity.DecodeContent[entity.TemplateContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	src, err := h.blocks.ListBlocks(ctx, c.TemplateBotID)
	if err != nil {
		return flow.Result{}, fmt.Errorf("listing template blocks: %w", err)
	}

	for _, b := range src {
		copied := *b
		copied.ID = 0
		copied.BotID = req.BotID
		if err := h.blocks.CreateBlock(ctx, &copied); err != nil {
			return flow.Result{}, fmt.Errorf("copying block %d: %w", b.ID, err)
		}
	}

	h.log.Info("template instantiated",
		slog.Int64("template_bot_id", c.TemplateBotID),
		slog.Int64("bot_id", req.BotID),
		slog.Int("blocks", len(src)),
	)
	return flow.Result{}, nil
}
