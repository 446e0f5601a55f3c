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

// WebhookHandler serves the outbound HTTP blocks: fire-and-forget webhooks
// and api_request calls whose response lands in the pass scope.
type WebhookHandler struct {
	gateway flow.HTTPGateway
	log     *slog.Logger
}

// NewWebhookHandler creates the outbound HTTP block handler.
func NewWebhookHandler(gateway flow.HTTPGateway, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		gateway: gateway,
		log:     log.With(sl.Module("flow.handlers.webhook")),
	}
}

func (h *WebhookHandler) Types() []entity.BlockType {
	return []entity.BlockType{entity.BlockWebhook, entity.BlockAPIRequest}
}

func (h *WebhookHandler) Execute(ctx context.Context, req *flow.Request) (flow.Result, error) {
	if h.gateway == nil {
		return flow.Result{}, fmt.Errorf("http gateway not configured")
	}

	if req.Block.Type == entity.BlockWebhook {
		return h.webhook(ctx, req)
	}
	return h.apiRequest(ctx, req)
}

func (h *WebhookHandler) webhook(ctx context.Context, req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.WebhookContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	url := flow.Render(c.URL, req.Scope)
	if err := h.gateway.SendWebhook(ctx, url, flow.RenderMap(c.Payload, req.Scope)); err != nil {
		return flow.Result{}, fmt.Errorf("webhook: %w", err)
	}
	h.log.Debug("webhook delivered",
		slog.Int64("block_id", req.Block.ID),
		slog.String("url", url),
	)
	return flow.Result{}, nil
}

func (h *WebhookHandler) apiRequest(ctx context.Context, req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.APIRequestContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	method := strings.ToUpper(c.Method)
	if method == "" {
		method = "GET"
	}

	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		headers[k] = flow.Render(v, req.Scope)
	}

	url := flow.Render(c.URL, req.Scope)
	status, body, err := h.gateway.Request(ctx, method, url, headers, flow.RenderMap(c.Body, req.Scope))
	if err != nil {
		return flow.Result{}, fmt.Errorf("api request: %w", err)
	}

	name := c.ResultVar
	if name == "" {
		name = "api_response"
	}
	req.Scope.Set(name, map[string]any{
		"status": status,
		"body":   body,
	})

	h.log.Debug("api request done",
		slog.Int64("block_id", req.Block.ID),
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", status),
	)
	return flow.Result{}, nil
}
