package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botflow/bot/flow/flowtest"
	"botflow/bot/flow/handlers"
	"botflow/entity"
)

func TestWebhookRendersURL(t *testing.T) {
	gateway := &flowtest.HTTPGateway{}
	h := handlers.NewWebhookHandler(gateway, testLogger())

	req := request(&entity.Block{ID: 1, BotID: 1, Type: entity.BlockWebhook, Content: map[string]any{
		"url":     "https://example.com/hooks/{{ hook_id }}",
		"payload": map[string]any{"user": "{{ user }}"},
	}})
	req.Scope.Set("hook_id", "abc")
	req.Scope.Set("user", "Ann")

	_, err := h.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/hooks/abc"}, gateway.Webhooks)
}

func TestAPIRequestStoresResponse(t *testing.T) {
	gateway := &flowtest.HTTPGateway{Status: 201, Body: `{"ok":true}`}
	h := handlers.NewWebhookHandler(gateway, testLogger())

	req := request(&entity.Block{ID: 1, BotID: 1, Type: entity.BlockAPIRequest, Content: map[string]any{
		"url":        "https://api.example.com/items",
		"method":     "post",
		"result_var": "created",
	}})

	_, err := h.Execute(context.Background(), req)
	require.NoError(t, err)

	result, ok := req.Scope.Get("created")
	require.True(t, ok)
	assert.Equal(t, 201, result.(map[string]any)["status"])
	assert.Equal(t, `{"ok":true}`, result.(map[string]any)["body"])
	assert.Equal(t, []string{"POST https://api.example.com/items"}, gateway.Requests)
}

func TestAPIRequestDefaultResultVar(t *testing.T) {
	gateway := &flowtest.HTTPGateway{}
	h := handlers.NewWebhookHandler(gateway, testLogger())

	req := request(&entity.Block{ID: 1, BotID: 1, Type: entity.BlockAPIRequest, Content: map[string]any{
		"url": "https://api.example.com/ping",
	}})

	_, err := h.Execute(context.Background(), req)
	require.NoError(t, err)

	_, ok := req.Scope.Get("api_response")
	assert.True(t, ok)
}

func TestTemplateCopiesBlocks(t *testing.T) {
	store := &flowtest.BlockStore{Blocks: []*entity.Block{
		{ID: 100, BotID: 9, Type: entity.BlockSendText, Content: map[string]any{"text": "from template"}},
		{ID: 101, BotID: 9, Type: entity.BlockWaitMessage, Content: map[string]any{}},
	}}
	h := handlers.NewTemplateHandler(store, testLogger())

	req := request(&entity.Block{ID: 1, BotID: 1, Type: entity.BlockCreateFromTemplate, Content: map[string]any{
		"template_bot_id": 9,
	}})

	_, err := h.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, store.Created, 2)
	for _, b := range store.Created {
		assert.Equal(t, int64(1), b.BotID)
		assert.Zero(t, b.ID)
	}
}
