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

func TestSendTextRendersTemplate(t *testing.T) {
	messenger := &flowtest.Messenger{}
	h := handlers.NewMessageHandler(messenger, testLogger())

	req := request(&entity.Block{ID: 1, BotID: 1, Type: entity.BlockSendText, Content: map[string]any{
		"text": "hello {{ name }}",
	}})
	req.Scope.Set("name", "Ann")

	_, err := h.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello Ann"}, messenger.SentTexts())
}

func TestSendTextWithoutMessenger(t *testing.T) {
	h := handlers.NewMessageHandler(nil, testLogger())

	req := request(&entity.Block{ID: 1, BotID: 1, Type: entity.BlockSendText, Content: map[string]any{
		"text": "hello",
	}})

	_, err := h.Execute(context.Background(), req)
	assert.Error(t, err)
}

func TestMediaGroupRendersCaptions(t *testing.T) {
	messenger := &flowtest.Messenger{}
	h := handlers.NewMessageHandler(messenger, testLogger())

	req := request(&entity.Block{ID: 1, BotID: 1, Type: entity.BlockMediaGroup, Content: map[string]any{
		"items": []any{
			map[string]any{"type": "photo", "url": "https://cdn/img/{{ pic }}.jpg", "caption": "for {{ name }}"},
		},
	}})
	req.Scope.Set("pic", "7")
	req.Scope.Set("name", "Ann")

	_, err := h.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, messenger.Media, 1)
	assert.Equal(t, "https://cdn/img/7.jpg", messenger.Media[0][0].URL)
	assert.Equal(t, "for Ann", messenger.Media[0][0].Caption)
}
