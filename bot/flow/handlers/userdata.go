package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"botflow/bot/flow"
	"botflow/entity"
	"botflow/internal/lib/sl"
)

// UserDataHandler serves the save/retrieve/clear user data blocks. The data
// lives as one JSON object per chat in the session store; save merges keys
// into it and retrieve lifts keys into the pass scope.
type UserDataHandler struct {
	sessions flow.Sessions
	log      *slog.Logger
}

// NewUserDataHandler creates the user data block family handler.
func NewUserDataHandler(sessions flow.Sessions, log *slog.Logger) *UserDataHandler {
	return &UserDataHandler{
		sessions: sessions,
		log:      log.With(sl.Module("flow.handlers.userdata")),
	}
}

func (h *UserDataHandler) Types() []entity.BlockType {
	return []entity.BlockType{
		entity.BlockSaveUserData,
		entity.BlockRetrieveUserData,
		entity.BlockClearUserData,
	}
}

func (h *UserDataHandler) Execute(ctx context.Context, req *flow.Request) (flow.Result, error) {
	c, err := entity.DecodeContent[entity.UserDataContent](req.Block)
	if err != nil {
		return flow.Result{}, err
	}

	key := flow.UserDataKey(req.ChatID)

	switch req.Block.Type {
	case entity.BlockSaveUserData:
		return flow.Result{}, h.save(ctx, req, key, c)
	case entity.BlockRetrieveUserData:
		return flow.Result{}, h.retrieve(ctx, req, key, c)
	case entity.BlockClearUserData:
		if err := h.sessions.Delete(ctx, key); err != nil {
			return flow.Result{}, fmt.Errorf("clearing user data: %w", err)
		}
		h.log.Debug("user data cleared", slog.String("chat_id", req.ChatID))
		return flow.Result{}, nil
	}
	return flow.Result{}, fmt.Errorf("unexpected block type %s", req.Block.Type)
}

// save merges the block's rendered data map into the stored blob. Existing
// keys not named by the block survive.
func (h *UserDataHandler) save(ctx context.Context, req *flow.Request, key string, c *entity.UserDataContent) error {
	stored, err := h.load(ctx, key)
	if err != nil {
		return err
	}

	for k, v := range flow.RenderMap(c.Data, req.Scope) {
		stored[k] = v
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding user data: %w", err)
	}
	if err := h.sessions.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("saving user data: %w", err)
	}
	return nil
}

// retrieve lifts stored keys into the pass scope. With a Key set only that
// entry is bound; otherwise every stored key is.
func (h *UserDataHandler) retrieve(ctx context.Context, req *flow.Request, key string, c *entity.UserDataContent) error {
	stored, err := h.load(ctx, key)
	if err != nil {
		return err
	}

	if c.Key != "" {
		if v, ok := stored[c.Key]; ok {
			req.Scope.Set(c.Key, v)
		}
		return nil
	}
	for k, v := range stored {
		req.Scope.Set(k, v)
	}
	return nil
}

func (h *UserDataHandler) load(ctx context.Context, key string) (map[string]any, error) {
	raw, ok, err := h.sessions.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading user data: %w", err)
	}
	if !ok || raw == "" {
		return map[string]any{}, nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decoding user data: %w", err)
	}
	return data, nil
}
