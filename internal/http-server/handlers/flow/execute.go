// Package flow exposes the flow engine's inbound event endpoint.
package flow

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	botflow "botflow/bot/flow"
	"botflow/internal/lib/api/response"
	"botflow/internal/lib/sl"
	"botflow/internal/lib/validate"
)

// Submitter enqueues an inbound chat event for execution.
type Submitter interface {
	Submit(botID int64, chatID, message string) error
}

// ExecuteRequest is one inbound chat event.
type ExecuteRequest struct {
	BotID   int64  `json:"bot_id" validate:"required"`
	ChatID  string `json:"chat_id" validate:"required"`
	Message string `json:"message"`
}

func (req *ExecuteRequest) Bind(_ *http.Request) error {
	return validate.Struct(req)
}

// Execute accepts an inbound event and queues a pass for it. Passes run
// asynchronously; a 202 means the event is queued, not that it succeeded.
func Execute(log *slog.Logger, submitter Submitter) http.HandlerFunc {
	logger := log.With(sl.Module("http.handlers.flow"))

	return func(w http.ResponseWriter, r *http.Request) {
		var req ExecuteRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Warn("invalid execute request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		if err := submitter.Submit(req.BotID, req.ChatID, req.Message); err != nil {
			if errors.Is(err, botflow.ErrQueueFull) {
				logger.Warn("chat queue full",
					slog.Int64("bot_id", req.BotID),
					slog.String("chat_id", req.ChatID),
				)
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("chat queue full"))
				return
			}

			logger.Error("submitting event", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to queue event"))
			return
		}

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response.OK())
	}
}
