// Package health serves the liveness endpoint.
package health

import (
	"net/http"

	"github.com/go-chi/render"

	"botflow/internal/lib/api/response"
)

func Check() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.OK())
	}
}
