// Package timeout bounds request handling time.
package timeout

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Timeout cancels the request context after the given number of seconds.
func Timeout(seconds int) func(next http.Handler) http.Handler {
	return middleware.Timeout(time.Duration(seconds) * time.Second)
}
