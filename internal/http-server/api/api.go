package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"botflow/internal/config"
	"botflow/internal/http-server/handlers/errors"
	"botflow/internal/http-server/handlers/flow"
	"botflow/internal/http-server/handlers/health"
	"botflow/internal/http-server/middleware/authenticate"
	"botflow/internal/http-server/middleware/timeout"
	"botflow/internal/lib/sl"
	"botflow/internal/ws"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

// Handler aggregates the collaborators the API needs: token auth and the
// event dispatcher.
type Handler interface {
	authenticate.Authenticate
	flow.Submitter
}

// New builds the router and serves it. Blocks until the listener fails.
func New(conf *config.Config, log *slog.Logger, handler Handler, hub *ws.Hub) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Get("/health", health.Check())

	// Operator error feed; authenticated by api key in the query string
	// because browsers cannot set headers on a WebSocket upgrade.
	router.Get("/ws/errors", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, conf.Listen.ApiKey, log, w, r)
	})

	router.Group(func(r chi.Router) {
		r.Use(timeout.Timeout(5))
		r.Use(authenticate.New(log, handler))

		r.Route("/api/v1", func(v1 chi.Router) {
			v1.Route("/flow", func(r chi.Router) {
				r.Post("/execute", flow.Execute(log, handler))
			})
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:  router,
		ErrorLog: httpLog,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
