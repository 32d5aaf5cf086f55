package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rocketscienceinc/tictactoe-relay/pkg/handlers"
	"github.com/rocketscienceinc/tictactoe-relay/web"
)

// NewRouter - mounts the socket endpoint, the probes and the browser client on one chi router.
func NewRouter(logger *slog.Logger, socket http.Handler, health http.HandlerFunc) chi.Router {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(requestLogger(logger))
	router.Use(chimw.Recoverer)

	router.Method(http.MethodGet, "/ws", socket)
	router.Get("/ping", handlers.PingHandler)
	router.Get("/healthz", health)

	router.Get("/", indexHandler)
	router.NotFound(indexHandler)

	return router
}

// NewServer - the HTTP listener. Only header reads are bounded: upgraded connections manage their own deadlines.
func NewServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}

func indexHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(web.Index)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With("component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Debug("request served",
				"requestID", chimw.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}
