package web

import (
	"net/http"
	"os"
	"time"

	"hrhelp/messenger-relay/pkgs/conf"
	"hrhelp/messenger-relay/pkgs/messenger"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// NewRouter wires the webhook, the status API and the optional public directory.
func NewRouter(cfg *conf.Config, handler *messenger.Handler) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(hlog.NewHandler(log.Logger))
	router.Use(hlog.AccessHandler(logRequest))
	router.Use(middleware.Recoverer)

	RegisterMessengerHandlers(router, handler)

	api := humachi.New(router, huma.DefaultConfig("HR Help Bot", Version))
	RegisterStatusHandlers(api, cfg, time.Now())

	if dir := cfg.BaseConfig.PublicDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			router.Handle("/*", http.FileServer(http.Dir(dir)))
			log.Info().Str("dir", dir).Msg("Serving public directory")
		}
	}

	return router
}

// logRequest writes one access line per request through the request's logger.
func logRequest(r *http.Request, status, size int, duration time.Duration) {
	var event *zerolog.Event
	switch {
	case status >= http.StatusInternalServerError:
		event = hlog.FromRequest(r).Error()
	case status >= http.StatusBadRequest:
		event = hlog.FromRequest(r).Warn()
	default:
		event = hlog.FromRequest(r).Info()
	}
	event.
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote", r.RemoteAddr).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Handled request")
}
