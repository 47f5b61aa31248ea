// Package api exposes the bridge over HTTP: session endpoints, order
// lifecycle endpoints, account reports, catalog utilities and the
// websocket order stream.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"broker-bridgev1/internal/logger"
)

// NewRouter assembles the chi router over the wired handlers.
func NewRouter(h *Handlers) *chi.Mux {
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	r := chi.NewRouter()
	r.Use(traceMiddleware)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.PlaceOrder)
			r.Post("/modify", h.ModifyOrder)
			r.Post("/cancel", h.CancelOrder)
		})

		r.Post("/quote", h.Quote)
		r.Post("/brokerage", h.Brokerage)
		r.Post("/funds", h.Funds)
		r.Post("/reports/{kind}", h.Report)

		r.Route("/catalog", func(r chi.Router) {
			r.Post("/load", h.CatalogLoad)
			r.Get("/resolve", h.CatalogResolve)
		})

		r.Get("/health", h.Health)
	})

	r.Get("/ws/orders", h.OrderStream)

	return r
}

// traceMiddleware stamps every request with a trace ID and logs completion.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.WithTraceID(r.Context(), logger.NewTraceID())
		next.ServeHTTP(w, r.WithContext(ctx))
		args := append(logger.LogWithTrace(ctx),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)))
		slog.Debug("request served", args...)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
