package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"broker-bridgev1/internal/auth"
	"broker-bridgev1/internal/catalog"
	"broker-bridgev1/internal/gateway"
	"broker-bridgev1/internal/logger"
	"broker-bridgev1/internal/markethours"
	"broker-bridgev1/internal/metrics"
	"broker-bridgev1/internal/model"
	"broker-bridgev1/internal/orders"
	"broker-bridgev1/internal/session"
	"broker-bridgev1/pkg/mofsl"
)

// Handlers holds the wired core services behind the HTTP surface.
type Handlers struct {
	Sessions *session.Manager
	Orders   *orders.Translator
	Catalog  *catalog.Catalog
	Hub      *gateway.Hub // nil when the gateway is disabled
	Metrics  *metrics.Metrics
	Preload  []string

	upgrader websocket.Upgrader
}

// reportRoutes maps the URL report kind to the broker route serving it.
var reportRoutes = map[string]string{
	"orderbook":     mofsl.RouteOrderBook,
	"tradebook":     mofsl.RouteTradeBook,
	"positions":     mofsl.RoutePositions,
	"holdings":      mofsl.RouteHoldings,
	"margin":        mofsl.RouteMarginDetail,
	"marginsummary": mofsl.RouteMarginSummary,
}

// httpStatus maps a typed core error onto an HTTP status code.
func httpStatus(err error) int {
	var (
		remoteErr    *mofsl.RemoteError
		notLoadedErr *catalog.NotLoadedError
		notFoundErr  *catalog.NotFoundError
		lotErr       *orders.LotSizeError
		orderRejErr  *orders.RejectedError
		loginRejErr  *session.RejectedError
	)
	switch {
	case errors.Is(err, auth.ErrInvalidCredential):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.As(err, &loginRejErr):
		return http.StatusUnauthorized
	case errors.As(err, &lotErr), errors.As(err, &orderRejErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &notLoadedErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// outcomeLabel buckets an error into the status label used by counters.
func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	var (
		orderRejErr *orders.RejectedError
		loginRejErr *session.RejectedError
	)
	if errors.Is(err, auth.ErrInvalidCredential) ||
		errors.As(err, &orderRejErr) || errors.As(err, &loginRejErr) {
		return "rejected"
	}
	return "error"
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	args := append(logger.LogWithTrace(r.Context()),
		slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	slog.Warn("request failed", args...)
	writeError(w, httpStatus(err), err.Error())
}

// Login authenticates one account against the broker, warms the instrument
// catalog and reports the available funds alongside the session token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decode(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sess, err := h.Sessions.Login(r.Context(), creds)
	if h.Metrics != nil {
		h.Metrics.LoginsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.Catalog.Load(r.Context(), h.Preload...)

	funds, err := h.Orders.Funds(r.Context(), sess)
	if err != nil {
		args := append(logger.LogWithTrace(r.Context()),
			slog.String("client", sess.ClientCode), slog.String("error", err.Error()))
		slog.Warn("funds lookup failed after login", args...)
	}

	writeJSON(w, http.StatusOK, response{
		Status:  true,
		Message: "Login Successful",
		Data: loginResponse{
			ClientCode: sess.ClientCode,
			Token:      sess.Token,
			Funds:      funds,
		},
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	h.Sessions.Logout(r.Context(), req.ClientCode)
	writeJSON(w, http.StatusOK, response{Status: true, Message: "Logged out"})
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req model.OrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sess, err := h.Sessions.Registry().Lookup(req.ClientCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !markethours.IsMarketOpen(time.Now()) {
		args := append(logger.LogWithTrace(r.Context()),
			slog.String("client", req.ClientCode), slog.String("symbol", req.Symbol))
		slog.Debug("order submitted outside equity market hours", args...)
	}

	result, err := h.Orders.Place(r.Context(), sess, req)
	if h.Metrics != nil {
		h.Metrics.OrdersTotal.WithLabelValues("place", outcomeLabel(err)).Inc()
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, result)
}

func (h *Handlers) ModifyOrder(w http.ResponseWriter, r *http.Request) {
	var req model.ModifyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sess, err := h.Sessions.Registry().Lookup(req.ClientCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	raw, err := h.Orders.Modify(r.Context(), sess, req)
	if h.Metrics != nil {
		h.Metrics.OrdersTotal.WithLabelValues("modify", outcomeLabel(err)).Inc()
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req model.CancelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sess, err := h.Sessions.Registry().Lookup(req.ClientCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	raw, err := h.Orders.Cancel(r.Context(), sess, req)
	if h.Metrics != nil {
		h.Metrics.OrdersTotal.WithLabelValues("cancel", outcomeLabel(err)).Inc()
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sess, err := h.Sessions.Registry().Lookup(req.ClientCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	raw, err := h.Orders.Quote(r.Context(), sess, req.Exchange, req.Symbol)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (h *Handlers) Brokerage(w http.ResponseWriter, r *http.Request) {
	var req brokerageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sess, err := h.Sessions.Registry().Lookup(req.ClientCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	raw, err := h.Orders.Brokerage(r.Context(), sess, req.Exchange, req.Series)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (h *Handlers) Funds(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sess, err := h.Sessions.Registry().Lookup(req.ClientCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	funds, err := h.Orders.Funds(r.Context(), sess)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, map[string]float64{"funds": funds})
}

// Report serves the account books: order book, trade book, positions,
// holdings and margin reports, keyed by the {kind} path parameter.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	route, ok := reportRoutes[chi.URLParam(r, "kind")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown report kind")
		return
	}
	var req accountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sess, err := h.Sessions.Registry().Lookup(req.ClientCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	raw, err := h.Orders.Report(r.Context(), sess, route)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (h *Handlers) CatalogLoad(w http.ResponseWriter, r *http.Request) {
	var req catalogLoadRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	exchanges := req.Exchanges
	if len(exchanges) == 0 {
		exchanges = h.Preload
	}
	h.Catalog.Load(r.Context(), exchanges...)
	writeData(w, h.Catalog.TableSizes())
}

func (h *Handlers) CatalogResolve(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	exchange := r.URL.Query().Get("exchange")
	if symbol == "" || exchange == "" {
		writeError(w, http.StatusBadRequest, "symbol and exchange are required")
		return
	}
	inst, err := h.Catalog.Resolve(symbol, exchange)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, inst)
}

// OrderStream upgrades to a websocket and streams order lifecycle events.
// An optional userId query parameter narrows the stream to one account.
func (h *Handlers) OrderStream(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "order stream is not enabled")
		return
	}
	clientCode := r.URL.Query().Get("userId")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	h.Hub.HandleWS(conn, clientCode)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"market":   markethours.StatusString(time.Now()),
		"sessions": h.Sessions.Registry().Count(),
		"catalog":  h.Catalog.TableSizes(),
	})
}
