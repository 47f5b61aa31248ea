// Package orders translates normalized order requests into the broker's
// payload shape and interprets the structured responses.
//
// Lot handling is the one invariant enforced locally: derivative, commodity
// and currency exchanges trade in lots, so raw share quantities must divide
// evenly by the instrument's lot size and are converted before submission.
// Cash equity quantities pass through untouched.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"broker-bridgev1/internal/catalog"
	"broker-bridgev1/internal/model"
	"broker-bridgev1/internal/session"
	"broker-bridgev1/pkg/mofsl"

	"github.com/google/uuid"
)

// brokerTimeLayout is the broker's lastmodifiedtime format, e.g.
// "02-Jan-2006 15:04:05".
const brokerTimeLayout = "02-Jan-2006 15:04:05"

// LotSizeError means the requested quantity is not a multiple of the
// instrument's lot size. Raised before any network call.
type LotSizeError struct {
	Exchange string
	Quantity int
	LotSize  int
}

func (e *LotSizeError) Error() string {
	return fmt.Sprintf("quantity %d must be a multiple of lot size %d on %s",
		e.Quantity, e.LotSize, e.Exchange)
}

// RejectedError is a structured order refusal from the broker.
type RejectedError struct {
	Message string
	Code    string
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("order rejected: %s (code %s)", e.Message, e.Code)
	}
	return "order rejected: " + e.Message
}

// Translator converts order operations into broker calls.
type Translator struct {
	client  *mofsl.Client
	catalog *catalog.Catalog
	events  EventPublisher // optional
}

// NewTranslator wires the translator. events may be nil.
func NewTranslator(client *mofsl.Client, cat *catalog.Catalog, events EventPublisher) *Translator {
	return &Translator{client: client, catalog: cat, events: events}
}

// Place resolves the instrument, normalizes quantity and product type,
// submits the order and interprets the result.
func (t *Translator) Place(ctx context.Context, sess *session.Session, req model.OrderRequest) (model.PlaceResult, error) {
	exc := model.CanonicalExchange(req.Exchange)
	inst, err := t.catalog.Resolve(req.Symbol, exc)
	if err != nil {
		return model.PlaceResult{}, err
	}

	qty := req.Quantity
	if model.IsLotBased(exc) {
		if inst.LotSize > 0 && qty%inst.LotSize != 0 {
			return model.PlaceResult{}, &LotSizeError{Exchange: exc, Quantity: qty, LotSize: inst.LotSize}
		}
		if inst.LotSize > 0 {
			qty = qty / inst.LotSize
		}
	}

	tag := req.Tag
	if tag == "" {
		tag = "bridge-" + uuid.NewString()[:8]
	}
	validity := req.Validity
	if validity == "" {
		validity = "DAY"
	}
	amo := req.AMO
	if amo == "" {
		amo = "N"
	}

	payload := map[string]any{
		"clientcode":        sess.ClientCode,
		"exchange":          exc,
		"symboltoken":       inst.Code,
		"buyorsell":         upper(req.TransactionType),
		"ordertype":         upper(req.OrderType),
		"producttype":       MapProduct(req.Product),
		"orderduration":     upper(validity),
		"price":             req.Price,
		"triggerprice":      req.TriggerPrice,
		"quantityinlot":     qty,
		"disclosedquantity": 0,
		"amoorder":          amo,
		"tag":               tag,
	}

	slog.Info("placing order", "client", sess.ClientCode, "exchange", exc,
		"symbol", req.Symbol, "scripcode", inst.Code, "qty_in_lot", qty)

	env, err := t.client.DoJSON(ctx, http.MethodPost, mofsl.RouteOrderPlace, sess.Auth(), payload)
	if err != nil {
		return model.PlaceResult{}, err
	}
	if !env.OK() {
		t.publish(ctx, OrderEvent{
			Type: EventRejected, ClientCode: sess.ClientCode,
			Exchange: exc, Symbol: req.Symbol,
			Message: env.Message, ErrorCode: env.ErrorCode,
		})
		return model.PlaceResult{}, &RejectedError{Message: env.Message, Code: env.ErrorCode}
	}

	t.publish(ctx, OrderEvent{
		Type: EventPlaced, ClientCode: sess.ClientCode,
		Exchange: exc, Symbol: req.Symbol,
		OrderID: env.UniqueOrderID, Message: env.Message,
	})
	return model.PlaceResult{OrderID: env.UniqueOrderID, Message: env.Message}, nil
}

// Modify passes mutated fields through to the broker and returns the raw
// envelope verbatim. lastmodifiedtime defaults to now in broker format when
// the caller does not supply one.
func (t *Translator) Modify(ctx context.Context, sess *session.Session, req model.ModifyRequest) (json.RawMessage, error) {
	lastMod := req.LastModifiedTime
	if lastMod == "" {
		lastMod = time.Now().Format(brokerTimeLayout)
	}

	payload := map[string]any{
		"clientcode":           sess.ClientCode,
		"uniqueorderid":        req.UniqueOrderID,
		"newordertype":         req.NewOrderType,
		"neworderduration":     req.NewValidity,
		"newprice":             req.NewPrice,
		"newtriggerprice":      req.NewTriggerPrice,
		"newquantityinlot":     req.NewQuantity,
		"newdisclosedquantity": 0,
		"newgoodtilldate":      "",
		"lastmodifiedtime":     lastMod,
		"qtytradedtoday":       req.QtyTradedToday,
	}

	env, err := t.client.DoJSON(ctx, http.MethodPost, mofsl.RouteOrderModify, sess.Auth(), payload)
	if err != nil {
		return nil, err
	}
	if env.OK() {
		t.publish(ctx, OrderEvent{
			Type: EventModified, ClientCode: sess.ClientCode,
			OrderID: req.UniqueOrderID, Message: env.Message,
		})
	}
	return env.Raw, nil
}

// Cancel is a single round trip; the broker's response is returned verbatim.
func (t *Translator) Cancel(ctx context.Context, sess *session.Session, req model.CancelRequest) (json.RawMessage, error) {
	payload := map[string]any{
		"clientcode":    sess.ClientCode,
		"uniqueorderid": req.UniqueOrderID,
	}

	env, err := t.client.DoJSON(ctx, http.MethodPost, mofsl.RouteOrderCancel, sess.Auth(), payload)
	if err != nil {
		return nil, err
	}
	if env.OK() {
		t.publish(ctx, OrderEvent{
			Type: EventCancelled, ClientCode: sess.ClientCode,
			OrderID: req.UniqueOrderID, Message: env.Message,
		})
	}
	return env.Raw, nil
}

// Quote resolves the instrument and fetches last-traded-price data.
func (t *Translator) Quote(ctx context.Context, sess *session.Session, exchange, symbol string) (json.RawMessage, error) {
	exc := model.CanonicalExchange(exchange)
	inst, err := t.catalog.Resolve(symbol, exc)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"clientcode": sess.ClientCode,
		"exchange":   exc,
		"scripcode":  inst.Code,
	}
	env, err := t.client.DoJSON(ctx, http.MethodPost, mofsl.RouteLTP, sess.Auth(), payload)
	if err != nil {
		return nil, err
	}
	return env.Raw, nil
}

// Brokerage fetches brokerage detail for an exchange and series.
func (t *Translator) Brokerage(ctx context.Context, sess *session.Session, exchange, series string) (json.RawMessage, error) {
	if series == "" {
		series = "EQ"
	}
	payload := map[string]any{
		"clientcode":   sess.ClientCode,
		"exchangename": model.CanonicalExchange(exchange),
		"series":       series,
	}
	env, err := t.client.DoJSON(ctx, http.MethodPost, mofsl.RouteBrokerage, sess.Auth(), payload)
	if err != nil {
		return nil, err
	}
	return env.Raw, nil
}

// Report forwards a clientcode-only report request (order book, trade book,
// positions, holdings, margin summary) and returns the response verbatim.
func (t *Translator) Report(ctx context.Context, sess *session.Session, route string) (json.RawMessage, error) {
	payload := map[string]any{"clientcode": sess.ClientCode}
	env, err := t.client.DoJSON(ctx, http.MethodPost, route, sess.Auth(), payload)
	if err != nil {
		return nil, err
	}
	return env.Raw, nil
}

type marginItem struct {
	Srno   int         `json:"srno"`
	Amount json.Number `json:"amount"`
}

// Funds extracts available cash from the margin-detail report: the first
// item with srno 102 wins outright, otherwise the first srno 201 stands in.
// Report errors other than transport failures yield zero, matching the
// broker's own lenient contract.
func (t *Translator) Funds(ctx context.Context, sess *session.Session) (float64, error) {
	payload := map[string]any{"clientcode": sess.ClientCode}
	env, err := t.client.DoJSON(ctx, http.MethodPost, mofsl.RouteMarginDetail, sess.Auth(), payload)
	if err != nil {
		return 0, err
	}
	if !env.OK() {
		return 0, nil
	}

	var items []marginItem
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return 0, nil
	}

	var avail float64
	for _, item := range items {
		amount, _ := item.Amount.Float64()
		if item.Srno == 102 {
			return amount, nil
		}
		if item.Srno == 201 && avail == 0 {
			avail = amount
		}
	}
	return avail, nil
}

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
