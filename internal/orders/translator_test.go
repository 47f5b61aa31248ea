package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"broker-bridgev1/internal/catalog"
	"broker-bridgev1/internal/model"
	"broker-bridgev1/internal/session"
	"broker-bridgev1/pkg/mofsl"
)

type masterFetcher map[string]string

func (m masterFetcher) FetchScripMaster(_ context.Context, exchange string) ([]byte, error) {
	body, ok := m[exchange]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", exchange)
	}
	return []byte(body), nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New(masterFetcher{
		"NSE": `ScripCode,ScripName,ScripShortName,MarketLot
2885,RELIANCE INDUSTRIES LTD,RELIANCE,1
`,
		"NSEFO": `ScripCode,ScripName,ScripShortName,MarketLot
35001,NIFTY 25SEP FUT,NIFTY25SEPFUT,25
`,
	}, nil)
	c.Load(context.Background(), "NSE", "NSEFO")
	return c
}

func testSession() *session.Session {
	return &session.Session{ClientCode: "AB1234", APIKey: "api-key", Token: "tok", CreatedAt: time.Now()}
}

type capturedEvents struct {
	events []OrderEvent
}

func (c *capturedEvents) PublishOrderEvent(_ context.Context, ev OrderEvent) {
	c.events = append(c.events, ev)
}

func TestMapProduct(t *testing.T) {
	cases := []struct{ in, want string }{
		{"MIS", "NORMAL"},
		{"INTRADAY", "NORMAL"},
		{"CNC", "DELIVERY"},
		{"DELIVERY", "DELIVERY"},
		{"NRML", "NORMAL"},
		{"NORMAL", "NORMAL"},
		{"CARRYFORWARD", "NORMAL"},
		{"VALUEPLUS", "VALUEPLUS"},
		{"cnc", "DELIVERY"},
		{"XYZ", "NORMAL"}, // unrecognized: silent fallback, not an error
		{"", "NORMAL"},
	}
	for _, tc := range cases {
		if got := MapProduct(tc.in); got != tc.want {
			t.Errorf("MapProduct(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPlace_DerivativeQuantityConvertedToLots(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "SUCCESS", "uniqueorderid": "ORD-1", "message": "placed",
		})
	}))
	defer srv.Close()

	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), testCatalog(t), nil)
	res, err := tr.Place(context.Background(), testSession(), model.OrderRequest{
		ClientCode: "AB1234", Symbol: "NIFTY25SEPFUT", Exchange: "NFO",
		TransactionType: "buy", OrderType: "market", Quantity: 75, Product: "NRML",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OrderID != "ORD-1" {
		t.Errorf("order id not extracted: %q", res.OrderID)
	}

	if payload["exchange"] != "NSEFO" {
		t.Errorf("alias not mapped: %v", payload["exchange"])
	}
	if got := payload["quantityinlot"].(float64); got != 3 {
		t.Errorf("qty 75 with lot 25 should submit 3 lots, got %v", got)
	}
	if payload["buyorsell"] != "BUY" || payload["ordertype"] != "MARKET" {
		t.Errorf("side/type not uppercased: %v %v", payload["buyorsell"], payload["ordertype"])
	}
	if payload["producttype"] != "NORMAL" {
		t.Errorf("product not mapped: %v", payload["producttype"])
	}
	if payload["orderduration"] != "DAY" {
		t.Errorf("validity should default to DAY: %v", payload["orderduration"])
	}
	if payload["amoorder"] != "N" {
		t.Errorf("amo should default to N: %v", payload["amoorder"])
	}
}

func TestPlace_LotMismatchFailsBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), testCatalog(t), nil)
	_, err := tr.Place(context.Background(), testSession(), model.OrderRequest{
		Symbol: "NIFTY25SEPFUT", Exchange: "NSEFO",
		TransactionType: "BUY", OrderType: "LIMIT", Quantity: 40, Price: 100,
	})

	var lse *LotSizeError
	if !errors.As(err, &lse) {
		t.Fatalf("expected LotSizeError, got %v", err)
	}
	if lse.Quantity != 40 || lse.LotSize != 25 {
		t.Errorf("error fields wrong: %+v", lse)
	}
	if calls.Load() != 0 {
		t.Errorf("lot mismatch must not issue a network call, saw %d", calls.Load())
	}
}

func TestPlace_CashEquityQuantityPassesThrough(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]any{"status": "SUCCESS", "uniqueorderid": "ORD-2"})
	}))
	defer srv.Close()

	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), testCatalog(t), nil)
	// 7 is not a multiple of anything interesting; NSE must not care.
	_, err := tr.Place(context.Background(), testSession(), model.OrderRequest{
		Symbol: "RELIANCE", Exchange: "NSE",
		TransactionType: "SELL", OrderType: "MARKET", Quantity: 7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := payload["quantityinlot"].(float64); got != 7 {
		t.Errorf("cash equity quantity must pass through raw, got %v", got)
	}
	if got := payload["symboltoken"].(float64); got != 2885 {
		t.Errorf("scrip code not resolved: %v", got)
	}
}

func TestPlace_NumericSymbolNeedsNoCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "SUCCESS", "uniqueorderid": "ORD-3"})
	}))
	defer srv.Close()

	// Empty catalog: nothing loaded.
	empty := catalog.New(masterFetcher{}, nil)
	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), empty, nil)
	_, err := tr.Place(context.Background(), testSession(), model.OrderRequest{
		Symbol: "2885", Exchange: "NSE",
		TransactionType: "BUY", OrderType: "MARKET", Quantity: 1,
	})
	if err != nil {
		t.Fatalf("numeric symbol should bypass catalog: %v", err)
	}
}

func TestPlace_StructuredRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "FAILED", "message": "insufficient margin", "errorcode": "MO5001",
		})
	}))
	defer srv.Close()

	sink := &capturedEvents{}
	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), testCatalog(t), sink)
	_, err := tr.Place(context.Background(), testSession(), model.OrderRequest{
		Symbol: "RELIANCE", Exchange: "NSE",
		TransactionType: "BUY", OrderType: "MARKET", Quantity: 1,
	})

	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rej.Message != "insufficient margin" || rej.Code != "MO5001" {
		t.Errorf("remote message/code not carried: %+v", rej)
	}

	if len(sink.events) != 1 || sink.events[0].Type != EventRejected {
		t.Errorf("expected one REJECTED event, got %+v", sink.events)
	}
}

func TestPlace_UnresolvedSymbolPropagates(t *testing.T) {
	tr := NewTranslator(mofsl.NewClient(mofsl.Config{}), testCatalog(t), nil)
	_, err := tr.Place(context.Background(), testSession(), model.OrderRequest{
		Symbol: "GHOST", Exchange: "NSEFO",
		TransactionType: "BUY", OrderType: "MARKET", Quantity: 25,
	})
	var nf *catalog.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestPlace_PublishesPlacedEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "SUCCESS", "uniqueorderid": "ORD-9"})
	}))
	defer srv.Close()

	sink := &capturedEvents{}
	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), testCatalog(t), sink)
	_, err := tr.Place(context.Background(), testSession(), model.OrderRequest{
		Symbol: "RELIANCE", Exchange: "NSE",
		TransactionType: "BUY", OrderType: "MARKET", Quantity: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Type != EventPlaced || sink.events[0].OrderID != "ORD-9" {
		t.Errorf("expected PLACED event with order id, got %+v", sink.events)
	}
	if sink.events[0].TS.IsZero() {
		t.Error("event timestamp not stamped")
	}
}

func TestModify_DefaultsLastModifiedTime(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]any{"status": "SUCCESS", "message": "modified"})
	}))
	defer srv.Close()

	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), testCatalog(t), nil)
	raw, err := tr.Modify(context.Background(), testSession(), model.ModifyRequest{
		UniqueOrderID: "ORD-1", NewOrderType: "LIMIT", NewQuantity: 2, NewPrice: 105.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lm, _ := payload["lastmodifiedtime"].(string)
	if _, perr := time.Parse(brokerTimeLayout, lm); perr != nil {
		t.Errorf("lastmodifiedtime %q not in broker format: %v", lm, perr)
	}

	// Response passes through verbatim.
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || body["status"] != "SUCCESS" {
		t.Errorf("verbatim envelope mangled: %s", raw)
	}
}

func TestModify_CallerSuppliedTimeKept(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]any{"status": "SUCCESS"})
	}))
	defer srv.Close()

	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), testCatalog(t), nil)
	_, err := tr.Modify(context.Background(), testSession(), model.ModifyRequest{
		UniqueOrderID: "ORD-1", LastModifiedTime: "05-Jan-2026 10:30:00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["lastmodifiedtime"] != "05-Jan-2026 10:30:00" {
		t.Errorf("caller timestamp overridden: %v", payload["lastmodifiedtime"])
	}
}

func TestCancel_VerbatimResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["uniqueorderid"] != "ORD-7" {
			t.Errorf("order id not forwarded: %v", payload["uniqueorderid"])
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "FAILED", "message": "already executed"})
	}))
	defer srv.Close()

	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), testCatalog(t), nil)
	raw, err := tr.Cancel(context.Background(), testSession(), model.CancelRequest{UniqueOrderID: "ORD-7"})
	if err != nil {
		t.Fatalf("structured failures pass through verbatim, got error: %v", err)
	}
	var body map[string]any
	json.Unmarshal(raw, &body)
	if body["message"] != "already executed" {
		t.Errorf("verbatim body mangled: %s", raw)
	}
}

func TestFunds_Srno102Wins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "SUCCESS",
			"data": []map[string]any{
				{"srno": 201, "amount": 500.0},
				{"srno": 102, "amount": 1250.75},
				{"srno": 102, "amount": 9999.0},
			},
		})
	}))
	defer srv.Close()

	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), testCatalog(t), nil)
	got, err := tr.Funds(context.Background(), testSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1250.75 {
		t.Errorf("first srno 102 must win, got %v", got)
	}
}

func TestFunds_Srno201Fallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "SUCCESS",
			"data": []map[string]any{
				{"srno": 5, "amount": 10.0},
				{"srno": 201, "amount": 42.5},
			},
		})
	}))
	defer srv.Close()

	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), testCatalog(t), nil)
	got, err := tr.Funds(context.Background(), testSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42.5 {
		t.Errorf("srno 201 fallback, got %v", got)
	}
}

func TestQuote_ResolvesInstrument(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]any{"status": "SUCCESS", "data": map[string]any{"ltp": 2950.5}})
	}))
	defer srv.Close()

	tr := NewTranslator(mofsl.NewClient(mofsl.Config{BaseURL: srv.URL}), testCatalog(t), nil)
	raw, err := tr.Quote(context.Background(), testSession(), "NSE", "RELIANCE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := payload["scripcode"].(float64); got != 2885 {
		t.Errorf("scrip code not resolved for quote: %v", got)
	}
	if len(raw) == 0 {
		t.Error("verbatim quote body missing")
	}
}
