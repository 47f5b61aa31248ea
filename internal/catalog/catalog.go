// Package catalog loads and caches per-exchange scrip-master tables and
// resolves human symbols to broker scrip codes.
//
// A table is loaded at most once per process; re-invoking Load for a cached
// exchange is a no-op. Individual exchange failures are absorbed so one dead
// reference feed does not take down the rest.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"broker-bridgev1/internal/model"
	"broker-bridgev1/internal/store/sqlite"
)

// Fetcher downloads the bulk reference table for one exchange.
type Fetcher interface {
	FetchScripMaster(ctx context.Context, exchange string) ([]byte, error)
}

// NotLoadedError means Resolve was called for an exchange whose table never
// loaded. The caller must re-trigger Load.
type NotLoadedError struct {
	Exchange string
}

func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("catalog: scrip master for %s not loaded", e.Exchange)
}

// NotFoundError means no row matched the symbol after all lookup passes.
type NotFoundError struct {
	Symbol   string
	Exchange string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("catalog: symbol %s not found in %s", e.Symbol, e.Exchange)
}

type entry struct {
	shortName string
	fullName  string
	code      int
	lotSize   int
}

// Catalog holds one immutable scrip table per exchange.
type Catalog struct {
	fetcher Fetcher
	snaps   *sqlite.SnapshotStore // optional; nil disables snapshot fallback

	mu     sync.RWMutex
	tables map[string][]entry
}

// New creates an empty catalog. snaps may be nil.
func New(fetcher Fetcher, snaps *sqlite.SnapshotStore) *Catalog {
	return &Catalog{
		fetcher: fetcher,
		snaps:   snaps,
		tables:  make(map[string][]entry),
	}
}

// Load fetches and caches the scrip master for each exchange not yet loaded.
// A fetch or parse failure is logged and absorbed; when a sqlite snapshot
// exists for that exchange it is installed instead, otherwise the exchange
// simply stays unavailable. Load never fails as a whole.
func (c *Catalog) Load(ctx context.Context, exchanges ...string) {
	for _, exc := range exchanges {
		exc = model.CanonicalExchange(exc)
		if c.Loaded(exc) {
			continue
		}

		raw, err := c.fetcher.FetchScripMaster(ctx, exc)
		if err != nil {
			slog.Warn("scrip master fetch failed", "exchange", exc, "err", err)
			c.installSnapshot(exc)
			continue
		}

		table, err := parseScripMaster(raw)
		if err != nil {
			slog.Warn("scrip master parse failed", "exchange", exc, "err", err)
			c.installSnapshot(exc)
			continue
		}

		if c.install(exc, table) {
			slog.Info("scrip master loaded", "exchange", exc, "rows", len(table))
			c.saveSnapshot(exc, table)
		}
	}
}

// install makes the table visible unless another loader won the race.
// Reports whether this table was installed.
func (c *Catalog) install(exchange string, table []entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[exchange]; ok {
		return false
	}
	c.tables[exchange] = table
	return true
}

func (c *Catalog) installSnapshot(exchange string) {
	if c.snaps == nil {
		return
	}
	rows, err := c.snaps.Load(exchange)
	if err != nil {
		slog.Warn("scrip snapshot load failed", "exchange", exchange, "err", err)
		return
	}
	if len(rows) == 0 {
		return
	}
	table := make([]entry, len(rows))
	for i, r := range rows {
		table[i] = entry{shortName: r.ShortName, fullName: r.FullName, code: r.Code, lotSize: r.LotSize}
	}
	if c.install(exchange, table) {
		slog.Info("scrip master restored from snapshot", "exchange", exchange, "rows", len(table))
	}
}

func (c *Catalog) saveSnapshot(exchange string, table []entry) {
	if c.snaps == nil {
		return
	}
	rows := make([]sqlite.ScripRow, len(table))
	for i, e := range table {
		rows[i] = sqlite.ScripRow{ShortName: e.shortName, FullName: e.fullName, Code: e.code, LotSize: e.lotSize}
	}
	if err := c.snaps.Save(exchange, rows); err != nil {
		slog.Warn("scrip snapshot save failed", "exchange", exchange, "err", err)
	}
}

// Loaded reports whether the exchange's table is available.
func (c *Catalog) Loaded(exchange string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tables[model.CanonicalExchange(exchange)]
	return ok
}

// TableSizes returns row counts per loaded exchange, for metrics.
func (c *Catalog) TableSizes() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sizes := make(map[string]int, len(c.tables))
	for exc, t := range c.tables {
		sizes[exc] = len(t)
	}
	return sizes
}

// Resolve maps a symbol to the broker's scrip code and lot size.
//
// A purely numeric symbol is taken as a literal scrip code with lot size 1
// and needs no table. Otherwise the match order is: exact short name, exact
// full name, then (NSE/BSE only) substring of the full name. First row in
// table order wins; the substring pass can in principle match several rows
// and deliberately keeps the original first-hit behavior.
func (c *Catalog) Resolve(symbol, exchange string) (model.Instrument, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	exc := model.CanonicalExchange(exchange)

	if isDigits(sym) {
		code, err := strconv.Atoi(sym)
		if err != nil {
			return model.Instrument{}, &NotFoundError{Symbol: sym, Exchange: exc}
		}
		return model.Instrument{Exchange: exc, Symbol: sym, Code: code, LotSize: 1}, nil
	}

	c.mu.RLock()
	table, ok := c.tables[exc]
	c.mu.RUnlock()
	if !ok {
		return model.Instrument{}, &NotLoadedError{Exchange: exc}
	}

	for _, e := range table {
		if e.shortName == sym {
			return instrumentFrom(exc, sym, e), nil
		}
	}
	for _, e := range table {
		if e.fullName == sym {
			return instrumentFrom(exc, sym, e), nil
		}
	}
	if exc == model.ExchangeNSE || exc == model.ExchangeBSE {
		for _, e := range table {
			if strings.Contains(e.fullName, sym) {
				return instrumentFrom(exc, sym, e), nil
			}
		}
	}

	return model.Instrument{}, &NotFoundError{Symbol: sym, Exchange: exc}
}

func instrumentFrom(exchange, symbol string, e entry) model.Instrument {
	return model.Instrument{Exchange: exchange, Symbol: symbol, Code: e.code, LotSize: e.lotSize}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
