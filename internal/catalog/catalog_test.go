package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"broker-bridgev1/internal/store/sqlite"
)

type fakeFetcher struct {
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: make(map[string]string),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) FetchScripMaster(_ context.Context, exchange string) ([]byte, error) {
	f.calls[exchange]++
	if err, ok := f.errs[exchange]; ok {
		return nil, err
	}
	body, ok := f.bodies[exchange]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", exchange)
	}
	return []byte(body), nil
}

const nseMaster = `ScripCode,ScripName,ScripShortName,MarketLot
2885,RELIANCE INDUSTRIES LTD,RELIANCE,1
3045,STATE BANK OF INDIA,SBIN,1
11536,TATA CONSULTANCY SERVICES,TCS,
`

const nfoMaster = `ScripCode,ScripName,ScripShortName,MarketLot
35001,NIFTY 25SEP FUT,NIFTY25SEPFUT,75
35002,BANKNIFTY 25SEP FUT,BANKNIFTY25SEPFUT,35
`

func loadedCatalog(t *testing.T) (*Catalog, *fakeFetcher) {
	t.Helper()
	f := newFakeFetcher()
	f.bodies["NSE"] = nseMaster
	f.bodies["NSEFO"] = nfoMaster
	c := New(f, nil)
	c.Load(context.Background(), "NSE", "NSEFO")
	return c, f
}

func TestResolve_NumericSymbolBypassesCatalog(t *testing.T) {
	c := New(newFakeFetcher(), nil) // nothing loaded

	inst, err := c.Resolve("2885", "NSE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Code != 2885 || inst.LotSize != 1 {
		t.Errorf("got code=%d lot=%d, want 2885/1", inst.Code, inst.LotSize)
	}
}

func TestResolve_ShortName(t *testing.T) {
	c, _ := loadedCatalog(t)

	inst, err := c.Resolve("RELIANCE", "NSE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Code != 2885 || inst.LotSize != 1 {
		t.Errorf("got code=%d lot=%d, want 2885/1", inst.Code, inst.LotSize)
	}
}

func TestResolve_ShortNameWinsOverFullName(t *testing.T) {
	f := newFakeFetcher()
	// "ALPHA" matches row 1 by full name and row 2 by short name;
	// short name takes precedence even though the full-name row comes first.
	f.bodies["NSE"] = `ScripCode,ScripName,ScripShortName,MarketLot
100,ALPHA,ALPHAFULL,1
200,SOMETHING ELSE,ALPHA,1
`
	c := New(f, nil)
	c.Load(context.Background(), "NSE")

	inst, err := c.Resolve("ALPHA", "NSE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Code != 200 {
		t.Errorf("short-name match must win: got code=%d, want 200", inst.Code)
	}
}

func TestResolve_SubstringFallbackOnlyForCashExchanges(t *testing.T) {
	c, _ := loadedCatalog(t)

	// "TATA" is a substring of "TATA CONSULTANCY SERVICES" on NSE.
	inst, err := c.Resolve("TATA", "NSE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Code != 11536 {
		t.Errorf("got code=%d, want 11536", inst.Code)
	}

	// "NIFTY" is contained in NSEFO full names but no substring pass runs there.
	if _, err := c.Resolve("NIFTY", "NSEFO"); err == nil {
		t.Fatal("expected NotFoundError on NSEFO substring lookup")
	}
}

func TestResolve_SubstringFirstRowWins(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["BSE"] = `ScripCode,ScripName,ScripShortName,MarketLot
1,GOLDBEES ETF,GB,1
2,GOLDSHARE ETF,GS,1
`
	c := New(f, nil)
	c.Load(context.Background(), "BSE")

	inst, err := c.Resolve("GOLD", "BSE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Code != 1 {
		t.Errorf("first table row must win ambiguous substring match: got %d", inst.Code)
	}
}

func TestResolve_MissingLotSizeDefaultsToOne(t *testing.T) {
	c, _ := loadedCatalog(t)

	inst, err := c.Resolve("TCS", "NSE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.LotSize != 1 {
		t.Errorf("blank marketlot should default to 1, got %d", inst.LotSize)
	}
}

func TestResolve_DerivativeLotSize(t *testing.T) {
	c, _ := loadedCatalog(t)

	inst, err := c.Resolve("NIFTY25SEPFUT", "NFO") // alias form
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Exchange != "NSEFO" {
		t.Errorf("exchange alias not canonicalized: %s", inst.Exchange)
	}
	if inst.Code != 35001 || inst.LotSize != 75 {
		t.Errorf("got code=%d lot=%d, want 35001/75", inst.Code, inst.LotSize)
	}
}

func TestResolve_NotLoaded(t *testing.T) {
	c, _ := loadedCatalog(t)

	_, err := c.Resolve("GOLD", "MCX")
	var nl *NotLoadedError
	if !errors.As(err, &nl) {
		t.Fatalf("expected NotLoadedError, got %v", err)
	}
	if nl.Exchange != "MCX" {
		t.Errorf("error names wrong exchange: %s", nl.Exchange)
	}
}

func TestResolve_NotFound(t *testing.T) {
	c, _ := loadedCatalog(t)

	_, err := c.Resolve("NOSUCHSYM", "NSEFO")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	c, f := loadedCatalog(t)

	before, err := c.Resolve("RELIANCE", "NSE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Load(context.Background(), "NSE", "NSEFO")
	if f.calls["NSE"] != 1 {
		t.Errorf("already-loaded exchange was re-fetched %d times", f.calls["NSE"])
	}

	after, err := c.Resolve("RELIANCE", "NSE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before != after {
		t.Errorf("cached table changed across redundant loads: %+v vs %+v", before, after)
	}
}

func TestLoad_PartialFailureTolerated(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["NSE"] = nseMaster
	f.errs["MCX"] = errors.New("boom")
	c := New(f, nil)

	c.Load(context.Background(), "NSE", "MCX")

	if !c.Loaded("NSE") {
		t.Error("NSE should load despite MCX failure")
	}
	if c.Loaded("MCX") {
		t.Error("MCX must stay absent after a failed fetch")
	}
}

func TestLoad_SnapshotFallback(t *testing.T) {
	snaps, err := sqlite.Open(filepath.Join(t.TempDir(), "scrips.db"))
	if err != nil {
		t.Fatalf("open snapshot store: %v", err)
	}
	defer snaps.Close()

	// First process: fetch succeeds and writes the snapshot.
	f1 := newFakeFetcher()
	f1.bodies["NSE"] = nseMaster
	c1 := New(f1, snaps)
	c1.Load(context.Background(), "NSE")

	// Second process: fetch fails, snapshot takes over.
	f2 := newFakeFetcher()
	f2.errs["NSE"] = errors.New("feed down")
	c2 := New(f2, snaps)
	c2.Load(context.Background(), "NSE")

	inst, err := c2.Resolve("RELIANCE", "NSE")
	if err != nil {
		t.Fatalf("snapshot fallback did not restore table: %v", err)
	}
	if inst.Code != 2885 {
		t.Errorf("got code=%d, want 2885", inst.Code)
	}
}

func TestParseScripMaster_BadNumericFields(t *testing.T) {
	table, err := parseScripMaster([]byte(`ScripCode,ScripName,ScripShortName,MarketLot
10,GOOD ROW,GOOD,nan
,NO CODE,BAD,5
20,FLOAT LOT,FL,25.0
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("expected 2 usable rows, got %d", len(table))
	}
	if table[0].lotSize != 1 {
		t.Errorf("nan lot should default to 1, got %d", table[0].lotSize)
	}
	if table[1].lotSize != 25 {
		t.Errorf("float lot should parse to 25, got %d", table[1].lotSize)
	}
}
