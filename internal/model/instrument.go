package model

import "strings"

// Broker exchange codes. NFO and CDS are accepted as inbound aliases and
// canonicalized before any lookup or order call.
const (
	ExchangeNSE   = "NSE"
	ExchangeNSEFO = "NSEFO"
	ExchangeBSE   = "BSE"
	ExchangeBSEFO = "BSEFO"
	ExchangeMCX   = "MCX"
	ExchangeNSECD = "NSECD"
	ExchangeBSECD = "BSECD"
)

// AllExchanges lists every exchange the broker publishes a scrip master for.
var AllExchanges = []string{
	ExchangeNSE, ExchangeNSEFO, ExchangeBSE, ExchangeBSEFO,
	ExchangeMCX, ExchangeNSECD, ExchangeBSECD,
}

// CanonicalExchange uppercases the exchange and resolves inbound aliases
// (NFO -> NSEFO, CDS -> NSECD). Unknown codes pass through unchanged.
func CanonicalExchange(exchange string) string {
	exc := strings.ToUpper(strings.TrimSpace(exchange))
	switch exc {
	case "NFO":
		return ExchangeNSEFO
	case "CDS":
		return ExchangeNSECD
	}
	return exc
}

// IsLotBased reports whether quantities on this exchange are submitted in
// lots rather than raw share units.
func IsLotBased(exchange string) bool {
	switch exchange {
	case ExchangeNSEFO, ExchangeMCX, ExchangeNSECD, ExchangeBSEFO, ExchangeBSECD:
		return true
	}
	return false
}

// Instrument is a resolved tradeable instrument: the broker's numeric scrip
// code plus the minimum tradable lot multiple.
type Instrument struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Code     int    `json:"scripcode"`
	LotSize  int    `json:"lotsize"`
}
