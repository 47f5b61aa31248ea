package model

// OrderRequest is a normalized order as received from the caller.
// Quantity is always in raw share units; the translator converts to lots
// for derivative, commodity and currency exchanges.
type OrderRequest struct {
	ClientCode      string  `json:"userId"`
	Symbol          string  `json:"symbol"`
	Exchange        string  `json:"exchange"`         // NSE, NSEFO/NFO, BSE, BSEFO, MCX, NSECD/CDS, BSECD
	TransactionType string  `json:"transaction_type"` // BUY, SELL
	OrderType       string  `json:"order_type"`       // LIMIT, MARKET, STOPLOSS
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
	TriggerPrice    float64 `json:"trigger_price"`
	Product         string  `json:"product"`  // MIS, CNC, NRML, DELIVERY, VALUEPLUS, ...
	Validity        string  `json:"validity"` // DAY, IOC
	Tag             string  `json:"tag"`
	AMO             string  `json:"is_amo"` // "Y" or "N"
}

// ModifyRequest mutates an accepted order identified by the broker's unique
// order id. Fields are passed through to the broker as-is; NewQuantity is
// already in the broker's lot units for lot-based exchanges.
type ModifyRequest struct {
	ClientCode       string  `json:"userId"`
	UniqueOrderID    string  `json:"unique_order_id"`
	NewOrderType     string  `json:"new_order_type"`
	NewQuantity      int     `json:"new_quantity"`
	NewPrice         float64 `json:"new_price"`
	NewTriggerPrice  float64 `json:"new_trigger_price"`
	NewValidity      string  `json:"new_validity"`
	LastModifiedTime string  `json:"last_modified_time,omitempty"`
	QtyTradedToday   int     `json:"qty_traded_today"`
}

// CancelRequest cancels an accepted order.
type CancelRequest struct {
	ClientCode    string `json:"userId"`
	UniqueOrderID string `json:"unique_order_id"`
}

// PlaceResult is the interpreted outcome of a successful order submission.
type PlaceResult struct {
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

// Credentials identify and authenticate one trading account against the
// broker. Immutable for the life of a session.
type Credentials struct {
	APIKey     string `json:"api_key"`
	ClientCode string `json:"userId"`
	Password   string `json:"pin"`
	TOTPSeed   string `json:"totp_key"`
	DOB        string `json:"dob"` // second factor, DD/MM/YYYY
}
