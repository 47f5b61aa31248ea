// Package mofsl is an HTTP client for the Motilal Oswal (MOFSL) OpenAPI.
// It covers routes, fingerprint headers, the JSON request/response exchange
// and scrip-master downloads. Authentication state lives with the caller;
// every request carries an Auth block so one Client serves many accounts.
//
// Usage example:
//
//	c := mofsl.NewClient(mofsl.Config{})
//	env, err := c.DoJSON(ctx, http.MethodPost, mofsl.RouteLogin, auth, payload)
//	if err != nil { ... }
//	if !env.OK() { ... }
package mofsl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Route keys for the MOFSL endpoint table.
const (
	RouteLogin         = "api.login"
	RouteLogout        = "api.logout"
	RouteOrderPlace    = "api.order.place"
	RouteOrderModify   = "api.order.modify"
	RouteOrderCancel   = "api.order.cancel"
	RouteLTP           = "api.report.ltp"
	RouteBrokerage     = "api.report.brokerage"
	RouteMarginDetail  = "api.report.margindetail"
	RouteMarginSummary = "api.report.marginsummary"
	RouteOrderBook     = "api.book.orders"
	RouteTradeBook     = "api.book.trades"
	RoutePositions     = "api.book.positions"
	RouteHoldings      = "api.report.holdings"
)

var routes = map[string]string{
	RouteLogin:  "/rest/login/v3/authdirectapi",
	RouteLogout: "/rest/login/v1/logout",

	RouteOrderPlace:  "/rest/trans/v1/placeorder",
	RouteOrderModify: "/rest/trans/v2/modifyorder",
	RouteOrderCancel: "/rest/trans/v1/cancelorder",

	RouteLTP:           "/rest/report/v1/getltpdata",
	RouteBrokerage:     "/rest/report/v1/getbrokeragedetail",
	RouteMarginDetail:  "/rest/report/v1/getreportmargindetail",
	RouteMarginSummary: "/rest/report/v1/getreportmarginsummary",
	RouteHoldings:      "/rest/report/v1/getdpholding",

	RouteOrderBook: "/rest/book/v2/getorderbook",
	RouteTradeBook: "/rest/book/v1/gettradebook",
	RoutePositions: "/rest/book/v1/getposition",
}

const (
	defaultBaseURL   = "https://openapi.motilaloswal.com"
	defaultUserAgent = "MOSL/V.1.1.0"
	defaultSourceID  = "WEB"
	defaultTimeout   = 10 * time.Second
)

// Config configures the shared MOFSL transport.
type Config struct {
	BaseURL   string        // default: https://openapi.motilaloswal.com
	UserAgent string        // default: MOSL/V.1.1.0
	SourceID  string        // default: WEB
	Timeout   time.Duration // default: 10s

	// Device fingerprint headers required by the broker.
	ClientLocalIP  string // default: 127.0.0.1
	ClientPublicIP string
	MACAddress     string

	// Observe, when set, is called after every round trip with the route
	// key, the HTTP status (0 on network error) and the elapsed time.
	Observe func(route string, status int, elapsed time.Duration)
}

// Auth carries the per-account values that go out on every request.
// Token is empty before login.
type Auth struct {
	APIKey     string
	ClientCode string
	Token      string
}

// Client is the shared HTTP transport to the broker. Safe for concurrent
// use by multiple accounts.
type Client struct {
	baseURL    string
	userAgent  string
	sourceID   string
	localIP    string
	publicIP   string
	macAddress string

	observe    func(route string, status int, elapsed time.Duration)
	httpClient *http.Client
}

// NewClient builds a Client, filling unset Config fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.SourceID == "" {
		cfg.SourceID = defaultSourceID
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ClientLocalIP == "" {
		cfg.ClientLocalIP = "127.0.0.1"
	}
	if cfg.ClientPublicIP == "" {
		cfg.ClientPublicIP = "127.0.0.1"
	}
	if cfg.MACAddress == "" {
		cfg.MACAddress = "00:00:00:00:00:00"
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		sourceID:   cfg.SourceID,
		localIP:    cfg.ClientLocalIP,
		publicIP:   cfg.ClientPublicIP,
		macAddress: cfg.MACAddress,
		observe:    cfg.Observe,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) observed(route string, status int, started time.Time) {
	if c.observe != nil {
		c.observe(route, status, time.Since(started))
	}
}

// BaseURL returns the configured broker root.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) requestHeaders(auth Auth) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("User-Agent", c.userAgent)
	h.Set("ApiKey", auth.APIKey)
	h.Set("ClientLocalIp", c.localIP)
	h.Set("ClientPublicIp", c.publicIP)
	h.Set("MacAddress", c.macAddress)
	h.Set("SourceId", c.sourceID)
	h.Set("vendorinfo", auth.ClientCode)
	h.Set("osname", "Windows 10")
	h.Set("osversion", "10.0.19041")
	h.Set("devicemodel", "AHV")
	h.Set("manufacturer", "DELL")
	h.Set("productname", "broker-bridge")
	h.Set("productversion", "1.0.0")
	h.Set("browsername", "Chrome")
	h.Set("browserversion", "120.0")
	if auth.Token != "" {
		h.Set("Authorization", auth.Token)
	}
	return h
}

// DoJSON sends a JSON request to a named route and decodes the broker's
// structured envelope. A non-2xx status or an undecodable body is reported
// as *RemoteError; interpreting the envelope's SUCCESS/FAILURE discriminator
// is the caller's job.
func (c *Client) DoJSON(ctx context.Context, method, route string, auth Auth, payload any) (*Envelope, error) {
	uri, ok := routes[route]
	if !ok {
		return nil, fmt.Errorf("mofsl: unknown route %q", route)
	}

	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mofsl: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+uri, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = c.requestHeaders(auth)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observed(route, 0, started)
		return nil, &RemoteError{Err: err}
	}
	defer resp.Body.Close()
	c.observed(route, resp.StatusCode, started)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(raw), Err: err}
	}
	env.Raw = raw
	return &env, nil
}

// FetchScripMaster downloads the bulk instrument reference table for one
// exchange. The body is plain delimited text with a header row.
func (c *Client) FetchScripMaster(ctx context.Context, exchange string) ([]byte, error) {
	url := c.baseURL + "/getscripmastercsv?name=" + exchange
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observed("api.scripmaster", 0, started)
		return nil, &RemoteError{Err: err}
	}
	defer resp.Body.Close()
	c.observed("api.scripmaster", resp.StatusCode, started)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
