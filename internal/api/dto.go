package api

import (
	"encoding/json"
	"net/http"
)

// response is the envelope every endpoint answers with. Status mirrors the
// upstream broker convention: true on success, false with a message otherwise.
type response struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type loginResponse struct {
	ClientCode string  `json:"userId"`
	Token      string  `json:"token"`
	Funds      float64 `json:"funds"`
}

type quoteRequest struct {
	ClientCode string `json:"userId"`
	Symbol     string `json:"symbol"`
	Exchange   string `json:"exchange"`
}

type brokerageRequest struct {
	ClientCode string `json:"userId"`
	Exchange   string `json:"exchange"`
	Series     string `json:"series"`
}

type accountRequest struct {
	ClientCode string `json:"userId"`
}

type catalogLoadRequest struct {
	Exchanges []string `json:"exchanges"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, response{Status: true, Data: data})
}

// writeRaw forwards an already-encoded broker envelope untouched.
func writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Status: false, Message: msg})
}

func decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
