package catalog

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// scripRecord maps the scrip-master columns the lookup needs. Headers are
// lowercased before unmarshalling, mirroring how the feed is normalized
// upstream; numeric columns arrive as free-form text (blank, "25", "25.0",
// "nan") and are parsed leniently.
type scripRecord struct {
	ShortName string `csv:"scripshortname"`
	FullName  string `csv:"scripname"`
	Code      string `csv:"scripcode"`
	MarketLot string `csv:"marketlot"`
}

// parseScripMaster parses a raw delimited scrip-master body into table
// entries in file order. Rows without a usable scrip code are dropped.
func parseScripMaster(raw []byte) ([]entry, error) {
	normalized, err := normalizeHeader(raw)
	if err != nil {
		return nil, err
	}

	var records []*scripRecord
	if err := gocsv.UnmarshalBytes(normalized, &records); err != nil {
		return nil, fmt.Errorf("unmarshal scrip master: %w", err)
	}

	table := make([]entry, 0, len(records))
	for _, rec := range records {
		code, ok := parseCode(rec.Code)
		if !ok {
			continue
		}
		table = append(table, entry{
			shortName: strings.TrimSpace(rec.ShortName),
			fullName:  strings.TrimSpace(rec.FullName),
			code:      code,
			lotSize:   parseLotSize(rec.MarketLot),
		})
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("scrip master contained no usable rows")
	}
	return table, nil
}

// normalizeHeader lowercases and trims the header row so csv tags match
// regardless of the feed's column casing.
func normalizeHeader(raw []byte) ([]byte, error) {
	r := bufio.NewReader(bytes.NewReader(raw))
	header, err := r.ReadString('\n')
	if err != nil && header == "" {
		return nil, fmt.Errorf("scrip master is empty")
	}

	cols := strings.Split(strings.TrimRight(header, "\r\n"), ",")
	for i, c := range cols {
		cols[i] = strings.ToLower(strings.TrimSpace(c))
	}

	var buf bytes.Buffer
	buf.WriteString(strings.Join(cols, ","))
	buf.WriteByte('\n')
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseCode(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
		return int(f), true
	}
	return 0, false
}

// parseLotSize is total: anything absent or not a number collapses to 1.
func parseLotSize(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && f > 0 {
		return int(f)
	}
	return 1
}
