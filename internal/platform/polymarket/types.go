package polymarket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polyhub/internal/domain"
)

// --------------------------------------------------------------------------
// Boundary coercion types
//
// Gamma is loose about scalar types: numerics arrive as numbers or numeric
// strings, booleans as bools or "true"/"false", and the outcome arrays as
// JSON-encoded strings. Every ambiguity is resolved here; none of these
// types ever fail a decode.
// --------------------------------------------------------------------------

// FlexFloat is a numeric field that may be absent, null, a JSON number or a
// numeric string. Valid is false when the value was absent or unparsable.
type FlexFloat struct {
	Value float64
	Valid bool
}

// Float returns a present FlexFloat.
func Float(v float64) FlexFloat { return FlexFloat{Value: v, Valid: true} }

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	if v, ok := ParseNumber(data); ok {
		*f = FlexFloat{Value: v, Valid: true}
	}
	return nil
}

// Or returns the value when present, otherwise def.
func (f FlexFloat) Or(def float64) float64 {
	if f.Valid {
		return f.Value
	}
	return def
}

// ParseNumber coerces a raw JSON value (number or numeric string) into a
// finite float64. Anything else reports false.
func ParseNumber(data []byte) (float64, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0, false
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// OptBool is a boolean that remembers whether it was present, so "active is
// not explicitly false" can be told apart from "active is missing".
type OptBool struct {
	Value bool
	Valid bool
}

// Bool returns a present OptBool.
func Bool(v bool) OptBool { return OptBool{Value: v, Valid: true} }

func (b *OptBool) UnmarshalJSON(data []byte) error {
	*b = OptBool{}
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = OptBool{Value: v, Valid: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		*b = OptBool{Value: true, Valid: true}
	case "false", "0":
		*b = OptBool{Value: false, Valid: true}
	}
	return nil
}

// IsFalse reports whether the field was present and false.
func (b OptBool) IsFalse() bool { return b.Valid && !b.Value }

// IsTrue reports whether the field was present and true.
func (b OptBool) IsTrue() bool { return b.Valid && b.Value }

// JSONList holds an array that Gamma sends either as a native JSON array or
// as a string containing a JSON-encoded array (e.g. "[\"Yes\",\"No\"]").
// Decoding is deferred to Elements so a malformed payload only affects the
// record that carries it.
type JSONList struct {
	raw []byte
}

// ListOf builds a JSONList from its JSON-encoded text.
func ListOf(encoded string) JSONList { return JSONList{raw: []byte(encoded)} }

func (l *JSONList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	l.raw = nil
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		l.raw = []byte(s)
		return nil
	}
	l.raw = append([]byte(nil), data...)
	return nil
}

// IsZero reports whether the list was absent or empty text.
func (l JSONList) IsZero() bool { return len(bytes.TrimSpace(l.raw)) == 0 }

// Elements decodes the list into its raw elements.
func (l JSONList) Elements() ([]json.RawMessage, error) {
	if l.IsZero() {
		return nil, fmt.Errorf("%w: empty list", domain.ErrDecode)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(l.raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return elems, nil
}

// Strings decodes the list as an array of strings. Every element must be a
// JSON string.
func (l JSONList) Strings() ([]string, error) {
	elems, err := l.Elements()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(elems))
	for i, e := range elems {
		var s string
		if err := json.Unmarshal(e, &s); err != nil {
			return nil, fmt.Errorf("%w: element %d is not a string", domain.ErrDecode, i)
		}
		out = append(out, s)
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APITag is a tag or category label attached to events and markets.
type APITag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// APIEventRef is the parent-event back-reference present on /markets items.
type APIEventRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// APIEvent represents an event as returned by the Polymarket Gamma API.
// An event groups one or more related markets; the nested markets are only
// reliably populated by the event detail endpoint.
type APIEvent struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	StartDate   string      `json:"startDate"`
	EndDate     string      `json:"endDate"`
	CreatedAt   string      `json:"createdAt"`
	Active      OptBool     `json:"active"`
	Closed      OptBool     `json:"closed"`
	Volume      FlexFloat   `json:"volume"`
	Volume24hr  FlexFloat   `json:"volume24hr"`
	Liquidity   FlexFloat   `json:"liquidity"`
	Markets     []APIMarket `json:"markets"`
	Tags        []APITag    `json:"tags"`
	Categories  []APITag    `json:"categories"`
}

// Listed reports whether the event is open for display: not closed and not
// explicitly inactive.
func (e *APIEvent) Listed() bool {
	return !e.Closed.IsTrue() && !e.Active.IsFalse()
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID                string        `json:"id"`
	Question          string        `json:"question"`
	Slug              string        `json:"slug"`
	Description       string        `json:"description"`
	Outcomes          JSONList      `json:"outcomes"`      // e.g. "[\"Yes\",\"No\"]"
	OutcomePrices     JSONList      `json:"outcomePrices"` // e.g. "[\"0.5\",\"0.5\"]"
	Volume            FlexFloat     `json:"volume"`
	VolumeNum         FlexFloat     `json:"volumeNum"`
	Liquidity         FlexFloat     `json:"liquidity"`
	LiquidityNum      FlexFloat     `json:"liquidityNum"`
	Volume24hr        FlexFloat     `json:"volume24hr"`
	OneDayPriceChange FlexFloat     `json:"oneDayPriceChange"`
	StartDate         string        `json:"startDate"`
	EndDate           string        `json:"endDate"`
	CreatedAt         string        `json:"createdAt"`
	Active            OptBool       `json:"active"`
	Closed            OptBool       `json:"closed"`
	Featured          OptBool       `json:"featured"`
	New               OptBool       `json:"new"`
	Events            []APIEventRef `json:"events"`
	Tags              []APITag      `json:"tags"`
	Categories        []APITag      `json:"categories"`
}

// Listed reports whether the market is open for display: not closed and not
// explicitly inactive.
func (m *APIMarket) Listed() bool {
	return !m.Closed.IsTrue() && !m.Active.IsFalse()
}

// TotalVolume prefers the numeric volumeNum field and falls back to the
// string-typed volume field. Missing values count as zero.
func (m *APIMarket) TotalVolume() float64 {
	if m.VolumeNum.Valid {
		return m.VolumeNum.Value
	}
	return m.Volume.Or(0)
}

// TotalLiquidity mirrors TotalVolume for the liquidity fields.
func (m *APIMarket) TotalLiquidity() float64 {
	if m.LiquidityNum.Valid {
		return m.LiquidityNum.Value
	}
	return m.Liquidity.Or(0)
}
