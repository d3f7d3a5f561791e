// Package result decodes backtest service responses and reconciles them
// into a display model.
//
// A Result never assumes the response shape. Every field is held raw and
// read through an accessor that checks presence and JSON type, so a
// missing or mistyped field degrades to a placeholder instead of failing
// the whole render.
package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/newthinker/dispersion/internal/core"
)

// Response field names.
const (
	KeyWeights       = "weights"
	KeyFinalPnL      = "final_pnl"
	KeyDates         = "dates"
	KeyPnLs          = "pnls"
	KeyIndexVol      = "index_vol"
	KeyDispersion    = "dispersion"
	KeyComponentVols = "component_vols"
)

// Result is one immutable response snapshot.
type Result struct {
	fields []entry
	index  map[string]int
}

// Entry is a keyed numeric value. OK is false when the raw value was not
// a JSON number.
type Entry struct {
	Key   string
	Value float64
	OK    bool
}

type entry struct {
	key   string
	value json.RawMessage
}

// Decode parses a response body. Anything other than a single JSON object
// is ErrMalformedResponse.
func Decode(data []byte) (*Result, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, core.WrapError(core.ErrMalformedResponse, err)
	}
	r := &Result{fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		r.index[f.key] = i
	}
	return r, nil
}

// Keys returns the top-level keys in response order.
func (r *Result) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.key
	}
	return out
}

// Has reports whether key is present, including explicit nulls.
func (r *Result) Has(key string) bool {
	_, ok := r.raw(key)
	return ok
}

func (r *Result) raw(key string) (json.RawMessage, bool) {
	if r == nil {
		return nil, false
	}
	i, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.fields[i].value, true
}

// Number returns a top-level numeric field.
func (r *Result) Number(key string) (float64, bool) {
	raw, ok := r.raw(key)
	if !ok {
		return 0, false
	}
	return asNumber(raw)
}

// FinalPnL returns final_pnl when it is a number.
func (r *Result) FinalPnL() (float64, bool) { return r.Number(KeyFinalPnL) }

// IndexVol returns index_vol when it is a number.
func (r *Result) IndexVol() (float64, bool) { return r.Number(KeyIndexVol) }

// Dispersion returns dispersion when it is a number.
func (r *Result) Dispersion() (float64, bool) { return r.Number(KeyDispersion) }

// Weights returns the server allocation in response key order. ok is
// false unless weights is a JSON object; an empty object is a present,
// empty allocation.
func (r *Result) Weights() ([]Entry, bool) {
	raw, ok := r.raw(KeyWeights)
	if !ok {
		return nil, false
	}
	return asEntries(raw)
}

// Dates returns the raw dates array.
func (r *Result) Dates() ([]json.RawMessage, bool) {
	raw, ok := r.raw(KeyDates)
	if !ok {
		return nil, false
	}
	return asArray(raw)
}

// PnLs returns the raw pnls array.
func (r *Result) PnLs() ([]json.RawMessage, bool) {
	raw, ok := r.raw(KeyPnLs)
	if !ok {
		return nil, false
	}
	return asArray(raw)
}

// ComponentVols returns component volatilities. keyed is true when the
// service sent a ticker-keyed object; arrays yield entries with empty keys.
func (r *Result) ComponentVols() (vols []Entry, keyed bool, ok bool) {
	raw, present := r.raw(KeyComponentVols)
	if !present {
		return nil, false, false
	}
	if entries, isObj := asEntries(raw); isObj {
		return entries, true, true
	}
	items, isArr := asArray(raw)
	if !isArr {
		return nil, false, false
	}
	vols = make([]Entry, len(items))
	for i, item := range items {
		v, num := asNumber(item)
		vols[i] = Entry{Value: v, OK: num}
	}
	return vols, false, true
}

// KnownKeys lists the response fields the panel reads.
var KnownKeys = []string{KeyWeights, KeyFinalPnL, KeyDates, KeyPnLs, KeyIndexVol, KeyDispersion, KeyComponentVols}

// Usable reports whether key is present and whether it passes the type
// guard its accessor applies.
func (r *Result) Usable(key string) (present, usable bool) {
	if !r.Has(key) {
		return false, false
	}
	switch key {
	case KeyWeights:
		_, usable = r.Weights()
	case KeyDates:
		_, usable = r.Dates()
	case KeyPnLs:
		_, usable = r.PnLs()
	case KeyComponentVols:
		_, _, usable = r.ComponentVols()
	default:
		_, usable = r.Number(key)
	}
	return true, usable
}

// decodeObject reads exactly one JSON object, keeping key order. A
// repeated key keeps its first position and takes the last value.
func decodeObject(data []byte) ([]entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("top-level value is not an object")
	}

	var fields []entry
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("object key is not a string")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if i, dup := seen[key]; dup {
			fields[i].value = value
			continue
		}
		seen[key] = len(fields)
		fields = append(fields, entry{key: key, value: value})
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after object")
	}
	return fields, nil
}

func asEntries(raw json.RawMessage) ([]Entry, bool) {
	if firstByte(raw) != '{' {
		return nil, false
	}
	fields, err := decodeObject(raw)
	if err != nil {
		return nil, false
	}
	out := make([]Entry, len(fields))
	for i, f := range fields {
		v, ok := asNumber(f.value)
		out[i] = Entry{Key: f.key, Value: v, OK: ok}
	}
	return out, true
}

func asArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if firstByte(raw) != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, true
}

// asNumber is a JSON type guard: only number literals pass. Values beyond
// float64 range become ±Inf rather than failing.
func asNumber(raw json.RawMessage) (float64, bool) {
	b := firstByte(raw)
	if b != '-' && (b < '0' || b > '9') {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, true
}

func asString(raw json.RawMessage) (string, bool) {
	if firstByte(raw) != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
