package source

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// record is one JSON object from a provider table, indexed by column name.
type record map[string]gjson.Result

// decodeRecords splits a JSON array of objects. Column names are provider spellings, which
// may contain characters with meaning in gjson paths, so objects are walked instead of queried.
func decodeRecords(body []byte) ([]record, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json payload (%d bytes)", len(body))
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("expected json array, got %s", root.Type)
	}
	out := make([]record, 0, len(root.Array()))
	root.ForEach(func(_, value gjson.Result) bool {
		rec := make(record)
		value.ForEach(func(k, v gjson.Result) bool {
			rec[k.String()] = v
			return true
		})
		out = append(out, rec)
		return true
	})
	return out, nil
}

// pick returns the first present, non-null column among keys.
func (r record) pick(keys ...string) (gjson.Result, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v.Type != gjson.Null {
			return v, true
		}
	}
	return gjson.Result{}, false
}

func (r record) str(keys ...string) string {
	v, ok := r.pick(keys...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.String())
}

func (r record) num(keys ...string) decimal.NullDecimal {
	v, ok := r.pick(keys...)
	if !ok {
		return decimal.NullDecimal{}
	}
	raw := v.Raw
	if v.Type == gjson.String {
		raw = strings.TrimSuffix(strings.TrimSpace(v.Str), "%")
	}
	switch raw {
	case "", "-", "--", "NaN", "nan", "None":
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func (r record) integer(keys ...string) int {
	v, ok := r.pick(keys...)
	if !ok {
		return 0
	}
	return int(v.Int())
}
