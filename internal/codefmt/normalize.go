package codefmt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedIdentifier means the input carries no digit run.
var ErrMalformedIdentifier = errors.New("malformed security identifier")

var digitRun = regexp.MustCompile(`[0-9]+`)

// Bare extracts the first maximal run of ASCII digits.
func Bare(raw string) (string, error) {
	code := digitRun.FindString(raw)
	if code == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedIdentifier, raw)
	}
	return code, nil
}

// MarketOf classifies a bare code: leading '6' is Shanghai, anything else Shenzhen.
func MarketOf(code string) Market {
	if strings.HasPrefix(code, "6") {
		return Shanghai
	}
	return Shenzhen
}

// Exchange extracts the bare code from raw and classifies it.
func Exchange(raw string) (Market, error) {
	code, err := Bare(raw)
	if err != nil {
		return "", err
	}
	return MarketOf(code), nil
}

// Normalize renders raw in the given convention using the default registry.
// Unknown conventions yield the bare code.
func Normalize(raw, convention string) (string, error) {
	return defaultRegistry.Normalize(raw, convention)
}

// NormalizeMany normalizes every element, preserving order.
func NormalizeMany(raws []string, convention string) ([]string, error) {
	return defaultRegistry.NormalizeMany(raws, convention)
}

// NormalizeOne is the single-string form of NormalizeMany.
func NormalizeOne(raw, convention string) ([]string, error) {
	return defaultRegistry.NormalizeMany([]string{raw}, convention)
}

func (r *Registry) Normalize(raw, convention string) (string, error) {
	code, err := Bare(raw)
	if err != nil {
		return "", err
	}
	conv, ok := r.Lookup(convention)
	if !ok {
		return code, nil
	}
	return conv.rule(MarketOf(code)).apply(code), nil
}

// NormalizeMany stops at the first malformed element and reports its index.
func (r *Registry) NormalizeMany(raws []string, convention string) ([]string, error) {
	out := make([]string, 0, len(raws))
	for i, raw := range raws {
		code, err := r.Normalize(raw, convention)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out = append(out, code)
	}
	return out, nil
}

// ZeroPad left-pads an all-digit code to width. Rosters that ship codes as numbers lose
// their leading zeros ("1" for "000001"). Non-digit input is returned trimmed but unchanged.
func ZeroPad(raw string, width int) string {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) >= width {
		return s
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return s
		}
	}
	return strings.Repeat("0", width-len(s)) + s
}
