package codefmt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeExamples(t *testing.T) {
	cases := []struct {
		raw, conv, want string
	}{
		{"000001.SZ", "joinquant", "000001.XSHE"},
		{"600000", "goldminer", "SHSE.600000"},
		{"600000", "jq", "600000.XSHG"},
		{"SH600519", "聚宽", "600519.XSHG"},
		{"000001", "万得", "000001.SZ"},
		{"600000.XSHG", "windcode", "600000.SH"},
		{"300750", "gm", "SZSE.300750"},
		{"600000", "ss", "SH600000"},
		{"002415", "天软", "SZ002415"},
		{"sz000002", "ts", "000002.SZ"},
		{"688981", "挖地兔", "688981.SH"},
		{"  600000 ", " Wind ", "600000.SH"},
		{"SHSE.600000", "plain", "600000"},
	}
	for _, tc := range cases {
		t.Run(tc.raw+"/"+tc.conv, func(t *testing.T) {
			got, err := Normalize(tc.raw, tc.conv)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWindSuffixFollowsLeadingDigit(t *testing.T) {
	for lead := '0'; lead <= '9'; lead++ {
		code := fmt.Sprintf("%c%05d", lead, 12)
		got, err := Normalize(code, "wd")
		require.NoError(t, err)
		if lead == '6' {
			assert.Equal(t, code+".SH", got)
		} else {
			assert.Equal(t, code+".SZ", got)
		}
	}
}

func TestUnknownConventionFallsBackToBareCode(t *testing.T) {
	for _, raw := range []string{"000001.SZ", "SHSE.600000", "600000"} {
		unset, err := Normalize(raw, "")
		require.NoError(t, err)
		unknown, err := Normalize(raw, "unknown-tag")
		require.NoError(t, err)
		bare, err := Bare(raw)
		require.NoError(t, err)
		assert.Equal(t, bare, unset)
		assert.Equal(t, bare, unknown)
	}
}

func TestNormalizeManyPreservesOrder(t *testing.T) {
	in := []string{"600000", "000001.SZ", "SZ300750"}
	got, err := NormalizeMany(in, "joinquant")
	require.NoError(t, err)
	require.Len(t, got, len(in))
	for i, raw := range in {
		one, err := Normalize(raw, "joinquant")
		require.NoError(t, err)
		assert.Equal(t, one, got[i])
	}

	single, err := NormalizeOne("600000", "gm")
	require.NoError(t, err)
	assert.Equal(t, []string{"SHSE.600000"}, single)
}

func TestMalformedIdentifier(t *testing.T) {
	_, err := Normalize("", "wind")
	assert.True(t, errors.Is(err, ErrMalformedIdentifier))

	_, err = Normalize("SHSE.", "")
	assert.ErrorIs(t, err, ErrMalformedIdentifier)

	_, err = NormalizeMany([]string{"600000", "n/a"}, "wind")
	assert.ErrorIs(t, err, ErrMalformedIdentifier)
	assert.Contains(t, err.Error(), "index 1")

	_, err = Exchange("abc")
	assert.ErrorIs(t, err, ErrMalformedIdentifier)
}

func TestExchange(t *testing.T) {
	m, err := Exchange("600000.SH")
	require.NoError(t, err)
	assert.Equal(t, Shanghai, m)

	m, err = Exchange("430047")
	require.NoError(t, err)
	assert.Equal(t, Shenzhen, m)
}

func TestZeroPad(t *testing.T) {
	assert.Equal(t, "000001", ZeroPad("1", 6))
	assert.Equal(t, "000001", ZeroPad(" 000001 ", 6))
	assert.Equal(t, "A1", ZeroPad("A1", 6))
	assert.Equal(t, "", ZeroPad("", 6))
}

func TestRegistryIsATable(t *testing.T) {
	r := NewRegistry(append(DefaultRegistry().Conventions(), Convention{
		Name:     "bloomberg",
		Aliases:  []string{"bbg"},
		Shanghai: Rule{Suffix: " CH"},
		Shenzhen: Rule{Suffix: " CH"},
	})...)
	got, err := r.Normalize("600000", "BBG")
	require.NoError(t, err)
	assert.Equal(t, "600000 CH", got)

	conv, ok := r.Lookup("wd")
	require.True(t, ok)
	assert.Equal(t, Wind, conv.Name)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)

	assert.Panics(t, func() {
		NewRegistry(Convention{Name: "a", Aliases: []string{"x"}}, Convention{Name: "b", Aliases: []string{"X"}})
	})
}
