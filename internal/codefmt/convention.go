package codefmt

import "strings"

// Market is the listing venue derived from the leading digit of a bare code.
type Market string

const (
	Shanghai Market = "SH"
	Shenzhen Market = "SZ"
)

// Rule renders a bare code as Prefix + code + Suffix.
type Rule struct {
	Prefix string
	Suffix string
}

func (r Rule) apply(code string) string { return r.Prefix + code + r.Suffix }

// Convention is one provider spelling of a security code.
type Convention struct {
	Name     string
	Aliases  []string
	Shanghai Rule
	Shenzhen Rule
}

func (c Convention) rule(m Market) Rule {
	if m == Shanghai {
		return c.Shanghai
	}
	return c.Shenzhen
}

// Convention names.
const (
	Plain     = "plain"
	JoinQuant = "joinquant"
	Wind      = "wind"
	GoldMiner = "goldminer"
	SkySoft   = "skysoft"
	Tushare   = "tushare"
)

var defaultConventions = []Convention{
	{Name: Plain, Aliases: []string{"plain", ""}},
	{
		Name:     JoinQuant,
		Aliases:  []string{"jq", "joinquant", "聚宽"},
		Shanghai: Rule{Suffix: ".XSHG"},
		Shenzhen: Rule{Suffix: ".XSHE"},
	},
	{
		Name:     Wind,
		Aliases:  []string{"wd", "windcode", "wind", "万得"},
		Shanghai: Rule{Suffix: ".SH"},
		Shenzhen: Rule{Suffix: ".SZ"},
	},
	{
		Name:     GoldMiner,
		Aliases:  []string{"gm", "goldminer", "掘金"},
		Shanghai: Rule{Prefix: "SHSE."},
		Shenzhen: Rule{Prefix: "SZSE."},
	},
	{
		Name:     SkySoft,
		Aliases:  []string{"ss", "skysoft", "天软"},
		Shanghai: Rule{Prefix: "SH"},
		Shenzhen: Rule{Prefix: "SZ"},
	},
	{
		Name:     Tushare,
		Aliases:  []string{"ts", "tushare", "挖地兔"},
		Shanghai: Rule{Suffix: ".SH"},
		Shenzhen: Rule{Suffix: ".SZ"},
	},
}

// Registry maps convention aliases to rules. It is immutable after construction and safe for
// concurrent use.
type Registry struct {
	conventions []Convention
	byAlias     map[string]int
}

// NewRegistry panics on an alias claimed by two conventions.
func NewRegistry(conventions ...Convention) *Registry {
	r := &Registry{byAlias: make(map[string]int)}
	for _, c := range conventions {
		idx := len(r.conventions)
		r.conventions = append(r.conventions, c)
		for _, a := range append([]string{c.Name}, c.Aliases...) {
			key := aliasKey(a)
			if prev, ok := r.byAlias[key]; ok && prev != idx {
				panic("codefmt: alias " + a + " registered twice")
			}
			r.byAlias[key] = idx
		}
	}
	return r
}

var defaultRegistry = NewRegistry(defaultConventions...)

// DefaultRegistry returns the built-in table.
func DefaultRegistry() *Registry { return defaultRegistry }

func aliasKey(tag string) string { return strings.ToLower(strings.TrimSpace(tag)) }

// Lookup resolves a tag (case-insensitive, trimmed) to its convention.
func (r *Registry) Lookup(tag string) (Convention, bool) {
	idx, ok := r.byAlias[aliasKey(tag)]
	if !ok {
		return Convention{}, false
	}
	return r.conventions[idx], true
}

// Conventions returns the table in registration order.
func (r *Registry) Conventions() []Convention {
	out := make([]Convention, len(r.conventions))
	copy(out, r.conventions)
	return out
}
