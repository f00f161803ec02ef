// Package catalog resolves free-text service selections against the lab's
// service price list.
package catalog

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Entry is one row of the service price list.
type Entry struct {
	Service string `csv:"Service" json:"service"`
	Price   string `csv:"Price" json:"price"`
}

// UnitPrice parses the entry price. A blank price is zero.
func (e Entry) UnitPrice() (decimal.Decimal, error) {
	raw := strings.TrimSpace(e.Price)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("catalog: price %q for %q: %w", e.Price, e.Service, err)
	}
	return d, nil
}

// Catalog is the ordered service price list.
type Catalog []Entry

// Names returns the service names in catalog order.
func (c Catalog) Names() []string {
	return lo.Map(c, func(e Entry, _ int) string { return e.Service })
}

// Matcher decides whether a catalog service was requested by a selection text.
type Matcher interface {
	Match(selection, service string) bool
}

// SubstringMatcher matches when the service name occurs anywhere in the
// selection. Blank service names never match.
type SubstringMatcher struct{}

// Match implements Matcher.
func (SubstringMatcher) Match(selection, service string) bool {
	if service == "" {
		return false
	}
	return strings.Contains(selection, service)
}

// Resolve returns the entries requested by selection using SubstringMatcher.
func Resolve(selection string, c Catalog) []Entry {
	return ResolveWith(SubstringMatcher{}, selection, c)
}

// ResolveWith returns every entry m matches against selection, in catalog
// order. No match yields an empty slice.
func ResolveWith(m Matcher, selection string, c Catalog) []Entry {
	return lo.Filter(c, func(e Entry, _ int) bool {
		return m.Match(selection, e.Service)
	})
}

// Exemptions is the set of services billed at a flat price regardless of
// sample count.
type Exemptions map[string]struct{}

// NewExemptions builds the set from the services named in c.
func NewExemptions(c Catalog) Exemptions {
	set := make(Exemptions, len(c))
	for _, name := range c.Names() {
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

// Contains reports whether service is billed at a flat price.
func (e Exemptions) Contains(service string) bool {
	_, ok := e[service]
	return ok
}
