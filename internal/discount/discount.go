// Package discount computes the category discount applied to listed prices.
package discount

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Config is the discount in force for one listing.
type Config struct {
	Percent    int
	Categories map[int64]struct{}
}

// NewConfig builds a Config from a percent and the raw comma-separated category list.
func NewConfig(percent int, categories string) Config {
	return Config{Percent: percent, Categories: ParseCategories(categories)}
}

// Enabled reports whether any price can be reduced under c.
func (c Config) Enabled() bool {
	return c.Percent > 0 && len(c.Categories) > 0
}

// Eligible reports whether products of categoryID are discounted under c.
func (c Config) Eligible(categoryID int64) bool {
	if !c.Enabled() {
		return false
	}
	_, ok := c.Categories[categoryID]
	return ok
}

// CategoryList returns the eligible categories in ascending order.
func (c Config) CategoryList() []int64 {
	ids := make([]int64, 0, len(c.Categories))
	for id := range c.Categories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Apply returns price reduced by c.Percent when categoryID is eligible, rounded
// to whole units half-to-even. Otherwise price is returned unchanged.
func Apply(price decimal.Decimal, categoryID int64, c Config) decimal.Decimal {
	if !c.Eligible(categoryID) {
		return price
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(c.Percent))).Div(hundred)
	return price.Mul(factor).RoundBank(0)
}

// ParseCategories parses a comma-separated list of category ids. Blank and
// non-integer tokens are dropped.
func ParseCategories(raw string) map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			continue
		}
		out[id] = struct{}{}
	}
	return out
}
