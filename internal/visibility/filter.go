package visibility

import (
	"strings"

	"farmtrace/marketplace-backend/internal/catalog"
	"farmtrace/marketplace-backend/internal/viewer"
)

// Criteria are the viewer's search box and category selection
type Criteria struct {
	Search   string `form:"q"`
	Category string `form:"category"`
}

// Filter computes what a viewer may see. It holds no state besides the matcher
// and is safe for concurrent use.
type Filter struct {
	Matcher JurisdictionMatcher
}

func NewFilter(matcher JurisdictionMatcher) *Filter {
	if matcher == nil {
		matcher = SubstringMatcher{}
	}
	return &Filter{Matcher: matcher}
}

// Visible returns the products v may see under c, in the input order.
// The search text is matched as typed, surrounding spaces included.
func (f *Filter) Visible(products []catalog.Product, v viewer.Viewer, c Criteria) []catalog.Product {
	query := fold(c.Search)
	category := strings.TrimSpace(c.Category)

	out := make([]catalog.Product, 0, len(products))
	for i := range products {
		p := &products[i]
		if f.Allows(v, p) && matchesSearch(p, query) && matchesCategory(p, category) {
			out = append(out, *p)
		}
	}
	return out
}

// Narrow applies only the search and category predicates
func Narrow(products []catalog.Product, c Criteria) []catalog.Product {
	query := fold(c.Search)
	category := strings.TrimSpace(c.Category)

	out := make([]catalog.Product, 0, len(products))
	for i := range products {
		if matchesSearch(&products[i], query) && matchesCategory(&products[i], category) {
			out = append(out, products[i])
		}
	}
	return out
}

// Allows applies the role and jurisdiction rules to a single product. Admins
// see every status inside their jurisdiction; everyone else sees APPROVED only.
func (f *Filter) Allows(v viewer.Viewer, p *catalog.Product) bool {
	switch v := v.(type) {
	case viewer.Admin:
		if v.IsCentral() {
			return true
		}
		return f.matcher().Matches(v.AssignedArea, p)
	default:
		return p.Verification.Status == catalog.StatusApproved
	}
}

func (f *Filter) matcher() JurisdictionMatcher {
	if f.Matcher == nil {
		return SubstringMatcher{}
	}
	return f.Matcher
}

func matchesSearch(p *catalog.Product, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(fold(p.Name), query) ||
		strings.Contains(fold(p.FarmerName), query) ||
		strings.Contains(fold(p.RegionCode), query)
}

func matchesCategory(p *catalog.Product, category string) bool {
	if category == "" || category == catalog.CategoryAll {
		return true
	}
	return p.Category == category
}
