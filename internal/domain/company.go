package domain

import (
	"slices"
	"strings"
)

// CompanyID identifies one affiliated company, e.g. "g3" or "acme".
type CompanyID string

// NormalizeCompanyID canonicalizes a company key.
func NormalizeCompanyID(id CompanyID) CompanyID {
	return CompanyID(strings.ToLower(strings.TrimSpace(string(id))))
}

// Affiliations is the set of companies a contact or project is flagged for.
// Values are kept normalized, sorted, and unique.
type Affiliations []CompanyID

// NewAffiliations normalizes raw company keys into a set.
func NewAffiliations(ids ...CompanyID) (Affiliations, error) {
	out := make(Affiliations, 0, len(ids))
	for _, id := range ids {
		id = NormalizeCompanyID(id)
		if id == "" {
			return nil, ErrInvalidCompanyID
		}
		if strings.ContainsAny(string(id), " ,\t\n") {
			return nil, ErrInvalidCompanyID
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// ParseAffiliations splits a comma separated list ("g3, acme") into a set.
func ParseAffiliations(raw string) (Affiliations, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Affiliations{}, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]CompanyID, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		ids = append(ids, CompanyID(part))
	}
	return NewAffiliations(ids...)
}

// Empty reports whether no company flag is set.
func (a Affiliations) Empty() bool {
	return len(a) == 0
}

// Has reports whether the company flag is set.
func (a Affiliations) Has(id CompanyID) bool {
	_, ok := slices.BinarySearch(a, NormalizeCompanyID(id))
	return ok
}

// Intersects reports whether both sets share at least one company.
func (a Affiliations) Intersects(other Affiliations) bool {
	for _, id := range a {
		if other.Has(id) {
			return true
		}
	}
	return false
}

// With returns a copy with the company flag set.
func (a Affiliations) With(id CompanyID) Affiliations {
	out, err := NewAffiliations(append(slices.Clone(a), id)...)
	if err != nil {
		return slices.Clone(a)
	}
	return out
}

// Without returns a copy with the company flag cleared.
func (a Affiliations) Without(id CompanyID) Affiliations {
	id = NormalizeCompanyID(id)
	return slices.DeleteFunc(slices.Clone(a), func(v CompanyID) bool { return v == id })
}

// Strings returns the company keys as plain strings.
func (a Affiliations) Strings() []string {
	out := make([]string, 0, len(a))
	for _, id := range a {
		out = append(out, string(id))
	}
	return out
}

// String renders the set as a comma separated list.
func (a Affiliations) String() string {
	return strings.Join(a.Strings(), ",")
}
