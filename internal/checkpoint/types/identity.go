package types

import "strings"

// Category is the visitor category tag carried by every entry request.
// Strategy selection is a pure function of this tag.
type Category string

const (
	CategoryVisitor    Category = "visitor"
	CategoryContractor Category = "contractor"
	CategorySupplier   Category = "supplier"
)

// Categories lists every category the engine knows about.
var Categories = []Category{CategoryVisitor, CategoryContractor, CategorySupplier}

// ParseCategory normalises s and reports whether it names a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryVisitor, CategoryContractor, CategorySupplier:
		return c, true
	default:
		return "", false
	}
}

// CanonicalKey is the single form identity and vehicle keys are stored and
// compared in: trimmed and upper-cased.
func CanonicalKey(k string) string {
	return strings.ToUpper(strings.TrimSpace(k))
}

// Identity is the person a visit belongs to.
type Identity struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
}
