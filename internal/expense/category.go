package expense

import "strings"

// Category classifies an expense. The set is fixed; anything the importers
// cannot match is persisted as Other.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryEntertainment Category = "Entertainment"
	CategoryShopping      Category = "Shopping"
	CategoryBillPayments  Category = "Bill Payments"
	CategoryOther         Category = "Other"
)

// Categories returns every valid category in display order.
func Categories() []Category {
	return []Category{
		CategoryFood,
		CategoryTransport,
		CategoryEntertainment,
		CategoryShopping,
		CategoryBillPayments,
		CategoryOther,
	}
}

// CategoryNames returns the category names as plain strings, for prompt and
// schema construction.
func CategoryNames() []string {
	cats := Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return names
}

// IsValid reports whether c is a member of the fixed category set.
func (c Category) IsValid() bool {
	switch c {
	case CategoryFood, CategoryTransport, CategoryEntertainment,
		CategoryShopping, CategoryBillPayments, CategoryOther:
		return true
	}
	return false
}

// ParseCategory matches s against the category set, case-insensitively and
// ignoring surrounding whitespace. The second return is false when s is not a
// recognized category.
func ParseCategory(s string) (Category, bool) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories() {
		if strings.ToLower(string(c)) == needle {
			return c, true
		}
	}
	return "", false
}

// CategoryOrOther returns the parsed category, or Other when s is empty or
// unrecognized. Importers use this when persisting; the Field Mapper does not
// (it leaves unmatched values as provided, see extract.MapRow).
func CategoryOrOther(s string) Category {
	if c, ok := ParseCategory(s); ok {
		return c
	}
	return CategoryOther
}
