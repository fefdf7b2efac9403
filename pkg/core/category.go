package core

// Category is the first component of an annotation header, e.g. "invariant"
// in "-- @invariant.sum".
type Category string

// Annotation categories. The set is closed: any other category is rejected
// when a step is assembled.
const (
	CategoryMeta      Category = "meta"
	CategoryTarget    Category = "target"
	CategoryStrategy  Category = "strategy"
	CategoryInvariant Category = "invariant"
	CategoryTest      Category = "test"
)

// DefaultEngine is the generic engine every implementation set falls back to.
const DefaultEngine = "sql"

// Categories lists the known categories in declaration order.
var Categories = []Category{
	CategoryMeta,
	CategoryTarget,
	CategoryStrategy,
	CategoryInvariant,
	CategoryTest,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryMeta, CategoryTarget, CategoryStrategy, CategoryInvariant, CategoryTest:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
