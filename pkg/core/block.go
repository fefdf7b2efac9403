package core

// Block is one resolved annotation of a step file.
type Block struct {
	Category    Category
	Kind        string
	Params      Params
	Impl        Implementation // nil for meta.engine
	Description string

	// Line is the raw header text after "-- @" and LineNo its 1-based line
	// in the source file. Both are kept for error reporting.
	Line   string
	LineNo int
}

// Ref returns the "category.kind" reference of the block.
func (b *Block) Ref() string {
	return string(b.Category) + "." + b.Kind
}

// Name returns the "name" parameter, falling back to the kind. Tests and
// invariants are reported under this name.
func (b *Block) Name() string {
	if name := b.Params.StringOr("name", ""); name != "" {
		return name
	}
	return b.Kind
}
