package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/etlite/pkg/core"
	"gopkg.in/yaml.v3"
)

// maxDepth bounds nesting of parameter documents.
const maxDepth = 32

// textKey holds a parameter document that is not a mapping, such as the
// free-text body of a meta.description block.
const textKey = "text"

// decodeParams decodes a YAML parameter document. An empty document yields
// empty Params.
func decodeParams(doc string) (core.Params, error) {
	if strings.TrimSpace(doc) == "" {
		return core.Params{}, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
		return core.Params{}, err
	}

	v, err := valueFromNode(&root, 0)
	if err != nil {
		return core.Params{}, err
	}
	if v.IsNull() {
		return core.Params{}, nil
	}
	if m, ok := v.AsMap(); ok {
		return m, nil
	}
	return core.NewParams(core.Entry{Key: textKey, Value: v}), nil
}

func valueFromNode(n *yaml.Node, depth int) (core.Value, error) {
	if depth > maxDepth {
		return core.Value{}, fmt.Errorf("line %d: document nested deeper than %d levels", n.Line, maxDepth)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return core.Null(), nil
		}
		return valueFromNode(n.Content[0], depth)

	case yaml.AliasNode:
		return valueFromNode(n.Alias, depth+1)

	case yaml.ScalarNode:
		return scalarFromNode(n)

	case yaml.SequenceNode:
		items := make([]core.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := valueFromNode(c, depth+1)
			if err != nil {
				return core.Value{}, err
			}
			items = append(items, v)
		}
		return core.List(items...), nil

	case yaml.MappingNode:
		var p core.Params
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return core.Value{}, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			v, err := valueFromNode(val, depth+1)
			if err != nil {
				return core.Value{}, err
			}
			if key.ShortTag() == "!!merge" {
				merged, ok := v.AsMap()
				if !ok {
					return core.Value{}, fmt.Errorf("line %d: merge key requires a mapping", key.Line)
				}
				for _, e := range merged.Entries() {
					if !p.Has(e.Key) {
						p = p.With(e.Key, e.Value)
					}
				}
				continue
			}
			p = p.With(key.Value, v)
		}
		return core.MapOf(p), nil
	}

	return core.Value{}, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func scalarFromNode(n *yaml.Node) (core.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return core.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return core.Value{}, err
		}
		return core.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			// Out of int64 range; keep the literal.
			return core.String(n.Value), nil //nolint:nilerr // literal fallback
		}
		return core.Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return core.Value{}, err
		}
		return core.Float(f), nil
	}
	return core.String(n.Value), nil
}
