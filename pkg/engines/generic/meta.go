package generic

import (
	"strings"

	"github.com/leapstack-labs/etlite/pkg/core"
)

// Description normalizes meta.description into the "text" parameter: the
// header description, followed by the free-text body when both are given.
func Description(description string, p core.Params) (core.Params, error) {
	var parts []string
	if summary := strings.TrimSpace(description); summary != "" {
		parts = append(parts, summary)
	}
	if body := strings.TrimSpace(p.StringOr("text", "")); body != "" {
		parts = append(parts, body)
	}
	return p.With("text", core.String(strings.Join(parts, "\n\n"))), nil
}

// Owner normalizes meta.owner into the "name" parameter.
func Owner(description string, p core.Params) (core.Params, error) {
	name := p.StringOr("name", "")
	if name == "" {
		name = p.StringOr("text", "")
	}
	if name == "" {
		name = strings.TrimSpace(description)
	}
	if name == "" {
		return p, &core.ParamError{Key: "name", Message: "is required"}
	}
	return p.With("name", core.String(name)), nil
}

// Tags normalizes meta.tags into a "tags" list. Tags may be given as a list
// parameter or as a comma separated description.
func Tags(description string, p core.Params) (core.Params, error) {
	var tags []string
	if p.Has("tags") {
		list, err := p.Strings("tags")
		if err != nil {
			return p, err
		}
		tags = list
	} else {
		source := description
		if text := p.StringOr("text", ""); text != "" {
			source = text
		}
		for _, t := range strings.Split(source, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	values := make([]core.Value, len(tags))
	for i, t := range tags {
		values[i] = core.String(t)
	}
	return p.With("tags", core.List(values...)), nil
}
