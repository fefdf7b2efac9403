package core

import "strings"

// Step is the compiled form of one annotated SQL file.
//
// A Step is built once by the parser and then only read; callers must not
// modify its maps or slices.
type Step struct {
	Path       string
	Meta       map[string]*Block
	Target     *Block
	Strategy   map[string]*Block
	Invariants []*Block
	Tests      []*Block
	Query      string

	// Blocks holds every compiled block in file order.
	Blocks []*Block
}

// Engine returns the declared engine, or DefaultEngine when the step has no
// meta.engine block.
func (s *Step) Engine() string {
	b, ok := s.Meta["engine"]
	if !ok {
		return DefaultEngine
	}
	engine := b.Params.StringOr("type", "")
	if engine == "" {
		return DefaultEngine
	}
	return engine
}

// EngineSettings returns the meta.engine settings mapping, empty when unset.
func (s *Step) EngineSettings() Params {
	b, ok := s.Meta["engine"]
	if !ok {
		return Params{}
	}
	settings, err := b.Params.Map("settings")
	if err != nil {
		return Params{}
	}
	return settings
}

// Description returns the meta.description text. When the block resolved a
// MetaFunc the normalized "text" parameter is used.
func (s *Step) Description() string {
	b, ok := s.Meta["description"]
	if !ok {
		return ""
	}
	params := b.Params
	if fn, ok := b.Impl.(MetaFunc); ok {
		if p, err := fn(b.Description, b.Params); err == nil {
			params = p
		}
	}
	if text := params.StringOr("text", ""); text != "" {
		return text
	}
	return strings.TrimSpace(b.Description)
}

// TargetName returns the target "name" parameter.
func (s *Step) TargetName() string {
	if s.Target == nil {
		return ""
	}
	return s.Target.Params.StringOr("name", "")
}
