package querymap

import "ai-queryrefine-be/pkg/resolver"

// Binding is what a query variable refers to
type Binding struct {
	Label string
	Kind  resolver.EntityKind
}

// SymbolTable maps query variables to bindings for one mapping pass.
// Redeclaring a variable overwrites the previous binding.
type SymbolTable struct {
	bindings map[string]Binding
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{bindings: make(map[string]Binding)}
}

func (s *SymbolTable) Bind(variable, label string, kind resolver.EntityKind) {
	s.bindings[variable] = Binding{Label: label, Kind: kind}
}

func (s *SymbolTable) Lookup(variable string) (Binding, bool) {
	b, ok := s.bindings[variable]
	return b, ok
}

func (s *SymbolTable) Len() int {
	return len(s.bindings)
}
