package graph

// =============================================================================
// Builder
// =============================================================================

// Builder assembles a Graph. It is not safe for concurrent use.
type Builder struct {
	index       map[string]int
	descriptors []Descriptor
	duplicates  []string
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		index: make(map[string]int),
	}
}

// Add appends a descriptor. References found in its attributes are merged
// into its reference list after any explicitly listed ones, without
// repetition. A descriptor whose identity is already present is not added;
// its identity is recorded as a duplicate instead.
func (b *Builder) Add(d Descriptor) {
	if _, exists := b.index[d.Identity]; exists {
		b.duplicates = append(b.duplicates, d.Identity)
		return
	}
	if d.Attributes == nil {
		d.Attributes = make(map[string]any)
	}
	d.References = mergeReferences(d.Identity, d.References, collectRefs(d.Attributes))

	b.index[d.Identity] = len(b.descriptors)
	b.descriptors = append(b.descriptors, d)
}

// Build returns the assembled graph. The builder may keep being used; later
// additions do not affect graphs already built.
func (b *Builder) Build() *Graph {
	g := &Graph{
		index:       make(map[string]int, len(b.index)),
		descriptors: make([]Descriptor, len(b.descriptors)),
		duplicates:  append([]string(nil), b.duplicates...),
	}
	copy(g.descriptors, b.descriptors)
	for id, i := range b.index {
		g.index[id] = i
	}
	return g
}

func mergeReferences(self string, explicit, found []string) []string {
	seen := make(map[string]bool, len(explicit)+len(found))
	out := make([]string, 0, len(explicit)+len(found))
	for _, list := range [][]string{explicit, found} {
		for _, id := range list {
			if id == self || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// =============================================================================
// Graph
// =============================================================================

// Graph is an immutable set of descriptors keyed by identity.
// Descriptors are kept in insertion order, which the resolver makes
// deterministic.
type Graph struct {
	index       map[string]int
	descriptors []Descriptor
	duplicates  []string
}

// Len returns the number of descriptors.
func (g *Graph) Len() int {
	return len(g.descriptors)
}

// Get returns the descriptor with the given identity.
func (g *Graph) Get(identity string) (Descriptor, bool) {
	i, ok := g.index[identity]
	if !ok {
		return Descriptor{}, false
	}
	return g.descriptors[i], true
}

// Has reports whether a descriptor with the given identity exists.
func (g *Graph) Has(identity string) bool {
	_, ok := g.index[identity]
	return ok
}

// Descriptors returns all descriptors in insertion order.
func (g *Graph) Descriptors() []Descriptor {
	out := make([]Descriptor, len(g.descriptors))
	copy(out, g.descriptors)
	return out
}

// Identities returns all identities in insertion order.
func (g *Graph) Identities() []string {
	out := make([]string, len(g.descriptors))
	for i, d := range g.descriptors {
		out[i] = d.Identity
	}
	return out
}

// OfKind returns the descriptors of the given kind in insertion order.
func (g *Graph) OfKind(kind Kind) []Descriptor {
	var out []Descriptor
	for _, d := range g.descriptors {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Conditional returns the descriptors whose existence depends on configuration.
func (g *Graph) Conditional() []Descriptor {
	var out []Descriptor
	for _, d := range g.descriptors {
		if d.Conditional {
			out = append(out, d)
		}
	}
	return out
}

// Duplicates returns identities that were added more than once.
func (g *Graph) Duplicates() []string {
	return append([]string(nil), g.duplicates...)
}

// DanglingReferences returns every reference whose target is not in the graph.
func (g *Graph) DanglingReferences() []Edge {
	var out []Edge
	for _, d := range g.descriptors {
		for _, ref := range d.References {
			if !g.Has(ref) {
				out = append(out, Edge{From: d.Identity, To: ref})
			}
		}
	}
	return out
}

// Dependents returns the identities of descriptors that reference identity.
func (g *Graph) Dependents(identity string) []string {
	var out []string
	for _, d := range g.descriptors {
		if d.DependsOn(identity) {
			out = append(out, d.Identity)
		}
	}
	return out
}
