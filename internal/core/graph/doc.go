// Package graph provides the resource graph produced by topology resolution.
//
// A Graph is a set of typed resource descriptors keyed by a stable identity
// (a Terraform-style resource address such as "aws_lb.agents" or
// "aws_lb_listener.https[0]"). Cross-descriptor links are stored as identity
// strings and resolved through the graph's lookup table, never as pointers.
// All functions are pure (no I/O, no side effects) and comply with ADR-002
// "Values as Boundaries".
//
// # Construction
//
// Graphs are assembled once through a Builder and expose no mutators:
//
//	b := graph.NewBuilder()
//	b.Add(graph.Descriptor{Kind: graph.KindCluster, Identity: "aws_ecs_cluster.agents", ...})
//	g := b.Build()
//
// Any change requires building a new graph. Duplicate identities and
// references that do not resolve are retained so the invariant checker can
// report them instead of the builder failing halfway.
package graph
