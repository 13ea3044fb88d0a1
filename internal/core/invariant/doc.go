// Package invariant checks a resolved resource graph against the rules a
// topology must satisfy before it may be provisioned.
//
// Check is a pure read of the graph. It never panics on malformed input and
// reports every violation it finds, so all problems surface together rather
// than one per planning cycle. Violations with SeverityError block
// provisioning; warnings are surfaced for review only.
package invariant
