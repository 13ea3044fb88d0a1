package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Fingerprint returns a content hash of the graph. Two graphs with the same
// descriptors (identities, kinds, attributes, references, conditional flags)
// have the same fingerprint regardless of insertion order.
func (g *Graph) Fingerprint() string {
	descs := g.Descriptors()
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].Identity < descs[j].Identity
	})

	// encoding/json sorts map keys, so the encoding is canonical.
	data, err := json.Marshal(descs)
	if err != nil {
		// Attribute values are restricted to JSON-encodable types.
		panic("graph: fingerprint encoding failed: " + err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
