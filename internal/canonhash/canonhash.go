// Package canonhash computes stable content hashes over JSON-shaped payloads.
// The canonical form is compact JSON with object keys in sorted order, so the
// same payload always hashes to the same value regardless of how it was
// decoded or which run produced it.
package canonhash

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Canonical returns the canonical JSON encoding of v. Values decoded into
// map[string]any get sorted keys for free from encoding/json; typed structs
// must therefore be round-tripped through a map first, which this function
// does.
func Canonical(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "canonhash: marshal payload")
	}

	// Round-trip through an untyped value so struct fields are re-encoded
	// with sorted keys like map keys are.
	var untyped any
	if err := json.Unmarshal(raw, &untyped); err != nil {
		return "", eris.Wrap(err, "canonhash: normalize payload")
	}

	canonical, err := json.Marshal(untyped)
	if err != nil {
		return "", eris.Wrap(err, "canonhash: marshal canonical form")
	}
	return string(canonical), nil
}

// Hash returns the lowercase hex SHA-1 of the canonical encoding of v.
// Audit fields must be stripped by the caller before hashing.
func Hash(v any) (string, error) {
	canonical, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}
