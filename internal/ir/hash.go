package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// Domain prefixes for content digests.
// The version suffix enables future encoding migration.
const (
	DomainFact     = "relcheck/fact/v" + FactsVersion
	DomainRelation = "relcheck/relation/v" + FactsVersion
	DomainBase     = "relcheck/base/v" + FactsVersion
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FactDigest computes the content digest of one fact.
func FactDigest(relation string, row Row) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"relation": relation,
		"row":      row,
	})
	if err != nil {
		return "", fmt.Errorf("FactDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFact, canonical), nil
}

// RelationDigest computes the digest of a relation's contents. Row order
// does not matter: rows are hashed individually and the sorted fact
// digests are combined.
func RelationDigest(relation string, rows []Row) (string, error) {
	digests := make([]string, len(rows))
	for i, row := range rows {
		d, err := FactDigest(relation, row)
		if err != nil {
			return "", fmt.Errorf("RelationDigest %s: %w", relation, err)
		}
		digests[i] = d
	}
	slices.Sort(digests)
	digests = slices.Compact(digests)
	return hashWithDomain(DomainRelation, []byte(relation+"\x00"+strings.Join(digests, ""))), nil
}

// BaseDigest combines per-relation digests into one digest for a whole
// fact base. Relation names are sorted first.
func BaseDigest(relations map[string][]Row) (string, error) {
	names := make([]string, 0, len(relations))
	for name := range relations {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]any, 0, len(names))
	for _, name := range names {
		d, err := RelationDigest(name, relations[name])
		if err != nil {
			return "", err
		}
		parts = append(parts, []any{name, d})
	}
	canonical, err := MarshalCanonical(parts)
	if err != nil {
		return "", fmt.Errorf("BaseDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBase, canonical), nil
}

// MustFactDigest is like FactDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFactDigest(relation string, row Row) string {
	d, err := FactDigest(relation, row)
	if err != nil {
		panic(err)
	}
	return d
}
