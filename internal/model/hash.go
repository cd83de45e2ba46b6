package model

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
)

// Domain prefixes for content keys.
// Version suffix enables future algorithm migration.
const (
	DomainCellMethodSet = "cfstore/cell_method_set/v1"
	DomainPropertySet   = "cfstore/property_set/v1"
	DomainFragments     = "cfstore/fragments/v1"
	DomainManifest      = "cfstore/manifest/v1"
	DomainQuark         = "cfstore/quark/v1"
	DomainVariable      = "cfstore/variable/v1"
)

// memberSeparator joins sorted members. It is the ASCII unit separator and
// cannot appear in canonical JSON or in file names accepted by ingestion.
const memberSeparator = "\x1f"

// Hash algorithms accepted by NewHasher.
const (
	HashMD5    = "md5"
	HashSHA256 = "sha256"
)

// Hasher computes content keys.
// Format: hex(H(domain + 0x00 + join(sorted(members), 0x1f)))
type Hasher struct {
	algorithm string
	newHash   func() hash.Hash
}

// NewHasher returns a Hasher for the named algorithm ("" means md5).
func NewHasher(algorithm string) (*Hasher, error) {
	switch algorithm {
	case "", HashMD5:
		return &Hasher{algorithm: HashMD5, newHash: md5.New}, nil
	case HashSHA256:
		return &Hasher{algorithm: HashSHA256, newHash: sha256.New}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// Algorithm returns the algorithm name.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// SetKey hashes a multiset of members. Input order does not matter;
// duplicated members are kept.
func (h *Hasher) SetKey(domain string, members []string) string {
	sorted := make([]string, len(members))
	copy(sorted, members)
	sort.Strings(sorted)
	return h.SequenceKey(domain, sorted)
}

// SequenceKey hashes an ordered list of members. Order matters.
func (h *Hasher) SequenceKey(domain string, members []string) string {
	d := h.newHash()
	d.Write([]byte(domain))
	d.Write([]byte{0x00}) // Null separator between domain and data
	for i, m := range members {
		if i > 0 {
			d.Write([]byte(memberSeparator))
		}
		d.Write([]byte(m))
	}
	return hex.EncodeToString(d.Sum(nil))
}
