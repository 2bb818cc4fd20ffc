// Package digest computes the BLAKE3 hashes nativebind uses as identities:
// the identity of a binary artifact, the hash of a declaration set and the
// fingerprint of a published descriptor. Each kind hashes under its own
// domain key so equal bytes in different roles never collide.
package digest

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/specialistvlad/nativebind/internal/codec"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

// Domain is a 32-byte BLAKE3 key. The bytes are the ASCII domain name,
// zero-padded, so they read back in hex dumps. Changing one invalidates
// every cached descriptor in that domain.
type Domain [32]byte

var (
	ArtifactDomain   = newDomain("nativebind.artifact")
	SurfaceDomain    = newDomain("nativebind.surface")
	DescriptorDomain = newDomain("nativebind.descriptor")
)

func newDomain(name string) Domain {
	var d Domain
	if len(name) > len(d) {
		panic("digest: domain name too long: " + name)
	}
	copy(d[:], name)
	return d
}

// Sum hashes data under the given domain.
func Sum(domain Domain, data []byte) Hash {
	h, err := blake3.NewKeyed(domain[:])
	if err != nil {
		// Only possible with a key that is not 32 bytes.
		panic("digest: " + err.Error())
	}
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Of hashes the deterministic CBOR encoding of v under the given domain.
func Of(domain Domain, v any) (Hash, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return Hash{}, fmt.Errorf("digest: encoding %T: %w", v, err)
	}
	return Sum(domain, data), nil
}

// IsZero reports whether the hash is unset.
func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Short is the first 12 hex digits, enough for log lines.
func (h Hash) Short() string { return h.String()[:12] }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	if len(b) != len(h) {
		return fmt.Errorf("digest: expected %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return nil
}
