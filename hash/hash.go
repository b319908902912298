// Package hash implements the algorithm-tagged digest values ("imprints")
// used throughout the signature and TLV layers.
package hash

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"hash"

	"github.com/ekobi/goksi/ksierr"
)

// Algorithm identifies a hash function by its one-byte wire id.
type Algorithm byte

// Registered algorithm ids. Values match the original implementation's
// registry so imprints round-trip against real KSI signatures.
const (
	SHA1      Algorithm = 0x00
	SHA256    Algorithm = 0x01
	RIPEMD160 Algorithm = 0x02
	SHA384    Algorithm = 0x04
	SHA512    Algorithm = 0x05
	SHA3_256  Algorithm = 0x07
	SM3       Algorithm = 0x08
)

type algoInfo struct {
	name    string
	size    int
	trusted bool
	newFn   func() hash.Hash
}

// registry maps algorithm id to its metadata. SM3 and RIPEMD160 have no
// standard-library implementation and are registered untrusted/unavailable
// for New rather than vendoring a third-party primitive for an algorithm
// this library treats as deprecated anyway.
var registry = map[Algorithm]algoInfo{
	SHA1:      {name: "SHA-1", size: sha1.Size, trusted: false, newFn: sha1.New},
	SHA256:    {name: "SHA-256", size: sha256.Size, trusted: true, newFn: sha256.New},
	RIPEMD160: {name: "RIPEMD-160", size: 20, trusted: false, newFn: nil},
	SHA384:    {name: "SHA-384", size: sha512.Size384, trusted: true, newFn: sha512.New384},
	SHA512:    {name: "SHA-512", size: sha512.Size, trusted: true, newFn: sha512.New},
	SHA3_256:  {name: "SHA3-256", size: 32, trusted: true, newFn: nil},
	SM3:       {name: "SM3", size: 32, trusted: false, newFn: nil},
}

// Name returns the human-readable algorithm name, or "" if unregistered.
func (a Algorithm) Name() string {
	if info, ok := registry[a]; ok {
		return info.name
	}
	return ""
}

// Size returns the fixed digest length for a, or 0 if unregistered.
func (a Algorithm) Size() int {
	if info, ok := registry[a]; ok {
		return info.size
	}
	return 0
}

// Trusted reports whether a is still considered collision-resistant enough
// for new signatures.
func (a Algorithm) Trusted() bool {
	info, ok := registry[a]
	return ok && info.trusted
}

// Defined reports whether a is a known algorithm id.
func (a Algorithm) Defined() bool {
	_, ok := registry[a]
	return ok
}

func (a Algorithm) String() string {
	if n := a.Name(); n != "" {
		return n
	}
	return fmt.Sprintf("unknown-algorithm(0x%02x)", byte(a))
}

// Imprint is an algorithm id paired with a digest of that algorithm's fixed
// length. It is a value type: two imprints are Equal iff their wire
// encodings are byte-identical.
type Imprint struct {
	Algorithm Algorithm
	Digest    []byte
}

// Zero constructs a zero-digest imprint for algorithm a, used to build
// request templates that commit to an algorithm before a real digest is
// known.
func Zero(a Algorithm) Imprint {
	sz := a.Size()
	return Imprint{Algorithm: a, Digest: make([]byte, sz)}
}

// New hashes data with algorithm a and returns the resulting imprint.
func New(a Algorithm, data []byte) (Imprint, error) {
	info, ok := registry[a]
	if !ok || info.newFn == nil {
		return Imprint{}, ksierr.New(ksierr.UnavailableHashAlgorithm, a.String())
	}
	h := info.newFn()
	h.Write(data)
	return Imprint{Algorithm: a, Digest: h.Sum(nil)}, nil
}

// Hasher returns a streaming hash.Hash for algorithm a, for callers that
// need to feed data incrementally before sealing an imprint.
func Hasher(a Algorithm) (hash.Hash, error) {
	info, ok := registry[a]
	if !ok || info.newFn == nil {
		return nil, ksierr.New(ksierr.UnavailableHashAlgorithm, a.String())
	}
	return info.newFn(), nil
}

// FromImprint parses the wire form `alg || digest`.
func FromImprint(b []byte) (Imprint, error) {
	if len(b) < 1 {
		return Imprint{}, ksierr.New(ksierr.InvalidFormat, "empty imprint")
	}
	a := Algorithm(b[0])
	info, ok := registry[a]
	if !ok {
		return Imprint{}, ksierr.New(ksierr.UnavailableHashAlgorithm, a.String())
	}
	digest := b[1:]
	if len(digest) != info.size {
		return Imprint{}, ksierr.New(ksierr.InvalidFormat,
			fmt.Sprintf("imprint digest length %d != expected %d for %s", len(digest), info.size, a))
	}
	out := make([]byte, len(digest))
	copy(out, digest)
	return Imprint{Algorithm: a, Digest: out}, nil
}

// Bytes serializes the imprint to its wire form `alg || digest`.
func (i Imprint) Bytes() []byte {
	b := make([]byte, 1+len(i.Digest))
	b[0] = byte(i.Algorithm)
	copy(b[1:], i.Digest)
	return b
}

// Equal reports byte-wise equality of the serialized imprint, evaluated in
// constant time over the digest portion.
func (i Imprint) Equal(o Imprint) bool {
	if i.Algorithm != o.Algorithm {
		return false
	}
	if len(i.Digest) != len(o.Digest) {
		return false
	}
	return subtle.ConstantTimeCompare(i.Digest, o.Digest) == 1
}

// IsZero reports whether the imprint has no algorithm set and no digest.
func (i Imprint) IsZero() bool {
	return i.Algorithm == 0 && len(i.Digest) == 0
}

func (i Imprint) String() string {
	return fmt.Sprintf("%s:%x", i.Algorithm, i.Digest)
}
