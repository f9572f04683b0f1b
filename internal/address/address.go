package address

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Kind is the data kind an address points at.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindBlob
	KindContainer
)

// multicodec values stored inside the cid. The container codec is dag-json
// because a container resolves to a json encoded file map.
const (
	codecBlob      = uint64(cid.Raw)
	codecContainer = uint64(cid.DagJSON)
)

const containerIDPrefix = "syftfiles/container/"

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "ImmutableBlob"
	case KindContainer:
		return "VersionedContainer"
	default:
		return "Unknown"
	}
}

func (k Kind) codec() uint64 {
	if k == KindContainer {
		return codecContainer
	}
	return codecBlob
}

func kindOf(codec uint64) Kind {
	switch codec {
	case codecBlob:
		return KindBlob
	case codecContainer:
		return KindContainer
	default:
		return KindUnknown
	}
}

// Address is a self describing content address. The zero value is undefined.
type Address struct {
	c cid.Cid
}

// Undef is the zero, undefined address.
var Undef = Address{}

// OfBlob returns the address of an immutable blob.
// Identical bytes always yield identical addresses.
func OfBlob(data []byte) Address {
	sum := sha256.Sum256(data)
	return fromDigest(KindBlob, sum[:])
}

// OfReader streams r through the digest and returns the blob address.
func OfReader(r io.Reader) (Address, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Undef, fmt.Errorf("hash content: %w", err)
	}
	return fromDigest(KindBlob, h.Sum(nil)), nil
}

// OfContainer derives the address of a container from its identity. The
// address never changes across versions of the same container.
func OfContainer(id string) Address {
	sum := sha256.Sum256([]byte(containerIDPrefix + id))
	return fromDigest(KindContainer, sum[:])
}

func fromDigest(kind Kind, digest []byte) Address {
	mh, err := multihash.Encode(digest, multihash.SHA2_256)
	if err != nil {
		// sha2-256 is always registered and digest length is fixed
		panic(fmt.Sprintf("multihash encode: %v", err))
	}
	return Address{c: cid.NewCidV1(kind.codec(), mh)}
}

// Kind reports what the address points at.
func (a Address) Kind() Kind {
	if !a.Defined() {
		return KindUnknown
	}
	return kindOf(a.c.Type())
}

func (a Address) Defined() bool {
	return a.c.Defined()
}

func (a Address) IsBlob() bool {
	return a.Kind() == KindBlob
}

func (a Address) IsContainer() bool {
	return a.Kind() == KindContainer
}

// Digest returns the raw sha2-256 digest.
func (a Address) Digest() []byte {
	if !a.Defined() {
		return nil
	}
	decoded, err := multihash.Decode(a.c.Hash())
	if err != nil {
		return nil
	}
	return decoded.Digest
}

// Bytes returns the binary cid form.
func (a Address) Bytes() []byte {
	if !a.Defined() {
		return nil
	}
	return a.c.Bytes()
}

func (a Address) Equals(o Address) bool {
	return bytes.Equal(a.Bytes(), o.Bytes())
}

// String renders the address in the default base.
func (a Address) String() string {
	if !a.Defined() {
		return ""
	}
	s, _ := Encode(a, DefaultBase)
	return s
}

// Key returns a filesystem and object-store safe key for the address.
func (a Address) Key() string {
	return a.String()
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Undef
		return nil
	}
	parsed, _, err := Decode(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
