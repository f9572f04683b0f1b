package address

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// Base is the text encoding used to render an address. The multibase prefix
// of the rendered string records it, so decoding needs no side information.
type Base = multibase.Encoding

const (
	Base32    Base = multibase.Base32
	Base36    Base = multibase.Base36
	Base58BTC Base = multibase.Base58BTC
	Base64URL Base = multibase.Base64url
)

const DefaultBase = Base32

var supportedBases = map[Base]string{
	Base32:    "base32",
	Base36:    "base36",
	Base58BTC: "base58btc",
	Base64URL: "base64url",
}

var (
	ErrInvalidEncoding = errors.New("invalid encoding")
	ErrUnknownKind     = errors.New("unknown kind")
	ErrTruncatedInput  = errors.New("truncated input")
	ErrUnsupportedBase = errors.New("unsupported base")
	// ErrNotAContainer marks a container-only operation, such as a path or
	// a version, applied to a blob address.
	ErrNotAContainer = errors.New("not a container")
)

// DecodeError is returned for every malformed address string. Reason is one
// of ErrInvalidEncoding, ErrUnknownKind or ErrTruncatedInput.
type DecodeError struct {
	Input  string
	Reason error
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode address %q: %s: %s", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode address %q: %s", e.Input, e.Reason)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Reason, e.Err}
	}
	return []error{e.Reason}
}

// BaseName returns the canonical name of a supported base.
func BaseName(b Base) string {
	if name, ok := supportedBases[b]; ok {
		return name
	}
	return fmt.Sprintf("unsupported(%c)", rune(b))
}

// ParseBase resolves a base by its multibase name, e.g. "base32".
func ParseBase(name string) (Base, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for b, n := range supportedBases {
		if n == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedBase, name)
}

// Encode renders a with the given base.
func Encode(a Address, base Base) (string, error) {
	if !a.Defined() {
		return "", fmt.Errorf("encode address: undefined")
	}
	if _, ok := supportedBases[base]; !ok {
		return "", fmt.Errorf("%w: %c", ErrUnsupportedBase, rune(base))
	}
	return multibase.Encode(base, a.c.Bytes())
}

// Decode parses a string produced by Encode and reports the base it was
// rendered in.
func Decode(s string) (Address, Base, error) {
	if len(s) < 2 {
		return Undef, 0, &DecodeError{Input: s, Reason: ErrTruncatedInput}
	}

	base := Base(s[0])
	if _, ok := supportedBases[base]; !ok {
		return Undef, 0, &DecodeError{Input: s, Reason: ErrInvalidEncoding, Err: fmt.Errorf("unsupported base prefix %q", s[0])}
	}

	_, data, err := multibase.Decode(s)
	if err != nil {
		return Undef, 0, &DecodeError{Input: s, Reason: ErrInvalidEncoding, Err: err}
	}

	codec, err := checkLayout(data)
	if err != nil {
		return Undef, 0, &DecodeError{Input: s, Reason: err}
	}
	if kindOf(codec) == KindUnknown {
		return Undef, 0, &DecodeError{Input: s, Reason: ErrUnknownKind, Err: fmt.Errorf("codec 0x%x", codec)}
	}

	c, err := cid.Cast(data)
	if err != nil {
		return Undef, 0, &DecodeError{Input: s, Reason: ErrInvalidEncoding, Err: err}
	}

	return Address{c: c}, base, nil
}

// checkLayout walks <version><codec><mh-code><mh-len><digest> so truncated
// input can be told apart from garbage before handing the bytes to go-cid.
func checkLayout(data []byte) (uint64, error) {
	rest := data
	next := func() (uint64, error) {
		v, n := binary.Uvarint(rest)
		if n == 0 {
			return 0, ErrTruncatedInput
		}
		if n < 0 {
			return 0, ErrInvalidEncoding
		}
		rest = rest[n:]
		return v, nil
	}

	version, err := next()
	if err != nil {
		return 0, err
	}
	if version != 1 {
		return 0, ErrInvalidEncoding
	}
	codec, err := next()
	if err != nil {
		return 0, err
	}
	mhCode, err := next()
	if err != nil {
		return 0, err
	}
	if mhCode != multihash.SHA2_256 {
		return 0, ErrInvalidEncoding
	}
	length, err := next()
	if err != nil {
		return 0, err
	}
	if uint64(len(rest)) < length {
		return 0, ErrTruncatedInput
	}
	if uint64(len(rest)) > length {
		return 0, ErrInvalidEncoding
	}
	return codec, nil
}
