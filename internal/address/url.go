package address

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

const (
	Scheme        = "sfc"
	schemePrefix  = Scheme + "://"
	versionParam  = "v"
	pathSeparator = "/"
)

// URL is a parsed sfc:// url: an address, an optional path inside a
// container, and an optional container version.
type URL struct {
	Address Address
	Base    Base
	Path    string
	Version *uint64
}

// NewURL builds a url for a address rendered in base.
func NewURL(a Address, base Base) *URL {
	return &URL{Address: a, Base: base}
}

// WithPath returns a copy of u pointing at p inside the container.
func (u *URL) WithPath(p string) *URL {
	cp := *u
	cp.Path = cleanURLPath(p)
	return &cp
}

// WithVersion returns a copy of u pinned to version v.
func (u *URL) WithVersion(v uint64) *URL {
	cp := *u
	cp.Version = &v
	return &cp
}

func (u *URL) String() string {
	enc, err := Encode(u.Address, u.Base)
	if err != nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(schemePrefix)
	sb.WriteString(enc)
	if u.Path != "" && u.Path != pathSeparator {
		for _, seg := range strings.Split(strings.Trim(u.Path, pathSeparator), pathSeparator) {
			sb.WriteString(pathSeparator)
			sb.WriteString(url.PathEscape(seg))
		}
	}
	if u.Version != nil {
		sb.WriteString("?" + versionParam + "=")
		sb.WriteString(strconv.FormatUint(*u.Version, 10))
	}
	return sb.String()
}

// ParseURL parses an sfc:// url. A bare encoded address without the scheme
// is accepted as well.
func ParseURL(raw string) (*URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("invalid url: empty")
	}
	if !strings.Contains(raw, "://") {
		raw = schemePrefix + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url %q: %w", raw, err)
	}
	if !strings.HasPrefix(strings.ToLower(raw), parsed.Scheme+"://") {
		return nil, fmt.Errorf("invalid url %q: malformed scheme", raw)
	}
	if parsed.Scheme != Scheme {
		return nil, fmt.Errorf("invalid scheme: expected %q, got %q", Scheme, parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing address", raw)
	}

	// decode from the raw input, the encodings are case sensitive while the
	// parsed scheme is lowercased
	host := raw[len(parsed.Scheme)+len("://"):]
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}

	a, base, err := Decode(host)
	if err != nil {
		return nil, err
	}

	u := &URL{Address: a, Base: base, Path: cleanURLPath(parsed.Path)}

	if v := parsed.Query().Get(versionParam); v != "" {
		version, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid url %q: bad version %q", raw, v)
		}
		u.Version = &version
	}

	if u.Path != "" && !a.IsContainer() {
		return nil, fmt.Errorf("invalid url %q: path %q given for a %s: %w", raw, u.Path, a.Kind(), ErrNotAContainer)
	}

	return u, nil
}

func cleanURLPath(p string) string {
	p = strings.Trim(p, pathSeparator)
	if p == "" {
		return ""
	}
	return path.Clean(pathSeparator + p)
}
