// Package reference parses user supplied image references into the
// scheme, host, repository name, tag and digest used to address a registry.
package reference

import (
	_ "crypto/sha256"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	digest "github.com/opencontainers/go-digest"
)

const (
	// DefaultHost is the registry used when a reference carries no explicit host.
	DefaultHost = "registry-1.docker.io"
	// DefaultScheme is used when a reference carries no explicit scheme.
	DefaultScheme = "https"
	// DefaultTag is reported by Tag when a reference has no explicit tag.
	DefaultTag = "latest"
)

// ParseError is returned when an input cannot be turned into a Reference.
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image reference %q: %s: %s", e.Input, e.Reason, e.Err)
	}

	return fmt.Sprintf("invalid image reference %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Options configures a Parser.
type Options struct {
	DefaultHost   string
	DefaultScheme string
}

// DefaultOptions returns the options of the public Docker registry.
func DefaultOptions() Options {
	return Options{
		DefaultHost:   DefaultHost,
		DefaultScheme: DefaultScheme,
	}
}

// Parser turns strings into references. It is immutable and safe for
// concurrent use.
type Parser struct {
	defaultHost   string
	defaultScheme string
	schemeRegexp  *regexp.Regexp
}

// NewParser creates a Parser. Empty option fields fall back to the defaults.
func NewParser(o Options) *Parser {
	if o.DefaultHost == "" {
		o.DefaultHost = DefaultHost
	}

	if o.DefaultScheme == "" {
		o.DefaultScheme = DefaultScheme
	}

	return &Parser{
		defaultHost:   o.DefaultHost,
		defaultScheme: o.DefaultScheme,
		schemeRegexp:  regexp.MustCompile(`^https?://`),
	}
}

var defaultParser = NewParser(DefaultOptions())

// Parse parses n with the default options.
func Parse(n string) (Reference, error) {
	return defaultParser.Parse(n)
}

// Parse normalizes n and splits it into its components.
//
// An input starting with http:// or https:// is used as is. Otherwise the
// segment before the first slash is treated as host[:port] if it contains a
// dot or a colon, and the default host is prepended if it does not.
func (p *Parser) Parse(n string) (Reference, error) {
	n = strings.TrimSpace(n)
	if n == "" {
		return Reference{}, &ParseError{Input: n, Reason: "empty reference"}
	}

	normalized := p.normalize(n)
	u, err := url.Parse(normalized)
	if err != nil {
		return Reference{}, &ParseError{Input: n, Reason: "malformed url", Err: err}
	}

	if u.Host == "" {
		return Reference{}, &ParseError{Input: n, Reason: "missing host"}
	}

	if u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return Reference{}, &ParseError{Input: n, Reason: "unexpected url component"}
	}

	if port := u.Port(); port != "" {
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return Reference{}, &ParseError{Input: n, Reason: "invalid port", Err: err}
		}
	}

	if strings.Contains(u.EscapedPath(), "%") {
		return Reference{}, &ParseError{Input: n, Reason: "escaped characters in repository"}
	}

	remainder := strings.TrimPrefix(u.Path, "/")
	ref := Reference{
		host:   u.Host,
		scheme: u.Scheme,
	}

	if i := strings.Index(remainder, "@"); i != -1 {
		d, err := digest.Parse(remainder[i+1:])
		if err != nil {
			return Reference{}, &ParseError{Input: n, Reason: "invalid digest", Err: err}
		}

		ref.digest = d.String()
		remainder = remainder[:i]
	}

	if i := strings.Index(remainder, ":"); i != -1 {
		ref.tag = remainder[i+1:]
		remainder = remainder[:i]
		if ref.tag == "" {
			return Reference{}, &ParseError{Input: n, Reason: "empty tag"}
		}
	}

	ref.name = remainder
	if ref.name == "" || strings.HasSuffix(ref.name, "/") || strings.Contains(ref.name, "//") {
		return Reference{}, &ParseError{Input: n, Reason: "invalid repository name"}
	}

	return ref, nil
}

func (p *Parser) normalize(n string) string {
	if p.schemeRegexp.MatchString(n) {
		return n
	}

	i := strings.Index(n, "/")
	if i != -1 && strings.ContainsAny(n[:i], ".:") {
		return p.defaultScheme + "://" + n
	}

	return p.defaultScheme + "://" + p.defaultHost + "/" + n
}

// Reference is an immutable, parsed image reference.
type Reference struct {
	digest string
	host   string
	name   string
	scheme string
	tag    string
}

// Scheme returns http or https.
func (r Reference) Scheme() string {
	return r.scheme
}

// Host returns the host as written, including an explicit port.
func (r Reference) Host() string {
	return r.host
}

// Hostname returns the host without a port.
func (r Reference) Hostname() string {
	h, _, err := net.SplitHostPort(r.host)
	if err != nil {
		return r.host
	}

	return h
}

// Port returns the explicit port or the default port of the scheme.
func (r Reference) Port() int {
	_, p, err := net.SplitHostPort(r.host)
	if err == nil {
		port, err := strconv.Atoi(p)
		if err == nil {
			return port
		}
	}

	if r.scheme == "http" {
		return 80
	}

	return 443
}

// HostPort returns host:port with the port always present.
func (r Reference) HostPort() string {
	return net.JoinHostPort(r.Hostname(), strconv.Itoa(r.Port()))
}

// Registry is an alias of Host.
func (r Reference) Registry() string {
	return r.host
}

// Name returns the repository path, e.g. library/nginx.
func (r Reference) Name() string {
	return r.name
}

// Tag returns the explicit tag, or "latest" if none was given.
func (r Reference) Tag() string {
	if r.tag == "" {
		return DefaultTag
	}

	return r.tag
}

// HasTag reports whether the tag was part of the input.
func (r Reference) HasTag() bool {
	return r.tag != ""
}

// Digest returns the digest including the leading @, or "" if there is none.
func (r Reference) Digest() string {
	if r.digest == "" {
		return ""
	}

	return "@" + r.digest
}

// Identifier is the manifest reference sent to the registry: the digest if
// the reference is pinned, the tag otherwise.
func (r Reference) Identifier() string {
	if r.digest != "" {
		return r.digest
	}

	return r.Tag()
}

// FullName returns name[:tag][@digest] as it appeared in the input.
func (r Reference) FullName() string {
	s := r.name
	if r.tag != "" {
		s += ":" + r.tag
	}

	return s + r.Digest()
}

func (r Reference) String() string {
	return r.host + "/" + r.FullName()
}
