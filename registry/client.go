// Package registry implements the read-only subset of the Docker
// Distribution v2 protocol needed to inspect an image: token exchange,
// manifest retrieval and blob retrieval.
package registry

import (
	"context"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imagespy/inspect/image"
	"github.com/imagespy/inspect/layer"
	"github.com/imagespy/inspect/metrics"
	"github.com/imagespy/inspect/reference"
	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultAuthURL is the token endpoint of the public Docker registry.
	DefaultAuthURL = "https://auth.docker.io/token"
	// DefaultService is the service name the public token endpoint expects.
	DefaultService = "registry.docker.io"

	callBlob     = "blob"
	callManifest = "manifest"
	callToken    = "token"

	maxDocumentSize = 16 << 20
	tracerName      = "github.com/imagespy/inspect/registry"
)

var manifestAccept = strings.Join([]string{image.MediaTypeManifest, image.MediaTypeOCIManifest}, ", ")

// Token is a bearer token valid for the pull scope of one repository.
// An empty Value means requests are sent without authorization.
type Token struct {
	Value string
}

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// Options configures a Client.
type Options struct {
	// AuthURL is the token endpoint. If empty, no token is requested.
	AuthURL string
	// Service is sent as the service query parameter of token requests.
	Service string
	// Insecure disables certificate validation.
	Insecure bool
	// Timeout limits every request. Zero means no limit.
	Timeout   time.Duration
	UserAgent string
	Metrics   *metrics.Metrics
	// Transport replaces the default transport, mostly for tests.
	Transport http.RoundTripper
	// WrapBody wraps the body of layer blob responses, e.g. to report
	// progress. size is -1 if unknown.
	WrapBody func(body io.ReadCloser, size int64) io.ReadCloser
}

// Client talks to registries. It owns one pooled http.Client that is reused
// for all requests. A Client is safe for concurrent use.
type Client struct {
	authURL  string
	client   *http.Client
	metrics  *metrics.Metrics
	service  string
	tracer   trace.Tracer
	wrapBody func(io.ReadCloser, int64) io.ReadCloser
}

// New creates a Client.
func New(o Options) *Client {
	return &Client{
		authURL: o.AuthURL,
		client: &http.Client{
			Timeout:   o.Timeout,
			Transport: newTransport(o),
		},
		metrics:  o.Metrics,
		service:  o.Service,
		tracer:   otel.Tracer(tracerName),
		wrapBody: o.WrapBody,
	}
}

// Token requests a pull token for the repository of ref.
func (c *Client) Token(ctx context.Context, ref reference.Reference) (Token, error) {
	if c.authURL == "" {
		return Token{}, nil
	}

	ctx, span := c.startSpan(ctx, "registry.Token", ref)
	defer span.End()

	u, err := url.Parse(c.authURL)
	if err != nil {
		return Token{}, endSpan(span, &AuthError{URL: c.authURL, Err: err})
	}

	q := u.Query()
	q.Set("service", c.service)
	q.Set("scope", fmt.Sprintf("repository:%s:pull", ref.Name()))
	u.RawQuery = q.Encode()

	resp, err := c.do(ctx, callToken, u.String(), Token{}, "")
	if err != nil {
		return Token{}, endSpan(span, &AuthError{URL: u.String(), Err: err})
	}

	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return Token{}, endSpan(span, &AuthError{URL: u.String(), StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)})
	}

	tr := tokenResponse{}
	err = json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&tr)
	if err != nil {
		return Token{}, endSpan(span, &DecodeError{What: "token", Err: err})
	}

	t := Token{Value: tr.Token}
	if t.Value == "" {
		t.Value = tr.AccessToken
	}

	if t.Value == "" {
		return Token{}, endSpan(span, &DecodeError{What: "token", Err: errors.New("response contains no token")})
	}

	return t, nil
}

// Manifest fetches the manifest ref points to. A pinned digest takes
// precedence over the tag.
func (c *Client) Manifest(ctx context.Context, ref reference.Reference, token Token) (*image.Manifest, error) {
	ctx, span := c.startSpan(ctx, "registry.Manifest", ref)
	defer span.End()

	b, err := c.get(ctx, callManifest, c.url(ref, "manifests", ref.Identifier()), token, manifestAccept)
	if err != nil {
		return nil, endSpan(span, err)
	}

	m, err := image.ParseManifest(b)
	if err != nil {
		return nil, endSpan(span, &DecodeError{What: "manifest", Err: err})
	}

	log.Debugf("manifest of %s lists %d layers", ref, len(m.Layers))
	return m, nil
}

// Blob fetches the blob dgst of the repository of ref and verifies that its
// content matches the digest.
func (c *Client) Blob(ctx context.Context, ref reference.Reference, dgst digest.Digest, token Token, accept string) ([]byte, error) {
	ctx, span := c.startSpan(ctx, "registry.Blob", ref)
	defer span.End()
	span.SetAttributes(attribute.String("digest", dgst.String()))

	err := dgst.Validate()
	if err != nil {
		return nil, endSpan(span, errors.Wrapf(err, "blob digest %q", dgst))
	}

	b, err := c.get(ctx, callBlob, c.url(ref, "blobs", dgst.String()), token, accept)
	if err != nil {
		return nil, endSpan(span, err)
	}

	if dgst.Algorithm().FromBytes(b) != dgst {
		return nil, endSpan(span, &DecodeError{What: "blob " + dgst.String(), Err: errors.New("content does not match digest")})
	}

	return b, nil
}

// Config fetches the manifest of ref and then the config blob it
// references. The blob is not requested if the manifest cannot be fetched.
func (c *Client) Config(ctx context.Context, ref reference.Reference, token Token) (*image.Config, error) {
	m, err := c.Manifest(ctx, ref, token)
	if err != nil {
		return nil, err
	}

	return c.ConfigOf(ctx, ref, token, m)
}

// ConfigOf fetches the config blob referenced by m.
func (c *Client) ConfigOf(ctx context.Context, ref reference.Reference, token Token, m *image.Manifest) (*image.Config, error) {
	accept := m.Config.MediaType
	if accept == "" {
		accept = image.MediaTypeConfig
	}

	b, err := c.Blob(ctx, ref, m.Config.Digest, token, accept)
	if err != nil {
		return nil, err
	}

	cfg, err := image.ParseConfig(b)
	if err != nil {
		return nil, &DecodeError{What: "config", Err: err}
	}

	return cfg, nil
}

// Layer fetches the layer blob described by media and builds its catalog.
// The blob is decompressed while it is downloaded.
func (c *Client) Layer(ctx context.Context, ref reference.Reference, token Token, media image.Media) (layer.Catalog, error) {
	ctx, span := c.startSpan(ctx, "registry.Layer", ref)
	defer span.End()
	span.SetAttributes(attribute.String("digest", media.Digest.String()))

	if !media.IsGzipLayer() {
		return nil, endSpan(span, errors.Errorf("unsupported layer media type %q", media.MediaType))
	}

	err := media.Digest.Validate()
	if err != nil {
		return nil, endSpan(span, errors.Wrapf(err, "layer digest %q", media.Digest))
	}

	accept := media.MediaType
	if accept == "" {
		accept = image.MediaTypeLayer
	}

	u := c.url(ref, "blobs", media.Digest.String())
	resp, err := c.do(ctx, callBlob, u, token, accept)
	if err != nil {
		return nil, endSpan(span, &HTTPError{URL: u, Err: err})
	}

	body := resp.Body
	if c.wrapBody != nil {
		body = c.wrapBody(body, resp.ContentLength)
	}

	defer body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, endSpan(span, &HTTPError{URL: u, StatusCode: resp.StatusCode, Body: readErrorBody(body)})
	}

	verifier := media.Digest.Verifier()
	br := &bodyReader{r: body}
	r := io.TeeReader(br, verifier)
	catalog, err := layer.FromArchive(r)
	if br.err != nil {
		return nil, endSpan(span, &HTTPError{URL: u, StatusCode: resp.StatusCode, Err: br.err})
	}

	if err != nil {
		return nil, endSpan(span, &DecodeError{What: "layer " + media.Digest.String(), Err: err})
	}

	_, err = io.Copy(io.Discard, r)
	if err != nil {
		return nil, endSpan(span, &HTTPError{URL: u, StatusCode: resp.StatusCode, Err: err})
	}

	if !verifier.Verified() {
		return nil, endSpan(span, &DecodeError{What: "layer " + media.Digest.String(), Err: errors.New("content does not match digest")})
	}

	log.Debugf("layer %s of %s contains %d entries", media.Digest, ref, len(catalog))
	return catalog, nil
}

// bodyReader remembers the first error of the underlying reader so that a
// broken download is not reported as a corrupt archive.
type bodyReader struct {
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF && b.err == nil {
		b.err = err
	}

	return n, err
}

func (c *Client) url(ref reference.Reference, kind, id string) string {
	return fmt.Sprintf("%s://%s/v2/%s/%s/%s", ref.Scheme(), ref.HostPort(), ref.Name(), kind, id)
}

func (c *Client) get(ctx context.Context, call, u string, token Token, accept string) ([]byte, error) {
	resp, err := c.do(ctx, call, u, token, accept)
	if err != nil {
		return nil, &HTTPError{URL: u, Err: err}
	}

	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, &HTTPError{URL: u, StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &HTTPError{URL: u, StatusCode: resp.StatusCode, Err: err}
	}

	return b, nil
}

func (c *Client) do(ctx context.Context, call, u string, token Token, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	if token.Value != "" {
		req.Header.Set("Authorization", "Bearer "+token.Value)
	}

	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	log.Debugf("GET %s", u)
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(call, 0)
		return nil, err
	}

	c.metrics.ObserveRequest(call, resp.StatusCode)
	log.Debugf("GET %s: %d", u, resp.StatusCode)
	return resp, nil
}

func (c *Client) startSpan(ctx context.Context, name string, ref reference.Reference) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, name)
	span.SetAttributes(attribute.String("image", ref.String()))
	return ctx, span
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
