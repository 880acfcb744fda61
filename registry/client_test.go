package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/imagespy/inspect/image"
	"github.com/imagespy/inspect/layer"
	"github.com/imagespy/inspect/layer/layertest"
	"github.com/imagespy/inspect/metrics"
	"github.com/imagespy/inspect/reference"
	"github.com/imagespy/inspect/registry/registrytest"
	digest "github.com/opencontainers/go-digest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(reg *registrytest.Registry) *Client {
	return New(Options{
		AuthURL:   reg.AuthURL(),
		Service:   registrytest.Service,
		UserAgent: "inspect-test",
	})
}

func readFixture(t *testing.T, name string) []byte {
	b, err := ioutil.ReadFile("../image/testdata/" + name)
	require.NoError(t, err)
	return b
}

func TestClient_Token(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()

	c := newTestClient(reg)
	token, err := c.Token(context.Background(), reg.Reference("test/img:v1"))

	require.NoError(t, err)
	assert.Equal(t, Token{Value: reg.Token()}, token)
	requests := reg.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "/token", requests[0].Path)
	assert.Equal(t, registrytest.Service, requests[0].Query.Get("service"))
	assert.Equal(t, "repository:test/img:pull", requests[0].Query.Get("scope"))
	assert.Equal(t, "inspect-test", requests[0].UserAgent)
}

func TestClient_Token_Responses(t *testing.T) {
	testcases := []struct {
		name          string
		status        int
		body          string
		expectedToken Token
		expectedErr   interface{}
	}{
		{
			name:          "When the response contains token it returns it",
			status:        http.StatusOK,
			body:          `{"token":"abc","access_token":"def"}`,
			expectedToken: Token{Value: "abc"},
		},
		{
			name:          "When the response contains only access_token it returns it",
			status:        http.StatusOK,
			body:          `{"access_token":"def"}`,
			expectedToken: Token{Value: "def"},
		},
		{
			name:        "When the response contains no token it fails with a DecodeError",
			status:      http.StatusOK,
			body:        `{}`,
			expectedErr: &DecodeError{},
		},
		{
			name:        "When the response is not JSON it fails with a DecodeError",
			status:      http.StatusOK,
			body:        `<html>`,
			expectedErr: &DecodeError{},
		},
		{
			name:        "When the endpoint returns 401 it fails with an AuthError",
			status:      http.StatusUnauthorized,
			body:        `unauthorized`,
			expectedErr: &AuthError{},
		},
		{
			name:        "When the endpoint returns 403 it fails with an AuthError",
			status:      http.StatusForbidden,
			body:        `forbidden`,
			expectedErr: &AuthError{},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c := New(Options{AuthURL: srv.URL, Service: "test"})
			ref, err := reference.Parse("registry.test/ns/name:v1")
			require.NoError(t, err)

			token, err := c.Token(context.Background(), ref)
			if tc.expectedErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tc.expectedToken, token)
				return
			}

			assert.Equal(t, Token{}, token)
			switch tc.expectedErr.(type) {
			case *DecodeError:
				var target *DecodeError
				assert.True(t, errors.As(err, &target), "expected DecodeError, got %T", err)
			case *AuthError:
				var target *AuthError
				require.True(t, errors.As(err, &target), "expected AuthError, got %T", err)
				assert.Equal(t, tc.status, target.StatusCode)
				assert.Equal(t, tc.body, string(target.Body))
			}
		})
	}
}

func TestClient_Token_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	authURL := srv.URL
	srv.Close()

	c := New(Options{AuthURL: authURL})
	_, err := c.Token(context.Background(), reference.Reference{})

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, 0, authErr.StatusCode)
	assert.Error(t, authErr.Err)
}

func TestClient_Token_WithoutAuthURL(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()
	reg.SetToken("")

	c := New(Options{})
	token, err := c.Token(context.Background(), reg.Reference("test/img:v1"))
	require.NoError(t, err)
	assert.Equal(t, Token{}, token)

	reg.AddImage("test/img", "v1", readFixture(t, "config.json"))
	m, err := c.Manifest(context.Background(), reg.Reference("test/img:v1"), token)
	require.NoError(t, err)
	assert.Len(t, m.Layers, 0)
	for _, req := range reg.Requests() {
		assert.Empty(t, req.Authorization)
	}
}

func TestClient_Manifest(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()
	reg.AddManifest("test/img", readFixture(t, "manifest.json"), "v1")

	c := newTestClient(reg)
	ref := reg.Reference("test/img:v1")
	token, err := c.Token(context.Background(), ref)
	require.NoError(t, err)

	m, err := c.Manifest(context.Background(), ref, token)

	require.NoError(t, err)
	assert.Equal(t, 2, m.SchemaVersion)
	assert.Len(t, m.Layers, 2)
	requests := reg.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "/v2/test/img/manifests/v1", requests[1].Path)
	assert.Equal(t, "Bearer "+reg.Token(), requests[1].Authorization)
	assert.Contains(t, requests[1].Accept, image.MediaTypeManifest)
}

func TestClient_Manifest_ByDigest(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()
	reg.SetToken("")
	d := reg.AddManifest("test/img", readFixture(t, "manifest.json"))

	c := New(Options{})
	m, err := c.Manifest(context.Background(), reg.Reference("test/img:v1@"+d.String()), Token{})

	require.NoError(t, err)
	assert.Len(t, m.Layers, 2)
	assert.Equal(t, []string{"/v2/test/img/manifests/" + d.String()}, reg.RequestsTo("/manifests/"))
}

func TestClient_Manifest_Invalid(t *testing.T) {
	testcases := []struct {
		name string
		body string
	}{
		{name: "When the body is not JSON", body: `not json`},
		{name: "When the schema version is not 2", body: `{"schemaVersion":1,"config":{"digest":"sha256:d6e46aa2470df1d32034c6707c8041158b652f38d2a9ae3d7ad7e7532d22ebe0"}}`},
		{name: "When the config digest is invalid", body: `{"schemaVersion":2,"config":{"digest":"nope"}}`},
		{name: "When the layers field has the wrong type", body: `{"schemaVersion":2,"layers":{}}`},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			reg := registrytest.New()
			defer reg.Close()
			reg.AddManifest("test/img", []byte(tc.body), "v1")

			c := newTestClient(reg)
			ref := reg.Reference("test/img:v1")
			token, err := c.Token(context.Background(), ref)
			require.NoError(t, err)

			m, err := c.Manifest(context.Background(), ref, token)

			assert.Nil(t, m)
			var decodeErr *DecodeError
			assert.True(t, errors.As(err, &decodeErr), "expected DecodeError, got %T: %s", err, err)
		})
	}
}

func TestClient_Manifest_HTTPError(t *testing.T) {
	testcases := []struct {
		name   string
		status int
		token  Token
	}{
		{name: "When the registry rejects the token", status: http.StatusUnauthorized, token: Token{Value: "wrong"}},
		{name: "When the manifest does not exist", status: http.StatusNotFound, token: Token{Value: "registrytest-token"}},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			reg := registrytest.New()
			defer reg.Close()

			c := newTestClient(reg)
			m, err := c.Manifest(context.Background(), reg.Reference("test/img:v1"), tc.token)

			assert.Nil(t, m)
			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr), "expected HTTPError, got %T", err)
			assert.Equal(t, tc.status, httpErr.StatusCode)
			assert.NotEmpty(t, httpErr.Body)
		})
	}
}

func TestClient_Config(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()
	m := reg.AddImage("test/img", "v1", readFixture(t, "config.json"), layertest.Fixture())

	c := newTestClient(reg)
	ref := reg.Reference("test/img:v1")
	token, err := c.Token(context.Background(), ref)
	require.NoError(t, err)

	cfg, err := c.Config(context.Background(), ref, token)

	require.NoError(t, err)
	assert.Equal(t, image.Linux, cfg.OS)
	assert.Equal(t, image.Amd64, cfg.Architecture)
	assert.Equal(t, []string{"/v2/test/img/manifests/v1", "/v2/test/img/blobs/" + m.Config.Digest.String()}, reg.RequestsTo("/v2/"))
	blobRequests := reg.Requests()
	assert.Equal(t, image.MediaTypeConfig, blobRequests[len(blobRequests)-1].Accept)
}

func TestClient_Config_ManifestFails(t *testing.T) {
	testcases := []struct {
		name        string
		failingPath string
		status      int
	}{
		{name: "When the token endpoint returns 401", failingPath: "/token", status: http.StatusUnauthorized},
		{name: "When the token endpoint returns 403", failingPath: "/token", status: http.StatusForbidden},
		{name: "When the manifest endpoint returns 401", failingPath: "/v2/test/img/manifests/v1", status: http.StatusUnauthorized},
		{name: "When the manifest endpoint returns 403", failingPath: "/v2/test/img/manifests/v1", status: http.StatusForbidden},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			reg := registrytest.New()
			defer reg.Close()
			reg.AddImage("test/img", "v1", readFixture(t, "config.json"))
			reg.SetStatus(tc.failingPath, tc.status)

			c := newTestClient(reg)
			ref := reg.Reference("test/img:v1")
			cfg, err := func() (*image.Config, error) {
				token, err := c.Token(context.Background(), ref)
				if err != nil {
					return nil, err
				}

				return c.Config(context.Background(), ref, token)
			}()

			assert.Nil(t, cfg)
			if tc.failingPath == "/token" {
				var authErr *AuthError
				require.True(t, errors.As(err, &authErr), "expected AuthError, got %T", err)
				assert.Equal(t, tc.status, authErr.StatusCode)
			} else {
				var httpErr *HTTPError
				require.True(t, errors.As(err, &httpErr), "expected HTTPError, got %T", err)
				assert.Equal(t, tc.status, httpErr.StatusCode)
			}

			assert.Empty(t, reg.RequestsTo("/blobs/"))
		})
	}
}

func TestClient_Config_InvalidBlob(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()
	reg.AddImage("test/img", "v1", []byte(`{"architecture":"sparc","os":"linux"}`))

	c := newTestClient(reg)
	ref := reg.Reference("test/img:v1")
	token, err := c.Token(context.Background(), ref)
	require.NoError(t, err)

	cfg, err := c.Config(context.Background(), ref, token)

	assert.Nil(t, cfg)
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr), "expected DecodeError, got %T", err)
}

func TestClient_Blob(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()
	reg.SetToken("")
	content := []byte("blob content")
	d := reg.AddBlob("test/img", content)
	wrong := digest.FromString("something else")
	reg.AddBlobAs("test/img", wrong, content)

	c := New(Options{})
	ref := reg.Reference("test/img:v1")

	b, err := c.Blob(context.Background(), ref, d, Token{}, "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, content, b)
	requests := reg.Requests()
	assert.Equal(t, "application/octet-stream", requests[len(requests)-1].Accept)

	b, err = c.Blob(context.Background(), ref, wrong, Token{}, "application/octet-stream")
	assert.Nil(t, b)
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr), "expected DecodeError, got %T", err)

	b, err = c.Blob(context.Background(), ref, digest.Digest("sha256:short"), Token{}, "")
	assert.Nil(t, b)
	assert.Error(t, err)
	assert.Len(t, reg.RequestsTo("/blobs/"), 2)
}

func TestClient_Layer(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()
	m := reg.AddImage("test/img", "v1", readFixture(t, "config.json"), layertest.Fixture())

	wrapped := false
	c := New(Options{
		AuthURL: reg.AuthURL(),
		Service: registrytest.Service,
		WrapBody: func(body io.ReadCloser, size int64) io.ReadCloser {
			wrapped = true
			assert.Equal(t, int64(m.Layers[0].Size), size)
			return body
		},
	})
	ref := reg.Reference("test/img:v1")
	token, err := c.Token(context.Background(), ref)
	require.NoError(t, err)

	catalog, err := c.Layer(context.Background(), ref, token, m.Layers[0])

	require.NoError(t, err)
	assert.True(t, wrapped)
	assert.Len(t, catalog, layertest.FixtureEntries)
	assert.Equal(t, layertest.FixtureSymlinks, catalog.Count(layer.Symlink{}))
	requests := reg.Requests()
	assert.Equal(t, image.MediaTypeLayer, requests[len(requests)-1].Accept)
}

func TestClient_Layer_Errors(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()
	reg.SetToken("")
	notGzip := reg.AddBlob("test/img", []byte("plain text"))
	content := layertest.Fixture()
	mismatch := digest.FromString("other")
	reg.AddBlobAs("test/img", mismatch, content)

	c := New(Options{})
	ref := reg.Reference("test/img:v1")

	testcases := []struct {
		name   string
		media  image.Media
		assert func(t *testing.T, err error)
	}{
		{
			name:  "When the blob is not a gzip archive it fails with a DecodeError",
			media: image.Media{MediaType: image.MediaTypeLayer, Digest: notGzip},
			assert: func(t *testing.T, err error) {
				var decodeErr *DecodeError
				require.True(t, errors.As(err, &decodeErr), "expected DecodeError, got %T", err)
				assert.Equal(t, "layer "+notGzip.String(), decodeErr.What)
				var archiveErr *layer.DecodeError
				assert.True(t, errors.As(err, &archiveErr), "expected layer.DecodeError in chain")
			},
		},
		{
			name:  "When the blob does not match its digest it fails with a DecodeError",
			media: image.Media{MediaType: image.MediaTypeLayer, Digest: mismatch},
			assert: func(t *testing.T, err error) {
				var decodeErr *DecodeError
				assert.True(t, errors.As(err, &decodeErr), "expected DecodeError, got %T", err)
			},
		},
		{
			name:  "When the blob does not exist it fails with an HTTPError",
			media: image.Media{MediaType: image.MediaTypeLayer, Digest: digest.FromString("missing")},
			assert: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.True(t, errors.As(err, &httpErr), "expected HTTPError, got %T", err)
				assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
			},
		},
		{
			name:  "When the media type is not a gzip layer it fails before the request",
			media: image.Media{MediaType: "application/vnd.oci.image.layer.v1.tar+zstd", Digest: notGzip},
			assert: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			catalog, err := c.Layer(context.Background(), ref, Token{}, tc.media)
			assert.Nil(t, catalog)
			tc.assert(t, err)
		})
	}

	assert.Len(t, reg.RequestsTo("/blobs/"), 3)
}

type failingReader struct {
	r         io.Reader
	remaining int
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, errors.New("connection reset by peer")
	}

	if len(p) > f.remaining {
		p = p[:f.remaining]
	}

	n, err := f.r.Read(p)
	f.remaining -= n
	return n, err
}

func TestClient_Layer_BrokenDownload(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()
	reg.SetToken("")
	d := reg.AddBlob("test/img", layertest.Fixture())

	c := New(Options{
		WrapBody: func(body io.ReadCloser, size int64) io.ReadCloser {
			return struct {
				io.Reader
				io.Closer
			}{&failingReader{r: body, remaining: 512}, body}
		},
	})
	ref := reg.Reference("test/img:v1")

	catalog, err := c.Layer(context.Background(), ref, Token{}, image.Media{MediaType: image.MediaTypeLayer, Digest: d})

	assert.Nil(t, catalog)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr), "expected HTTPError, got %T", err)
	assert.Equal(t, http.StatusOK, httpErr.StatusCode)
	assert.Contains(t, httpErr.Error(), "connection reset by peer")
	var decodeErr *DecodeError
	assert.False(t, errors.As(err, &decodeErr))
}

func TestClient_Metrics(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()
	reg.AddManifest("test/img", readFixture(t, "manifest.json"), "v1")

	m := metrics.New("")
	c := New(Options{AuthURL: reg.AuthURL(), Service: registrytest.Service, Metrics: m})
	ref := reg.Reference("test/img:v1")
	token, err := c.Token(context.Background(), ref)
	require.NoError(t, err)
	_, err = c.Manifest(context.Background(), ref, token)
	require.NoError(t, err)
	_, err = c.Manifest(context.Background(), reg.Reference("test/img:missing"), token)
	require.Error(t, err)

	count, err := testutil.GatherAndCount(m.Gatherer(), "imagespy_inspect_registry_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Debugf(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestSetLog(t *testing.T) {
	reg := registrytest.New()
	defer reg.Close()

	l := &recordingLogger{}
	SetLog(l)
	defer SetLog(nil)

	_, err := newTestClient(reg).Token(context.Background(), reg.Reference("test/img:v1"))
	require.NoError(t, err)
	require.NotEmpty(t, l.lines)
	assert.Contains(t, l.lines[0], "GET "+reg.AuthURL())
}
