// Package registrytest provides an in-process Docker Distribution v2
// registry for tests. It serves manifests and blobs from memory, issues
// bearer tokens and records every request it receives.
package registrytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/imagespy/inspect/image"
	"github.com/imagespy/inspect/reference"
	digest "github.com/opencontainers/go-digest"
)

// Service is the service name the token endpoint expects.
const Service = "registrytest"

// Request is a recorded request.
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Accept        string
	Authorization string
	UserAgent     string
}

// Registry is the fake registry. Its zero value is not usable, use New.
type Registry struct {
	blobs     map[string][]byte
	manifests map[string][]byte
	mu        sync.Mutex
	requests  []Request
	server    *httptest.Server
	statuses  map[string]int
	token     string
}

// New starts a fake registry. Close it when done.
func New() *Registry {
	r := &Registry{
		blobs:     map[string][]byte{},
		manifests: map[string][]byte{},
		statuses:  map[string]int{},
		token:     "registrytest-token",
	}

	router := mux.NewRouter()
	router.Use(r.record)
	router.HandleFunc("/token", r.issueToken).Methods(http.MethodGet)
	router.HandleFunc("/v2/{name:.+}/manifests/{reference}", r.authorized(r.manifest)).Methods(http.MethodGet)
	router.HandleFunc("/v2/{name:.+}/blobs/{digest}", r.authorized(r.blob)).Methods(http.MethodGet)
	r.server = httptest.NewServer(router)
	return r
}

// Close shuts the server down.
func (r *Registry) Close() {
	r.server.Close()
}

// Token returns the token issued by the token endpoint and required by all
// other endpoints.
func (r *Registry) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}

// SetToken replaces the issued token. An empty token disables
// authorization.
func (r *Registry) SetToken(t string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = t
}

// URL returns the base URL of the server.
func (r *Registry) URL() string {
	return r.server.URL
}

// AuthURL returns the URL of the token endpoint.
func (r *Registry) AuthURL() string {
	return r.server.URL + "/token"
}

// Host returns host:port of the server.
func (r *Registry) Host() string {
	return strings.TrimPrefix(r.server.URL, "http://")
}

// Reference returns a reference to name:tag on this registry.
func (r *Registry) Reference(nameTag string) reference.Reference {
	ref, err := reference.Parse(r.server.URL + "/" + nameTag)
	if err != nil {
		panic(err)
	}

	return ref
}

// AddManifest serves b for name under each of the given identifiers and
// under its own digest.
func (r *Registry) AddManifest(name string, b []byte, identifiers ...string) digest.Digest {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := digest.FromBytes(b)
	r.manifests[name+"@"+d.String()] = b
	for _, id := range identifiers {
		r.manifests[name+"@"+id] = b
	}

	return d
}

// AddBlob serves b for name under its digest.
func (r *Registry) AddBlob(name string, b []byte) digest.Digest {
	d := digest.FromBytes(b)
	r.AddBlobAs(name, d, b)
	return d
}

// AddBlobAs serves b for name under d, whether or not d matches b.
func (r *Registry) AddBlobAs(name string, d digest.Digest, b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[name+"@"+d.String()] = b
}

// AddImage stores config and layers as blobs, builds a manifest listing
// them and serves it under tag.
func (r *Registry) AddImage(name, tag string, config []byte, layers ...[]byte) *image.Manifest {
	m := &image.Manifest{
		Config: image.Media{
			MediaType: image.MediaTypeConfig,
			Size:      uint64(len(config)),
			Digest:    r.AddBlob(name, config),
		},
		Layers: []image.Media{},
	}
	m.SchemaVersion = image.SchemaVersion
	m.MediaType = image.MediaTypeManifest
	for _, l := range layers {
		m.Layers = append(m.Layers, image.Media{
			MediaType: image.MediaTypeLayer,
			Size:      uint64(len(l)),
			Digest:    r.AddBlob(name, l),
		})
	}

	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}

	r.AddManifest(name, b, tag)
	return m
}

// SetStatus makes the server answer every request whose path equals path
// with status.
func (r *Registry) SetStatus(path string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[path] = status
}

// Requests returns all requests received so far.
func (r *Registry) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request{}, r.requests...)
}

// RequestsTo returns the paths of all requests whose path contains s.
func (r *Registry) RequestsTo(s string) []string {
	paths := []string{}
	for _, req := range r.Requests() {
		if strings.Contains(req.Path, s) {
			paths = append(paths, req.Path)
		}
	}

	return paths
}

func (r *Registry) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.requests = append(r.requests, Request{
			Method:        req.Method,
			Path:          req.URL.Path,
			Query:         req.URL.Query(),
			Accept:        req.Header.Get("Accept"),
			Authorization: req.Header.Get("Authorization"),
			UserAgent:     req.Header.Get("User-Agent"),
		})
		status, ok := r.statuses[req.URL.Path]
		r.mu.Unlock()

		if ok {
			w.WriteHeader(status)
			w.Write([]byte(`{"errors":[{"code":"DENIED","message":"status set by test"}]}`))
			return
		}

		next.ServeHTTP(w, req)
	})
}

func (r *Registry) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token := r.Token()
		if token != "" && req.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errors":[{"code":"UNAUTHORIZED"}]}`))
			return
		}

		next(w, req)
	}
}

func (r *Registry) issueToken(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	if q.Get("service") != Service || !strings.HasPrefix(q.Get("scope"), "repository:") {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	b, _ := json.Marshal(map[string]string{"token": r.Token()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (r *Registry) manifest(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	r.mu.Lock()
	b, ok := r.manifests[vars["name"]+"@"+vars["reference"]]
	r.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[{"code":"MANIFEST_UNKNOWN"}]}`))
		return
	}

	w.Header().Set("Content-Type", image.MediaTypeManifest)
	w.Header().Set("Docker-Content-Digest", digest.FromBytes(b).String())
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (r *Registry) blob(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	r.mu.Lock()
	b, ok := r.blobs[vars["name"]+"@"+vars["digest"]]
	r.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[{"code":"BLOB_UNKNOWN"}]}`))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
