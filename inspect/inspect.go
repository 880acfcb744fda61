// Package inspect runs one inspection of an image: it resolves the
// reference, authenticates, loads manifest and config and fetches layer
// catalogs on demand.
package inspect

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/imagespy/inspect/image"
	"github.com/imagespy/inspect/layer"
	"github.com/imagespy/inspect/reference"
	"github.com/imagespy/inspect/registry"
	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -destination=../registry/mock/mock.go -package=mock github.com/imagespy/inspect/inspect Registry

// Registry is the part of the registry client an inspection needs.
type Registry interface {
	Token(ctx context.Context, ref reference.Reference) (registry.Token, error)
	Manifest(ctx context.Context, ref reference.Reference, token registry.Token) (*image.Manifest, error)
	ConfigOf(ctx context.Context, ref reference.Reference, token registry.Token, m *image.Manifest) (*image.Config, error)
	Layer(ctx context.Context, ref reference.Reference, token registry.Token, media image.Media) (layer.Catalog, error)
}

// Inspector starts inspection sessions.
type Inspector struct {
	idFunc   func() string
	parser   *reference.Parser
	registry Registry
}

// New creates an Inspector.
func New(p *reference.Parser, r Registry) *Inspector {
	return &Inspector{
		idFunc:   func() string { return uuid.New().String() },
		parser:   p,
		registry: r,
	}
}

// Session holds the results of one inspection. The token is kept for the
// lifetime of the session only.
type Session struct {
	ID        string
	Reference reference.Reference
	Manifest  *image.Manifest
	Config    *image.Config

	logger   *log.Entry
	registry Registry
	token    registry.Token
}

// Inspect parses input, requests a token and fetches manifest and config.
// Nothing is requested if input cannot be parsed and the config is not
// requested if the manifest cannot be fetched.
func (i *Inspector) Inspect(ctx context.Context, input string) (*Session, error) {
	ref, err := i.parser.Parse(input)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        i.idFunc(),
		Reference: ref,
		registry:  i.registry,
	}
	s.logger = log.WithFields(log.Fields{
		"run":   s.ID,
		"image": ref.String(),
	})

	s.logger.Debug("requesting token")
	s.token, err = i.registry.Token(ctx, ref)
	if err != nil {
		return nil, errors.Wrapf(err, "authenticating for %s", ref)
	}

	s.logger.Debug("fetching manifest")
	s.Manifest, err = i.registry.Manifest(ctx, ref, s.token)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching manifest of %s", ref)
	}

	s.logger.WithField("layers", len(s.Manifest.Layers)).Debug("fetching config")
	s.Config, err = i.registry.ConfigOf(ctx, ref, s.token, s.Manifest)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching config of %s", ref)
	}

	s.logger.Info("image inspected")
	return s, nil
}

// Layer fetches the catalog of the layer at position index of the manifest.
func (s *Session) Layer(ctx context.Context, index int) (layer.Catalog, error) {
	media, err := s.Manifest.Layer(index)
	if err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(log.Fields{
		"layer":  index,
		"digest": media.Digest.String(),
	})
	logger.Debug("fetching layer")
	c, err := s.registry.Layer(ctx, s.Reference, s.token, media)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching layer %d of %s", index, s.Reference)
	}

	logger.WithField("entries", len(c)).Info("layer inspected")
	return c, nil
}

// FindLayer resolves sel to a position in the manifest. sel is either a
// zero based index or the digest of a layer.
func (s *Session) FindLayer(sel string) (int, error) {
	if i, err := strconv.Atoi(sel); err == nil {
		if _, err := s.Manifest.Layer(i); err != nil {
			return 0, err
		}

		return i, nil
	}

	d, err := digest.Parse(sel)
	if err != nil {
		return 0, errors.Errorf("%q is neither a layer index nor a digest", sel)
	}

	for i, l := range s.Manifest.Layers {
		if l.Digest == d {
			return i, nil
		}
	}

	return 0, errors.Errorf("manifest of %s contains no layer %s", s.Reference, d)
}
