package image

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/json"

	"github.com/docker/distribution/manifest"
	"github.com/pkg/errors"
)

// SchemaVersion is the only manifest schema version that is supported.
const SchemaVersion = 2

// Manifest lists the config blob and the layers of an image. Layers are
// ordered from the bottom of the filesystem to the top.
type Manifest struct {
	manifest.Versioned
	Config      Media             `json:"config"`
	Layers      []Media           `json:"layers"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// ParseManifest decodes and validates a manifest document. Every field
// except mediaType and annotations must be present.
func ParseManifest(b []byte) (*Manifest, error) {
	m := &Manifest{}
	err := json.Unmarshal(b, m)
	if err != nil {
		return nil, errors.Wrap(err, "decoding manifest")
	}

	err = checkManifestFields(b)
	if err != nil {
		return nil, err
	}

	err = m.Validate()
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Validate checks the schema version and every digest of the manifest.
func (m *Manifest) Validate() error {
	if m.SchemaVersion != SchemaVersion {
		return errors.Errorf("unsupported manifest schema version %d", m.SchemaVersion)
	}

	err := m.Config.Digest.Validate()
	if err != nil {
		return errors.Wrap(err, "config digest")
	}

	for i, l := range m.Layers {
		err := l.Digest.Validate()
		if err != nil {
			return errors.Wrapf(err, "digest of layer %d", i)
		}
	}

	return nil
}

// Layer returns the layer at position i.
func (m *Manifest) Layer(i int) (Media, error) {
	if i < 0 || i >= len(m.Layers) {
		return Media{}, errors.Errorf("layer index %d out of range, manifest has %d layers", i, len(m.Layers))
	}

	return m.Layers[i], nil
}

// TotalSize sums the size of all layers.
func (m *Manifest) TotalSize() uint64 {
	var size uint64
	for _, l := range m.Layers {
		size += l.Size
	}

	return size
}
