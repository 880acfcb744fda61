package image

import (
	"github.com/docker/distribution/manifest/schema2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	digest "github.com/opencontainers/go-digest"
)

// Media types sent in Accept headers. The docker v2 types are what the
// registry is asked for first, the OCI types are accepted as equivalent.
const (
	MediaTypeManifest = schema2.MediaTypeManifest
	MediaTypeConfig   = schema2.MediaTypeImageConfig
	MediaTypeLayer    = schema2.MediaTypeLayer

	MediaTypeOCIManifest = ocispec.MediaTypeImageManifest
	MediaTypeOCIConfig   = ocispec.MediaTypeImageConfig
	MediaTypeOCILayer    = ocispec.MediaTypeImageLayerGzip
)

// Media describes a content addressed blob referenced by a manifest.
type Media struct {
	MediaType string        `json:"mediaType"`
	Size      uint64        `json:"size"`
	Digest    digest.Digest `json:"digest"`
}

// IsGzipLayer reports whether the blob is a gzip compressed tar archive. An
// empty media type is assumed to be one.
func (m Media) IsGzipLayer() bool {
	switch m.MediaType {
	case "", MediaTypeLayer, MediaTypeOCILayer, schema2.MediaTypeForeignLayer, ocispec.MediaTypeImageLayerNonDistributableGzip:
		return true
	}

	return false
}
