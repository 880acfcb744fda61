package image

import (
	"encoding/json"
	"strings"

	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// RootFSTypeLayers is the only rootfs type an image config may declare.
const RootFSTypeLayers = "layers"

// Architecture is the CPU architecture an image was built for.
type Architecture int

const (
	Amd64 Architecture = iota + 1
	Aarch64
)

var architectureNames = map[string]Architecture{
	"amd64":   Amd64,
	"aarch64": Aarch64,
	"arm64":   Aarch64,
}

func (a Architecture) String() string {
	switch a {
	case Amd64:
		return "Amd64"
	case Aarch64:
		return "Aarch64"
	}

	return "Unknown"
}

func (a Architecture) MarshalJSON() ([]byte, error) {
	switch a {
	case Amd64:
		return json.Marshal("amd64")
	case Aarch64:
		return json.Marshal("arm64")
	}

	return nil, errors.Errorf("unknown architecture %d", int(a))
}

func (a *Architecture) UnmarshalJSON(b []byte) error {
	var s string
	err := json.Unmarshal(b, &s)
	if err != nil {
		return err
	}

	v, ok := architectureNames[strings.ToLower(s)]
	if !ok {
		return errors.Errorf("unsupported architecture %q", s)
	}

	*a = v
	return nil
}

// OS is the operating system an image was built for.
type OS int

const (
	Linux OS = iota + 1
	Windows
)

func (o OS) String() string {
	switch o {
	case Linux:
		return "Linux"
	case Windows:
		return "Windows"
	}

	return "Unknown"
}

func (o OS) MarshalJSON() ([]byte, error) {
	switch o {
	case Linux:
		return json.Marshal("linux")
	case Windows:
		return json.Marshal("windows")
	}

	return nil, errors.Errorf("unknown os %d", int(o))
}

func (o *OS) UnmarshalJSON(b []byte) error {
	var s string
	err := json.Unmarshal(b, &s)
	if err != nil {
		return err
	}

	switch strings.ToLower(s) {
	case "linux":
		*o = Linux
	case "windows":
		*o = Windows
	default:
		return errors.Errorf("unsupported os %q", s)
	}

	return nil
}

// Configuration holds the runtime defaults of a container started from the image.
type Configuration struct {
	User         string              `json:"User,omitempty"`
	ExposedPorts map[string]struct{} `json:"ExposedPorts,omitempty"`
	Env          []string            `json:"Env,omitempty"`
	Entrypoint   []string            `json:"Entrypoint,omitempty"`
	Cmd          []string            `json:"Cmd,omitempty"`
	Volumes      map[string]struct{} `json:"Volumes,omitempty"`
	WorkingDir   string              `json:"WorkingDir,omitempty"`
	Labels       map[string]string   `json:"Labels,omitempty"`
}

type RootFS struct {
	DiffIDs []digest.Digest `json:"diff_ids"`
	Type    string          `json:"type"`
}

// History describes how one layer was created. EmptyLayer is set for steps
// that did not change the filesystem.
type History struct {
	Created    string `json:"created,omitempty"`
	CreatedBy  string `json:"created_by,omitempty"`
	Author     string `json:"author,omitempty"`
	Comment    string `json:"comment,omitempty"`
	EmptyLayer bool   `json:"empty_layer,omitempty"`
}

// Config is the image configuration blob.
type Config struct {
	Created      string        `json:"created"`
	Author       string        `json:"author,omitempty"`
	Architecture Architecture  `json:"architecture"`
	OS           OS            `json:"os"`
	Config       Configuration `json:"config"`
	RootFS       RootFS        `json:"rootfs"`
	History      []History     `json:"history"`
}

// ParseConfig decodes and validates an image configuration.
func ParseConfig(b []byte) (*Config, error) {
	c := &Config{}
	err := json.Unmarshal(b, c)
	if err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}

	err = checkConfigFields(b)
	if err != nil {
		return nil, err
	}

	err = c.Validate()
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Validate checks the fields the JSON decoder cannot enforce.
func (c *Config) Validate() error {
	if c.Architecture == 0 {
		return errors.New("config has no architecture")
	}

	if c.OS == 0 {
		return errors.New("config has no os")
	}

	if c.RootFS.Type != RootFSTypeLayers {
		return errors.Errorf("unsupported rootfs type %q", c.RootFS.Type)
	}

	for i, d := range c.RootFS.DiffIDs {
		err := d.Validate()
		if err != nil {
			return errors.Wrapf(err, "diff id %d", i)
		}
	}

	return nil
}

// NonEmptyHistory returns the history entries that created a layer. Their
// order matches the order of the manifest layers.
func (c *Config) NonEmptyHistory() []History {
	var h []History
	for _, entry := range c.History {
		if !entry.EmptyLayer {
			h = append(h, entry)
		}
	}

	return h
}
