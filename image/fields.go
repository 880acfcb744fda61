package image

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

var mediaFields = []string{"mediaType", "size", "digest"}

// requireFields decodes the JSON object b and fails if one of keys is
// absent or null.
func requireFields(b json.RawMessage, what string, keys ...string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	err := json.Unmarshal(b, &obj)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", what)
	}

	for _, k := range keys {
		v, ok := obj[k]
		if !ok || string(v) == "null" {
			return nil, errors.Errorf("%s has no field %q", what, k)
		}
	}

	return obj, nil
}

// requireEach calls requireFields for every element of the JSON array b.
func requireEach(b json.RawMessage, what string, keys ...string) error {
	var items []json.RawMessage
	err := json.Unmarshal(b, &items)
	if err != nil {
		return errors.Wrapf(err, "decoding %s", what)
	}

	for i, item := range items {
		_, err := requireFields(item, fmt.Sprintf("%s %d", what, i), keys...)
		if err != nil {
			return err
		}
	}

	return nil
}

func checkManifestFields(b []byte) error {
	obj, err := requireFields(b, "manifest", "schemaVersion", "config", "layers")
	if err != nil {
		return err
	}

	_, err = requireFields(obj["config"], "manifest config", mediaFields...)
	if err != nil {
		return err
	}

	return requireEach(obj["layers"], "layer", mediaFields...)
}

func checkConfigFields(b []byte) error {
	obj, err := requireFields(b, "config", "created", "architecture", "os", "config", "rootfs", "history")
	if err != nil {
		return err
	}

	_, err = requireFields(obj["rootfs"], "rootfs", "diff_ids", "type")
	if err != nil {
		return err
	}

	return requireEach(obj["history"], "history entry", "created", "created_by")
}
