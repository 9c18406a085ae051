// ABOUTME: Encoding of the content document as JSON or YAML and atomic file writes
// ABOUTME: The codec is picked from the file extension; writes go through temp+rename

package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// codec reads and writes the persisted document.
type codec struct {
	name   string
	decode func(data []byte, doc *document) error
	encode func(doc document) ([]byte, error)
}

var jsonCodec = codec{
	name: "json",
	decode: func(data []byte, doc *document) error {
		return json.Unmarshal(data, doc)
	},
	encode: func(doc document) ([]byte, error) {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	},
}

var yamlCodec = codec{
	name: "yaml",
	decode: func(data []byte, doc *document) error {
		return yaml.Unmarshal(data, doc)
	},
	encode: func(doc document) ([]byte, error) {
		return yaml.Marshal(doc)
	},
}

// codecFor picks the codec from the file extension.
func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec
	default:
		return jsonCodec
	}
}

// decodeDocument parses data into a validated tree.
func decodeDocument(c codec, data []byte) (*tree, error) {
	var doc document
	if err := c.decode(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing %s document: %v", ErrInvalid, c.name, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalid)
	}
	return buildTree(doc)
}

// writeFileAtomic writes data to a temp file next to path and renames it into
// place, so a crash never leaves a half-written document behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating content directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
