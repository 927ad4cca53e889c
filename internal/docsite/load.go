package docsite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/greq"
)

// Format identifies an encoding of the site record.
type Format string

const (
	FormatYAML      Format = "yaml"
	FormatTOML      Format = "toml"
	FormatJSON      Format = "json"
	FormatVitePress Format = "vitepress"
	FormatHugo      Format = "hugo"
)

// NormalizeFormat maps user input to a Format. Unknown values return "".
func NormalizeFormat(raw string) Format {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yaml", "yml":
		return FormatYAML
	case "toml":
		return FormatTOML
	case "json":
		return FormatJSON
	case "vitepress", "vite", "js":
		return FormatVitePress
	case "hugo":
		return FormatHugo
	default:
		return ""
	}
}

// FormatForPath picks the input format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", greq.NewError(greq.CategoryConfig, "unsupported navigation file extension").
			WithContext("path", path).
			WithContext("extension", ext).
			Build()
	}
}

// Load reads a navigation file. The format follows the file extension.
func Load(path string) (*Site, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is chosen by the operator
	if err != nil {
		return nil, greq.WrapError(err, greq.CategoryConfig, "failed to read navigation file").
			WithContext("path", path).
			Build()
	}
	site, err := Parse(data, format)
	if err != nil {
		if e, ok := greq.AsError(err); ok {
			e.Context().Set("path", path)
		}
		return nil, err
	}
	return site, nil
}

// Parse decodes data in the given format. Unknown fields are rejected.
func Parse(data []byte, format Format) (*Site, error) {
	var site Site
	var err error
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&site)
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&site)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&site)
	default:
		return nil, greq.NewError(greq.CategoryConfig, fmt.Sprintf("cannot parse navigation as %q", format)).Build()
	}
	if err != nil {
		return nil, greq.WrapError(err, greq.CategoryConfig, "failed to parse navigation").
			WithContext("format", string(format)).
			Build()
	}
	return &site, nil
}
