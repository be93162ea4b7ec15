package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalogYAML []byte

var loadDefault = sync.OnceValues(func() (Catalog, error) {
	return Parse(defaultCatalogYAML, FormatYAML)
})

// Default returns a copy of the built-in catalog.
func Default() Catalog {
	c, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c.Clone()
}

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

func Parse(data []byte, format Format) (Catalog, error) {
	var c Catalog
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse yaml catalog: %w", err)
		}
	case FormatJSON:
		if err := sonic.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse json catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
	if len(c) == 0 {
		return nil, fmt.Errorf("catalog has no intents")
	}
	for code := range c {
		if strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("catalog contains an empty intent code")
		}
	}
	return c, nil
}

// LoadFile reads a catalog from a .yaml, .yml or .json file.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".json":
		format = FormatJSON
	default:
		return nil, fmt.Errorf("unsupported catalog file %q", path)
	}
	c, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("loaded intent catalog", "path", path, "intents", len(c))
	return c, nil
}
