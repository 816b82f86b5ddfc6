package feeds

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Package feeds contains pluggable feed source configs (YAML/JSON) and the
// fetchers that turn them into candidate items.

// Source describes one configured feed source.
type Source struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Type      string         `json:"type" yaml:"type"`
	SourceURL string         `json:"source_url" yaml:"source_url"`
	Config    map[string]any `json:"config" yaml:"config"`
}

type registryFile struct {
	Sources []Source `json:"sources" yaml:"sources"`
}

// Registry materializes source definitions loaded from config files.
type Registry struct {
	sources []Source
	idx     map[string]Source
}

// LoadRegistry loads the source registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sources file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	fileReg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Sources) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}

	reg := &Registry{
		sources: make([]Source, len(fileReg.Sources)),
		idx:     make(map[string]Source, len(fileReg.Sources)),
	}

	for i := range fileReg.Sources {
		src := sanitizeSource(fileReg.Sources[i])
		if err := validateSource(src); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, exists := reg.idx[src.ID]; exists {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		reg.sources[i] = src
		reg.idx[src.ID] = src
	}

	return reg, nil
}

// All returns a copy of the loaded sources.
func (r *Registry) All() []Source {
	if r == nil || len(r.sources) == 0 {
		return nil
	}
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// ByID returns the source entry for the given id, if loaded.
func (r *Registry) ByID(id string) (Source, bool) {
	id = strings.TrimSpace(id)
	if r == nil || id == "" {
		return Source{}, false
	}
	src, ok := r.idx[id]
	return src, ok
}

type unmarshalFn func([]byte, any) error

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("sources file format not recognized (expected YAML or JSON)")
}

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registryFile, error) {
	var reg registryFile
	if err := fn(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode %s sources: %w", name, err)
	}
	return reg, nil
}

func sanitizeSource(src Source) Source {
	src.ID = strings.TrimSpace(src.ID)
	src.Name = strings.TrimSpace(src.Name)
	src.Type = strings.ToLower(strings.TrimSpace(src.Type))
	src.SourceURL = strings.TrimSpace(src.SourceURL)

	if src.Config == nil {
		src.Config = map[string]any{}
	}
	return src
}

func validateSource(src Source) error {
	if src.ID == "" {
		return errors.New("id is required")
	}
	if src.Name == "" {
		return fmt.Errorf("name is required for source %q", src.ID)
	}
	if src.Type == "" {
		return fmt.Errorf("type is required for source %q", src.ID)
	}
	if src.SourceURL == "" {
		return fmt.Errorf("source_url is required for source %q", src.ID)
	}
	return nil
}
