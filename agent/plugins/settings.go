package plugins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfigFile reads plugin configuration entries keyed by plugin name.
// The format is detected from the extension (.yaml, .yml, .json).
//
//	logging:
//	  enabled: true
//	  priority: 100
//	  log_file: /tmp/aicli.log
func LoadConfigFile(path string) (map[string]ConfigEntry, error) {
	entries := make(map[string]ConfigEntry)
	if err := decodeFile(path, &entries); err != nil {
		return nil, fmt.Errorf("load plugin config: %w", err)
	}
	return entries, nil
}

// WriteConfigFile writes entries to path, replacing the file atomically.
func WriteConfigFile(path string, entries map[string]ConfigEntry) error {
	format := detectFormat(path)
	if format == "" {
		return fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}
	data, err := encodeBytes(entries, format)
	if err != nil {
		return fmt.Errorf("encode plugin config: %w", err)
	}
	return writeFileAtomic(path, data, 0o644)
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	format := detectFormat(path)
	if format == "" {
		return fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}
	return decodeBytes(data, format, v)
}

// decodeBytes parses raw bytes in the given format ("yaml" or "json").
func decodeBytes(data []byte, format string, v any) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse YAML: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format %q, use \"yaml\" or \"json\"", format)
	}
	return nil
}

func encodeBytes(v any, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return yaml.Marshal(v)
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("unsupported format %q, use \"yaml\" or \"json\"", format)
}

// detectFormat returns "yaml" or "json" based on file extension, or "" if unknown.
func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename config file: %w", err)
	}
	return nil
}
