package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

var errTopLevel = errors.New("top level must be a mapping")

// toJSON returns the config document as JSON so both formats go through the
// same strict decoder. The format follows the file extension; files without
// one are read as JSON.
func toJSON(path string, data []byte) ([]byte, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case "", ".json":
		return data, nil
	case ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .json, .yaml or .yml)", ext)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("yaml: %w", errTopLevel)
	}
	j, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return j, nil
}

// stringKeys rewrites nested maps so every key is a string. YAML reads chat
// ids under subscriptions as integers.
func stringKeys(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, el := range x {
			x[k] = stringKeys(el)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, el := range x {
			out[fmt.Sprint(k)] = stringKeys(el)
		}
		return out
	case []any:
		for i, el := range x {
			x[i] = stringKeys(el)
		}
		return x
	}
	return v
}
