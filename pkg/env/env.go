// Package env reads and writes dotenv files.
package env

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
)

// Parse decodes dotenv text into a map.
func Parse(text string) (map[string]string, error) {
	vars, err := godotenv.Unmarshal(text)
	if err != nil {
		return nil, fmt.Errorf("invalid dotenv content: %w", err)
	}
	return vars, nil
}

// Keys returns the sorted variable names defined in text.
func Keys(text string) ([]string, error) {
	vars, err := Parse(text)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Load reads the dotenv file at path. A missing file yields an empty map.
func Load(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return vars, nil
}

// Save writes vars to path in dotenv format with sorted, quoted values.
// An empty map is a no-op.
func Save(path string, vars map[string]string) error {
	if len(vars) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create env directory: %w", err)
	}
	if err := godotenv.Write(vars, path); err != nil {
		return fmt.Errorf("failed to write env file %s: %w", path, err)
	}
	return nil
}
