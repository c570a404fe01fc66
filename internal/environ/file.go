package environ

import (
	"bufio"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Format renders vars as NAME=value lines sorted by name.
func Format(vars map[string]string) string {
	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(vars[name])
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteFile writes vars to path in the Format layout.
func WriteFile(path string, vars map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare env file dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(Format(vars)), 0o644); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

// Parse reads NAME=value lines. Blank lines and # comments are skipped, and
// an optional "export " prefix is accepted.
func Parse(content string) (map[string]string, error) {
	vars := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		name, value, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("line %d: expected NAME=value", lineNo)
		}
		vars[name] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return vars, nil
}

// ReadFile parses the env file at path.
func ReadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vars, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vars, nil
}
