package installer

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// scanLines calls match for every line of path until it returns true.
// A missing file yields "".
func scanLines(path string, match func(line string) (string, bool)) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if v, ok := match(sc.Text()); ok {
			return v
		}
	}
	return ""
}

// firstLine returns the trimmed first line of path.
func firstLine(path string) string {
	return scanLines(path, func(line string) (string, bool) {
		return strings.TrimSpace(line), true
	})
}

// cmakeCacheVersion reads <variable>:<TYPE>=<value> from a CMakeCache.txt,
// CMAKE_PROJECT_VERSION when variable is empty.
func cmakeCacheVersion(path, variable string) string {
	if variable == "" {
		variable = "CMAKE_PROJECT_VERSION"
	}
	return scanLines(path, func(line string) (string, bool) {
		if !strings.HasPrefix(line, variable+":") {
			return "", false
		}
		_, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		value = strings.TrimSpace(value)
		return value, ok && value != ""
	})
}

// cmakeSetVersion reads set(<variable> <value>) from a CMake script.
func cmakeSetVersion(path, variable string) string {
	return scanLines(path, func(line string) (string, bool) {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if !strings.HasPrefix(lower, "set") || !strings.Contains(line, variable) {
			return "", false
		}
		inner := strings.TrimPrefix(line[3:], " ")
		inner = strings.TrimSuffix(strings.TrimPrefix(inner, "("), ")")
		fields := strings.Fields(inner)
		if len(fields) < 2 || fields[0] != variable {
			return "", false
		}
		v := strings.Trim(fields[len(fields)-1], `"`)
		return v, v != ""
	})
}

// specFileVersion reads the Version: field of an RPM spec file.
func specFileVersion(path string) string {
	return scanLines(path, func(line string) (string, bool) {
		rest, ok := strings.CutPrefix(line, "Version:")
		if !ok {
			return "", false
		}
		v := strings.TrimSpace(rest)
		return v, v != ""
	})
}

// cmakeSourceVersion finds cmVersionConfig.h under root and reads its
// CMake_VERSION define.
func cmakeSourceVersion(root string) string {
	var version string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != "cmVersionConfig.h" {
			return nil
		}
		version = scanLines(path, func(line string) (string, bool) {
			// The trailing space keeps CMake_VERSION_MAJOR and friends out.
			if !strings.Contains(line, "CMake_VERSION ") {
				return "", false
			}
			parts := strings.Split(line, " ")
			if len(parts) != 3 {
				return "", false
			}
			v := strings.TrimSpace(strings.ReplaceAll(parts[2], `"`, ""))
			return v, v != ""
		})
		if version != "" {
			return fs.SkipAll
		}
		return nil
	})
	return version
}
