package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/goplus/cppbuilder/internal/env"
	"github.com/goplus/cppbuilder/internal/process"
)

// ErrNoCompiler is returned when no usable compiler lives under a prefix.
var ErrNoCompiler = errors.New("no reference compiler found")

// ProbeTimeout bounds each verification probe of a candidate binary.
const ProbeTimeout = 20 * time.Second

var families = []string{"gcc", "clang"}

var scriptExts = map[string]bool{
	".py":   true,
	".perl": true,
	".sh":   true,
	".bash": true,
}

// CompilerFinder locates the reference compiler of an install prefix and
// answers queries against it. Found binaries are cached per prefix.
type CompilerFinder struct {
	Runner   process.Runner
	Settings env.Settings

	mu    sync.Mutex
	cache map[string]string
}

// NewCompilerFinder returns a finder running probes through r.
func NewCompilerFinder(r process.Runner, s env.Settings) *CompilerFinder {
	return &CompilerFinder{Runner: r, Settings: s, cache: make(map[string]string)}
}

// Find returns the reference compiler under prefix. gcc-like names are
// preferred over clang-like ones.
func (f *CompilerFinder) Find(ctx context.Context, prefix string) (string, error) {
	f.mu.Lock()
	if bin, ok := f.cache[prefix]; ok {
		f.mu.Unlock()
		return bin, nil
	}
	f.mu.Unlock()

	for _, family := range families {
		for _, cand := range candidates(prefix, family) {
			if f.verify(ctx, cand, family) {
				log.Debug().Str("prefix", prefix).Str("compiler", cand).Msg("reference compiler found")
				f.mu.Lock()
				if f.cache == nil {
					f.cache = make(map[string]string)
				}
				f.cache[prefix] = cand
				f.mu.Unlock()
				return cand, nil
			}
		}
	}
	return "", fmt.Errorf("%w under %s", ErrNoCompiler, prefix)
}

// Query runs the reference compiler of prefix with args and returns its
// trimmed output.
func (f *CompilerFinder) Query(ctx context.Context, prefix string, args ...string) (string, error) {
	bin, err := f.Find(ctx, prefix)
	if err != nil {
		return "", err
	}
	c := process.Exec(append([]string{bin}, args...)...).WithTimeout(f.Settings.Timeout(QueryTimeout))
	out, err := f.Runner.Capture(ctx, c)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (f *CompilerFinder) verify(ctx context.Context, bin, family string) bool {
	probe := func(arg string) string {
		c := process.Exec(bin, arg).WithTimeout(f.Settings.Timeout(ProbeTimeout))
		out, err := f.Runner.Capture(ctx, c)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(out)
	}
	if !strings.Contains(strings.ToLower(probe("-v")), family+" version") {
		return false
	}
	return probe("-dumpmachine") != "" && probe("-dumpversion") != ""
}

// candidates lists the executables under prefix named like family, in walk
// order.
func candidates(prefix, family string) []string {
	var out []string
	_ = filepath.WalkDir(prefix, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if scriptExts[filepath.Ext(name)] || !matchesFamily(name, family) {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
			return nil
		}
		out = append(out, path)
		return nil
	})
	return out
}

func matchesFamily(name, family string) bool {
	return name == family ||
		strings.HasPrefix(name, family+"-") ||
		strings.HasSuffix(name, "-"+family)
}
