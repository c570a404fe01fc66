// Package env resolves the process-level knobs that tune an installation run.
package env

import (
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

const (
	MetadataPath      = "BUILDER_METADATA_PATH"
	MaxCPUCount       = "BUILDER_MAX_CPU_COUNT"
	TimeoutMultiplier = "BUILDER_TIMEOUT_MULTIPLIER"
	SummaryPath       = "BUILDER_INSTALLATION_SUMMARY_DIR"
	EnvFilePath       = "BUILDER_ENV_FILE"
	ConanProfilesPath = "BUILDER_CONAN_PROFILES_PATH"
	InsideShell       = "BUILDER_INSIDE_SHELL"
)

const (
	DefaultMetadataPath      = "/tools/scripts/toolchain-metadata.json"
	DefaultSummaryPath       = "/tools/scripts/.installation.json"
	DefaultEnvFilePath       = "/tools/scripts/.environment"
	DefaultConanProfilesPath = "/tools/conan/profiles"
)

// Settings is a snapshot of the knobs. Components take a Settings value
// instead of reading the environment themselves, which keeps tests hermetic.
type Settings struct {
	CPUs       int
	Multiplier float64
}

// Load reads Settings from the process environment.
func Load() Settings {
	return Settings{
		CPUs:       MaxCPUs(),
		Multiplier: Multiplier(),
	}
}

// Timeout scales a baseline timeout. Multipliers at or below 1.0 leave it unchanged.
func (s Settings) Timeout(base time.Duration) time.Duration {
	if s.Multiplier <= 1.0 {
		return base
	}
	secs := math.Ceil(s.Multiplier * base.Seconds())
	return time.Duration(secs) * time.Second
}

// Parallelism returns the CPU cap, never less than one.
func (s Settings) Parallelism() int {
	if s.CPUs < 1 {
		return 1
	}
	return s.CPUs
}

// MaxCPUs returns BUILDER_MAX_CPU_COUNT capped at the number of CPUs of the host.
func MaxCPUs() int {
	cores := runtime.NumCPU()
	raw := strings.TrimSpace(os.Getenv(MaxCPUCount))
	if raw == "" {
		return cores
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return cores
	}
	return min(n, cores)
}

// Multiplier returns BUILDER_TIMEOUT_MULTIPLIER, 1 when unset or invalid.
func Multiplier() float64 {
	raw := strings.ReplaceAll(strings.TrimSpace(os.Getenv(TimeoutMultiplier)), ",", "")
	if raw == "" {
		return 1
	}
	m, err := strconv.ParseFloat(raw, 64)
	if err != nil || m <= 0 {
		return 1
	}
	return m
}

// Path returns the value of key with a leading "~" expanded, or def when unset.
func Path(key, def string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		value = def
	}
	expanded, err := homedir.Expand(value)
	if err != nil {
		return value
	}
	return expanded
}

// SummaryFile returns the registry file location.
func SummaryFile() string { return Path(SummaryPath, DefaultSummaryPath) }

// EnvFile returns the generated environment file location.
func EnvFile() string { return Path(EnvFilePath, DefaultEnvFilePath) }

// MetadataFile returns the declaration file location.
func MetadataFile() string { return Path(MetadataPath, DefaultMetadataPath) }

// ConanProfilesDir returns the conan profile directory.
func ConanProfilesDir() string { return Path(ConanProfilesPath, DefaultConanProfilesPath) }

// IsInsideShell reports whether a cppbuilder shell session is already active.
func IsInsideShell() bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(InsideShell)))
	return err == nil && v
}
