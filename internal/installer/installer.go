// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package installer drives the installation of one component.
//
// A Lifecycle walks a Variant through
//
//	Created -> SourcesAcquired -> Configured -> Built -> Installed
//
// and ends in Failed when any step fails. The scratch directory of the run is
// always removed; on failure the install prefix is removed too, so a partial
// toolchain is never left behind. Each Variant decides at which point of the
// sequence its version becomes known.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/goplus/cppbuilder/internal/config"
	"github.com/goplus/cppbuilder/internal/env"
	"github.com/goplus/cppbuilder/internal/process"
	"github.com/goplus/cppbuilder/internal/registry"
)

// ErrVersionUndeterminable is returned when no detection strategy yields a
// version and the declaration carries none.
var ErrVersionUndeterminable = errors.New("version undeterminable")

// Baseline timeouts, scaled by env.Settings.Timeout.
const (
	ConfigureTimeout = 300 * time.Second
	BuildTimeout     = 900 * time.Second
	InstallTimeout   = 300 * time.Second
	QueryTimeout     = 180 * time.Second
)

// State is a lifecycle state.
type State int

const (
	Created State = iota
	SourcesAcquired
	Configured
	Built
	Installed
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "CREATED"
	case SourcesAcquired:
		return "SOURCES_ACQUIRED"
	case Configured:
		return "CONFIGURED"
	case Built:
		return "BUILT"
	case Installed:
		return "INSTALLED"
	case Failed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Stage names a lifecycle step in errors and logs.
type Stage string

const (
	StageAcquire   Stage = "acquire"
	StageConfigure Stage = "configure"
	StageVersion   Stage = "version"
	StageBuild     Stage = "build"
	StageInstall   Stage = "install"
	StageDescribe  Stage = "describe"
)

// VersionPoint is where a variant resolves the component version.
type VersionPoint int

const (
	BeforeConfigure VersionPoint = iota
	AfterConfigure
	AfterInstall
)

// StageError reports the failing component and step.
type StageError struct {
	Key   string
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("component %q: %s failed: %v", e.Key, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// SourceProvider acquires sources and system packages.
type SourceProvider interface {
	// Fetch places the sources named by url under scratch and returns their root.
	Fetch(ctx context.Context, url, scratch string) (string, error)
	// InstallPackages installs system packages.
	InstallPackages(ctx context.Context, names []string) error
}

// Variant implements the steps of one tool family.
type Variant interface {
	AcquireSources(ctx context.Context, j *Job) error
	Configure(ctx context.Context, j *Job) error
	Build(ctx context.Context, j *Job) error
	Install(ctx context.Context, j *Job) error
	ResolveVersion(ctx context.Context, j *Job) (string, error)
	VersionPoint() VersionPoint
	Describe(ctx context.Context, j *Job) (registry.Descriptor, error)
}

// Job carries the state shared by the steps of one run.
type Job struct {
	Decl     *config.Declaration
	Target   string // install prefix
	Scratch  string // private, removed when the run ends
	Source   string // source root, set by AcquireSources
	BuildDir string // out-of-tree build directory, when the variant uses one
	Version  string
	Triplet  string

	Settings  env.Settings
	Runner    process.Runner
	Sources   SourceProvider
	Compilers *CompilerFinder
}

// Timeout scales a baseline timeout.
func (j *Job) Timeout(base time.Duration) time.Duration {
	return j.Settings.Timeout(base)
}

// Run executes c, in the source root unless c names a directory.
func (j *Job) Run(ctx context.Context, c process.Command, base time.Duration) error {
	return j.Runner.Run(ctx, j.prepare(c, base))
}

// Capture executes c and returns its output.
func (j *Job) Capture(ctx context.Context, c process.Command, base time.Duration) (string, error) {
	return j.Runner.Capture(ctx, j.prepare(c, base))
}

func (j *Job) prepare(c process.Command, base time.Duration) process.Command {
	if c.Dir == "" {
		c.Dir = j.Source
	}
	return c.WithTimeout(j.Timeout(base))
}

// Lifecycle runs one Variant for one declaration.
type Lifecycle struct {
	variant      Variant
	job          *Job
	state        State
	createTarget bool
	scratchRoot  string
}

// State returns the current state.
func (l *Lifecycle) State() State { return l.state }

// Key returns the declaration key.
func (l *Lifecycle) Key() string { return l.job.Decl.Key }

// Target returns the install prefix.
func (l *Lifecycle) Target() string { return l.job.Target }

// Run installs the component and returns its descriptor.
func (l *Lifecycle) Run(ctx context.Context) (desc registry.Descriptor, err error) {
	if l.state != Created {
		return desc, fmt.Errorf("component %q: lifecycle already ran (%s)", l.Key(), l.state)
	}
	j := l.job
	logger := log.With().Str("key", l.Key()).Str("type", j.Decl.Type).Logger()
	start := time.Now()

	scratch, err := os.MkdirTemp(l.scratchRoot, "cppbuilder-"+filepath.Base(l.Key())+"-*")
	if err != nil {
		l.state = Failed
		return desc, &StageError{Key: l.Key(), Stage: StageAcquire, Err: err}
	}
	j.Scratch = scratch
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			logger.Warn().Err(rmErr).Str("dir", scratch).Msg("cannot remove scratch dir")
		}
	}()
	defer func() {
		if err == nil {
			return
		}
		l.state = Failed
		if rmErr := os.RemoveAll(j.Target); rmErr != nil {
			logger.Warn().Err(rmErr).Str("dir", j.Target).Msg("cannot remove install prefix")
		}
		logger.Error().Err(err).Msg("installation failed")
	}()

	if l.createTarget {
		if err = os.MkdirAll(j.Target, 0o755); err != nil {
			return desc, &StageError{Key: l.Key(), Stage: StageAcquire, Err: err}
		}
	}

	logger.Info().Str("target", j.Target).Msg("installation started")
	steps := []struct {
		stage Stage
		next  State
		fn    func(context.Context, *Job) error
		point VersionPoint
	}{
		{StageAcquire, SourcesAcquired, l.variant.AcquireSources, BeforeConfigure},
		{StageConfigure, Configured, l.variant.Configure, AfterConfigure},
		{StageBuild, Built, l.variant.Build, -1},
		{StageInstall, Installed, l.variant.Install, AfterInstall},
	}
	for _, s := range steps {
		if err = s.fn(ctx, j); err != nil {
			return desc, &StageError{Key: l.Key(), Stage: s.stage, Err: err}
		}
		if s.next != Installed {
			l.state = s.next
			logger.Debug().Stringer("state", l.state).Msg("stage complete")
		}
		if s.point == l.variant.VersionPoint() {
			if j.Version, err = l.variant.ResolveVersion(ctx, j); err != nil {
				return desc, &StageError{Key: l.Key(), Stage: StageVersion, Err: err}
			}
			logger.Info().Str("version", j.Version).Msg("version resolved")
		}
	}

	if desc, err = l.variant.Describe(ctx, j); err != nil {
		return desc, &StageError{Key: l.Key(), Stage: StageDescribe, Err: err}
	}
	l.state = Installed
	logger.Info().
		Str("version", desc.Version).
		Str("triplet", desc.Triplet).
		Dur("elapsed", time.Since(start)).
		Msg("installation complete")
	return desc, nil
}

// declaredVersion ends every version fallback chain.
func declaredVersion(j *Job) (string, error) {
	if j.Decl.Version != "" {
		return j.Decl.Version, nil
	}
	return "", fmt.Errorf("%w: component %q declares no version", ErrVersionUndeterminable, j.Decl.Key)
}
