// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package orchestrator runs the installation of every declared component
// and materializes the resulting environment.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/goplus/cppbuilder/internal/conan"
	"github.com/goplus/cppbuilder/internal/config"
	"github.com/goplus/cppbuilder/internal/environ"
	"github.com/goplus/cppbuilder/internal/installer"
	"github.com/goplus/cppbuilder/internal/registry"
)

// Options locate the outputs of a run.
type Options struct {
	RegistryPath string
	EnvFilePath  string
	ConanDir     string

	// ContinueOnError keeps installing the remaining components after a
	// failure. The run still reports every failure.
	ContinueOnError bool
}

// Result is the outcome of a run.
type Result struct {
	Registry  *registry.Registry
	Variables map[string]string
	Failed    []string // keys of the components that failed
}

// Orchestrator installs declared components one at a time.
type Orchestrator struct {
	deps installer.Deps
	opts Options
}

// New returns an orchestrator. A compiler finder is created when deps has none,
// so installers and profile generation share one cache.
func New(deps installer.Deps, opts Options) *Orchestrator {
	if deps.Compilers == nil {
		deps.Compilers = installer.NewCompilerFinder(deps.Runner, deps.Settings)
	}
	return &Orchestrator{deps: deps, opts: opts}
}

type planned struct {
	decl *config.Declaration
	lc   *installer.Lifecycle
}

// Run installs the components of cfg in declaration order.
//
// Configuration problems abort the run before the registry is touched.
// Otherwise the registry is reset, saved after every successful install,
// and the environment file is written from its final content, also when
// the run stops at a failed component.
func (o *Orchestrator) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	plan := make([]planned, 0, len(cfg.Components))
	for i := range cfg.Components {
		d := &cfg.Components[i]
		lc, err := installer.New(d, cfg.BasePath, o.deps)
		if err != nil {
			return nil, err
		}
		plan = append(plan, planned{d, lc})
	}

	reg := registry.New()
	if err := reg.Save(o.opts.RegistryPath); err != nil {
		return nil, err
	}
	res := &Result{Registry: reg}
	profiles := &conan.Generator{Dir: o.opts.ConanDir, Compilers: o.deps.Compilers}

	var errs []error
	start := time.Now()
	for _, p := range plan {
		err := o.install(ctx, p, reg, profiles)
		if err == nil {
			continue
		}
		res.Failed = append(res.Failed, p.decl.Key)
		errs = append(errs, err)
		if !o.opts.ContinueOnError {
			break
		}
	}

	vars, err := environ.FromRegistry(reg)
	if err != nil {
		return res, errors.Join(append(errs, err)...)
	}
	res.Variables = vars
	if err := environ.WriteFile(o.opts.EnvFilePath, vars); err != nil {
		return res, errors.Join(append(errs, err)...)
	}
	log.Info().
		Int("installed", reg.Len()).
		Int("failed", len(res.Failed)).
		Int("variables", len(vars)).
		Str("env_file", o.opts.EnvFilePath).
		Dur("elapsed", time.Since(start)).
		Msg("installation run finished")
	return res, errors.Join(errs...)
}

func (o *Orchestrator) install(ctx context.Context, p planned, reg *registry.Registry, profiles *conan.Generator) error {
	desc, err := p.lc.Run(ctx)
	if err != nil {
		return err
	}
	var vars map[string]string
	if p.decl.ConanProfile {
		if !conan.Supported(desc.Name) {
			log.Warn().Str("key", p.decl.Key).Str("name", desc.Name).Msg("conan profiles are only written for gcc and clang")
		} else if vars, err = profiles.Generate(ctx, p.decl.Key, desc); err != nil {
			return fmt.Errorf("component %q: conan profiles: %w", p.decl.Key, err)
		}
	}
	reg.Record(p.decl.Key, desc)
	for name, path := range vars {
		reg.SetVariable(name, path)
	}
	return reg.Save(o.opts.RegistryPath)
}
