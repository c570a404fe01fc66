package installer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/goplus/cppbuilder/internal/registry"
)

// DownloadOnly installs a prebuilt archive by copying its tree to the prefix.
type DownloadOnly struct {
	sourceStep
	noBuild
}

func (DownloadOnly) Install(_ context.Context, j *Job) error {
	if err := os.RemoveAll(j.Target); err != nil {
		return err
	}
	return copyTree(j.Source, j.Target)
}

func (DownloadOnly) ResolveVersion(_ context.Context, j *Job) (string, error) {
	return declaredVersion(j)
}

func (DownloadOnly) VersionPoint() VersionPoint { return AfterInstall }

// DownloadOnlyCompiler is a prebuilt compiler; its version and triplet are
// asked from the installed binary.
type DownloadOnlyCompiler struct {
	DownloadOnly
}

func (DownloadOnlyCompiler) ResolveVersion(ctx context.Context, j *Job) (string, error) {
	v, err := j.Compilers.Query(ctx, j.Target, "-dumpversion")
	if err == nil && v != "" {
		return v, nil
	}
	log.Debug().Err(err).Str("key", j.Decl.Key).Msg("compiler reports no version")
	return declaredVersion(j)
}

func (DownloadOnlyCompiler) Describe(ctx context.Context, j *Job) (registry.Descriptor, error) {
	triplet, err := j.Compilers.Query(ctx, j.Target, "-dumpmachine")
	if err != nil {
		return registry.Descriptor{}, fmt.Errorf("query triplet: %w", err)
	}
	j.Triplet = triplet
	return describe(j), nil
}

// copyTree copies src to dst. Symbolic links are recreated, not followed.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		}
		log.Debug().Str("path", path).Msg("skipping special file")
		return nil
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
