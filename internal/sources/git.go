package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goplus/cppbuilder/internal/process"
)

// Checkout makes dir a shallow checkout of ref from remote.
// ref can be a branch, a tag or a commit hash.
func (f *Fetcher) Checkout(ctx context.Context, remote, ref, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare checkout dir: %w", err)
	}
	if err := f.ensureInit(ctx, dir); err != nil {
		return err
	}
	if err := f.git(ctx, dir, "fetch", "--depth", "1", remote, ref); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := f.git(ctx, dir, "checkout", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

func (f *Fetcher) ensureInit(ctx context.Context, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		return f.git(ctx, dir, "init")
	}
	return nil
}

func (f *Fetcher) git(ctx context.Context, dir string, args ...string) error {
	cmd := process.Exec(append([]string{"git"}, args...)...).
		In(dir).
		WithTimeout(f.Settings.Timeout(process.DefaultTimeout))
	out, err := f.Runner.Capture(ctx, cmd)
	if err != nil {
		if out != "" {
			return fmt.Errorf("%w\n%s", err, out)
		}
		return err
	}
	return nil
}
