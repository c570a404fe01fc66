// Package sources acquires component sources: HTTP downloads, archive
// extraction, shallow git checkouts and system packages.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/goplus/cppbuilder/internal/env"
	"github.com/goplus/cppbuilder/internal/process"
)

// GitPrefix marks a url that is checked out with git instead of downloaded:
// git+<remote>#<ref>.
const GitPrefix = "git+"

// PackageTimeout is the baseline apt-get budget per requested package.
const PackageTimeout = 180 * time.Second

// Fetcher implements the source collaborators of an installer.
type Fetcher struct {
	Client   *http.Client
	Runner   process.Runner
	Settings env.Settings
}

// New returns a Fetcher using the default HTTP client.
func New(runner process.Runner, settings env.Settings) *Fetcher {
	return &Fetcher{Client: http.DefaultClient, Runner: runner, Settings: settings}
}

// Fetch places the sources named by rawURL under scratch and returns the
// source root directory.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, scratch string) (string, error) {
	if remote, ref, ok := parseGitURL(rawURL); ok {
		dir := filepath.Join(scratch, "src")
		if err := f.Checkout(ctx, remote, ref, dir); err != nil {
			return "", err
		}
		return dir, nil
	}
	archive, err := f.Download(ctx, rawURL, scratch)
	if err != nil {
		return "", err
	}
	return Extract(archive, scratch)
}

// Download stores the resource at rawURL in dir, named after the last
// element of the url path, and returns the local path. file:// urls are
// copied.
func (f *Fetcher) Download(ctx context.Context, rawURL, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("url %q has no file name", rawURL)
	}
	dest := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("prepare download destination: %w", err)
	}

	log.Info().Str("url", rawURL).Msg("start download")
	start := time.Now()
	var size int64
	if u.Scheme == "file" {
		size, err = copyLocal(u.Path, dest)
	} else {
		size, err = f.get(ctx, rawURL, dest)
	}
	if err != nil {
		return "", err
	}
	log.Info().Str("file", name).Int64("bytes", size).Dur("elapsed", time.Since(start)).Msg("download complete")
	return dest, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "cppbuilder/1.0")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("download %s: unexpected status %s", rawURL, resp.Status)
	}
	return writeAtomic(dest, resp.Body)
}

func copyLocal(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	return writeAtomic(dest, in)
}

func writeAtomic(dest string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("finalize download: %w", err)
	}
	return n, nil
}

// InstallPackages installs system packages with apt-get. The baseline
// budget is PackageTimeout per package.
func (f *Fetcher) InstallPackages(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	log.Info().Strs("packages", names).Msg("installing system packages")
	args := append([]string{"apt-get", "install", "-y"}, names...)
	budget := f.Settings.Timeout(PackageTimeout * time.Duration(len(names)))
	out, err := f.Runner.Capture(ctx, process.Exec(args...).WithTimeout(budget))
	if err != nil {
		if out = strings.TrimSpace(out); out != "" {
			return fmt.Errorf("install packages %s: %w\n%s", strings.Join(names, " "), err, out)
		}
		return fmt.Errorf("install packages %s: %w", strings.Join(names, " "), err)
	}
	return nil
}

func parseGitURL(rawURL string) (remote, ref string, ok bool) {
	rest, found := strings.CutPrefix(rawURL, GitPrefix)
	if !found {
		return "", "", false
	}
	remote, ref, _ = strings.Cut(rest, "#")
	if ref == "" {
		ref = "HEAD"
	}
	return remote, ref, true
}
