package sources

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/ulikunitz/xz"
)

// ErrUnsupportedArchive is returned for archive names with an unknown suffix.
var ErrUnsupportedArchive = errors.New("unsupported archive format")

type archiveFormat int

const (
	formatUnknown archiveFormat = iota
	formatTar
	formatTarGz
	formatTarXz
	formatTarBz2
	formatZip
)

func formatOf(name string) archiveFormat {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return formatTarGz
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return formatTarXz
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return formatTarBz2
	case strings.HasSuffix(lower, ".tar"):
		return formatTar
	case strings.HasSuffix(lower, ".zip"):
		return formatZip
	}
	return formatUnknown
}

// Extract unpacks archivePath into dest and returns the unpacked root: dest
// joined with the leading directory shared by every entry, or dest itself
// when the entries have no common leading directory.
func Extract(archivePath, dest string) (string, error) {
	log.Info().Str("archive", archivePath).Msg("start extraction")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("prepare extract dir: %w", err)
	}

	var (
		names []string
		err   error
	)
	switch formatOf(archivePath) {
	case formatZip:
		names, err = extractZip(archivePath, dest)
	case formatTar, formatTarGz, formatTarXz, formatTarBz2:
		names, err = extractTarFile(archivePath, dest)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedArchive, filepath.Base(archivePath))
	}
	if err != nil {
		return "", err
	}
	return filepath.Join(dest, commonRoot(names)), nil
}

func extractTarFile(archivePath, dest string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	switch formatOf(archivePath) {
	case formatTarGz:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case formatTarXz:
		xzr, err := xz.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		r = xzr
	case formatTarBz2:
		r = bzip2.NewReader(file)
	}
	return untarStream(r, dest)
}

func untarStream(r io.Reader, dest string) ([]string, error) {
	var names []string
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar header: %w", err)
		}
		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		target, err := entryPath(dest, header.Name)
		if err != nil {
			return nil, err
		}
		names = append(names, header.Name)

		mode := os.FileMode(header.Mode).Perm()
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, mode|0o700); err != nil {
				return nil, fmt.Errorf("create dir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, mode); err != nil {
				return nil, err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, fmt.Errorf("prepare link %s: %w", target, err)
			}
			_ = os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return nil, fmt.Errorf("create symlink %s: %w", target, err)
			}
		case tar.TypeLink:
			source, err := entryPath(dest, header.Linkname)
			if err != nil {
				return nil, err
			}
			_ = os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return nil, fmt.Errorf("create hard link %s: %w", target, err)
			}
		default:
			log.Debug().Str("entry", header.Name).Msg("skipping special tar entry")
		}
	}
	return names, nil
}

func extractZip(archivePath, dest string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	var names []string
	for _, file := range reader.File {
		target, err := entryPath(dest, file.Name)
		if err != nil {
			return nil, err
		}
		names = append(names, file.Name)
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("create dir %s: %w", target, err)
			}
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", file.Name, err)
		}
		err = writeFile(target, rc, file.Mode().Perm())
		rc.Close()
		if err != nil {
			return nil, err
		}
	}
	return names, nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("prepare file %s: %w", target, err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o200)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	return out.Close()
}

// entryPath joins an archive entry name to dest, rejecting names that escape it.
func entryPath(dest, name string) (string, error) {
	slashed := filepath.ToSlash(name)
	for _, elem := range strings.Split(slashed, "/") {
		if elem == ".." {
			return "", fmt.Errorf("archive entry %q escapes destination", name)
		}
	}
	return filepath.Join(dest, filepath.FromSlash(path.Clean("/"+slashed))), nil
}

// commonRoot returns the leading directory shared by all entry names, or ""
// when they do not share one.
func commonRoot(names []string) string {
	root := ""
	isDir := false
	for _, name := range names {
		slashed := filepath.ToSlash(name)
		clean := strings.TrimPrefix(path.Clean("/"+slashed), "/")
		if clean == "" {
			continue
		}
		first, _, nested := strings.Cut(clean, "/")
		if root == "" {
			root = first
		} else if root != first {
			return ""
		}
		if nested || strings.HasSuffix(slashed, "/") {
			isDir = true
		}
	}
	if !isDir {
		return ""
	}
	return root
}
