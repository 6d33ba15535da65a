// Package archive reads .ipk package archives. An .ipk is an ar container
// holding a debian-binary marker, control.tar.gz with the control stanza,
// and data.tar.gz or data.tar.xz with the payload.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/ulikunitz/xz"

	"github.com/quantmind-br/ipkg/internal/control"
	"github.com/quantmind-br/ipkg/internal/security"
)

const (
	controlMember = "control.tar"
	dataMember    = "data.tar"
	controlFile   = "control"
)

// ReadControl extracts and parses the control stanza out of an archive. The
// returned record carries the archive path in LocalPath.
func ReadControl(path string) (*control.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	member, name, err := findMember(f, controlMember)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	reader, err := decompress(member, name)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", path, name, err)
	}

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: tar read error: %w", path, err)
		}
		if cleanEntryName(header.Name) != controlFile {
			continue
		}

		rec, err := control.ParseStanza(tr)
		if err != nil {
			return nil, fmt.Errorf("%s: parse control: %w", path, err)
		}
		rec.LocalPath = path
		return rec, nil
	}
	return nil, fmt.Errorf("%s: no control file in %s", path, name)
}

// ExtractData unpacks the payload into destDir and returns the installed
// paths, rooted at the install prefix (so "./usr/bin/x" comes back as
// "/usr/bin/x"). Directories are created but not listed. The context is
// checked between entries so a stuck extraction can be abandoned.
func ExtractData(ctx context.Context, path, destDir string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	member, name, err := findMember(f, dataMember)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	reader, err := decompress(member, name)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", path, name, err)
	}

	files, err := extractPayload(ctx, tar.NewReader(reader), destDir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return files, nil
}

// findMember scans the ar container for the first member whose name starts
// with prefix. Some ar writers append a trailing slash to member names.
func findMember(f io.Reader, prefix string) (io.Reader, string, error) {
	arReader := ar.NewReader(f)
	for {
		header, err := arReader.Next()
		if err == io.EOF {
			return nil, "", fmt.Errorf("no %s member found", prefix)
		}
		if err != nil {
			return nil, "", fmt.Errorf("reading ar entry: %w", err)
		}

		name := strings.TrimSuffix(header.Name, "/")
		if strings.HasPrefix(name, prefix) {
			return arReader, name, nil
		}
	}
}

func decompress(r io.Reader, name string) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, nil
	case strings.HasSuffix(name, ".xz"):
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzr, nil
	case strings.HasSuffix(name, ".tar"):
		return r, nil
	}
	return nil, fmt.Errorf("unsupported compression: %s", name)
}

func extractPayload(ctx context.Context, tr *tar.Reader, destDir string) ([]string, error) {
	var files []string
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		header, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("tar read error: %w", err)
		}

		name := cleanEntryName(header.Name)
		if name == "" {
			continue
		}
		if err := security.ValidateExtractPath(destDir, name); err != nil {
			return nil, fmt.Errorf("invalid path in archive: %w", err)
		}
		target := filepath.Join(destDir, name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			if err := extractFile(tr, target, header.Mode); err != nil {
				return nil, fmt.Errorf("failed to extract file %s: %w", name, err)
			}
			files = append(files, "/"+name)

		case tar.TypeSymlink:
			if err := security.ValidateSymlink(destDir, target, header.Linkname); err != nil {
				return nil, fmt.Errorf("invalid symlink: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, fmt.Errorf("failed to create parent directory: %w", err)
			}
			// Replace whatever a previous version left behind.
			_ = os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return nil, fmt.Errorf("failed to create symlink: %w", err)
			}
			files = append(files, "/"+name)

		case tar.TypeLink:
			if err := security.ValidateExtractPath(destDir, header.Linkname); err != nil {
				return nil, fmt.Errorf("invalid hard link target: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, fmt.Errorf("failed to create parent directory: %w", err)
			}
			_ = os.Remove(target)
			if err := os.Link(filepath.Join(destDir, cleanEntryName(header.Linkname)), target); err != nil {
				return nil, fmt.Errorf("failed to create hard link: %w", err)
			}
			files = append(files, "/"+name)

		default:
			// Device nodes and the like are skipped.
			continue
		}
	}
}

func extractFile(r io.Reader, target string, mode int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(mode))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// cleanEntryName normalizes a tar entry name: payload entries are written as
// "./usr/bin/x". Returns "" for the root entry itself.
func cleanEntryName(name string) string {
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimSuffix(name, "/")
	if name == "" || name == "." {
		return ""
	}
	return filepath.Clean(name)
}
