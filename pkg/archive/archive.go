// Package archive implements the tar extraction and writing used to
// materialize an image rootfs and to persist it to the on-disk cache.
package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Extract streams a POSIX tar from r into dstDir. Regular files are
// created (truncating any existing file) with the mode from the header;
// directories are created recursively; symlinks and hardlinks are both
// recreated as symbolic links whose target is the header's link name
// verbatim, removing any existing entry at the destination first. Any other entry type is logged and skipped. Extract is a single
// forward pass over r; it never seeks.
func Extract(r io.Reader, dstDir string, logger hclog.Logger) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed reading tar stream")
		}

		target := filepath.Join(dstDir, header.Name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)&os.ModePerm); err != nil {
				return errors.Wrapf(err, "failed to create directory: %s", target)
			}
			if err := os.Chmod(target, os.FileMode(header.Mode)&os.ModePerm); err != nil {
				return errors.Wrapf(err, "failed to chmod directory: %s", target)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errors.Wrapf(err, "failed to create parent directory for: %s", target)
			}
			if err := extractRegular(tr, target, os.FileMode(header.Mode)&os.ModePerm); err != nil {
				return errors.Wrapf(err, "failed to extract regular file: %s", target)
			}

		case tar.TypeSymlink, tar.TypeLink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errors.Wrapf(err, "failed to create parent directory for: %s", target)
			}
			if _, err := os.Lstat(target); err == nil {
				logger.Warn("overriding existing entry with symlink", "path", target)
				if err := os.Remove(target); err != nil {
					return errors.Wrapf(err, "failed to remove existing entry: %s", target)
				}
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return errors.Wrapf(err, "failed to create symlink: %s", target)
			}

		default:
			logger.Warn("skipping unsupported tar entry type", "path", header.Name, "typeflag", header.Typeflag)
		}
	}
}

func extractRegular(r io.Reader, target string, mode os.FileMode) error {
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	return f.Chmod(mode)
}

// WriteTar walks srcDir and writes every entry to w as a POSIX tar, rooted
// at srcDir (entry names are relative to srcDir). Symlinks are archived as
// links and never followed.
func WriteTar(w io.Writer, srcDir string) error {
	tw := tar.NewWriter(w)
	defer tw.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return errors.Wrapf(err, "failed to compute relative path for: %s", path)
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return errors.Wrapf(err, "failed to read symlink: %s", path)
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return errors.Wrapf(err, "failed to build tar header for: %s", path)
		}
		header.Name = rel
		if info.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			return errors.Wrapf(err, "failed to write tar header for: %s", path)
		}

		if info.Mode().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "failed to open file for archiving: %s", path)
			}
			defer f.Close()
			if _, err := io.Copy(tw, f); err != nil {
				return errors.Wrapf(err, "failed to copy file contents: %s", path)
			}
		}
		return nil
	})
}
