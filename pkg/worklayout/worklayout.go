// Package worklayout computes the fixed set of directories the session
// orchestrator materializes underneath a single work directory.
package worklayout

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Layout holds the absolute, frozen-at-construction paths of every
// directory the orchestrator manages. All five are direct children of
// WorkDir.
type Layout struct {
	WorkDir    string
	TmpExtract string
	TmpLower   string
	TmpWork    string
	Rootfs     string
	Mergedfs   string
}

// New computes a Layout rooted at workDir, resolving workDir to an
// absolute path. Paths are frozen here and never recomputed.
func New(workDir string) (Layout, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return Layout{}, errors.Wrapf(err, "failed to resolve absolute work dir: %s", workDir)
	}
	return Layout{
		WorkDir:    abs,
		TmpExtract: filepath.Join(abs, "tmp_extract"),
		TmpLower:   filepath.Join(abs, "tmp_lower"),
		TmpWork:    filepath.Join(abs, "tmp_work"),
		Rootfs:     filepath.Join(abs, "rootfs"),
		Mergedfs:   filepath.Join(abs, "mergedfs"),
	}, nil
}

// Reset deletes WorkDir if present, then recreates every managed
// directory. Deletion must happen before creation: creating subdirectories
// first and deleting the parent afterward would destroy the freshly
// materialized work.
func (l Layout) Reset() error {
	if _, err := os.Stat(l.WorkDir); err == nil {
		if err := os.RemoveAll(l.WorkDir); err != nil {
			return errors.Wrapf(err, "failed to remove stale work dir: %s", l.WorkDir)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to stat work dir: %s", l.WorkDir)
	}

	for _, dir := range []string{l.TmpLower, l.WorkDir, l.TmpExtract, l.Rootfs, l.TmpWork, l.Mergedfs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory: %s", dir)
		}
	}
	return nil
}

// ContainerMountPath returns the absolute path, under Mergedfs, at which
// the target container's merged directory is bind-mounted.
func (l Layout) ContainerMountPath(configuredPath string) string {
	trimmed := filepath.Clean("/" + configuredPath)
	return filepath.Join(l.Mergedfs, trimmed)
}
