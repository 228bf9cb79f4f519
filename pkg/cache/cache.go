// Package cache implements the content-addressed-by-name image cache: an
// uncompressed tar of a fully materialized image rootfs, keyed by image
// reference.
package cache

import (
	"os"
	"path/filepath"

	"github.com/combust-labs/nsdebug/pkg/archive"
	"github.com/combust-labs/nsdebug/pkg/imageref"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Cache reads and writes image-rootfs tars under a single cache directory.
type Cache struct {
	dir    string
	logger hclog.Logger
}

// New returns a Cache rooted at dir. dir is created lazily on first Write.
func New(dir string, logger hclog.Logger) *Cache {
	return &Cache{dir: dir, logger: logger}
}

// Path returns the on-disk path the given image reference would be cached
// at, regardless of whether it currently exists.
func (c *Cache) Path(image string) string {
	return filepath.Join(c.dir, imageref.CacheFilename(image))
}

// Has reports whether a cache entry exists for image.
func (c *Cache) Has(image string) bool {
	_, err := os.Stat(c.Path(image))
	return err == nil
}

// Extract reads the cache entry for image and extracts it into dstDir via
// pkg/archive. Callers must check Has first; Extract fails if no entry
// exists.
func (c *Cache) Extract(image, dstDir string) error {
	path := c.Path(image)
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open cache entry: %s", path)
	}
	defer f.Close()

	c.logger.Info("extracting cached image rootfs", "image", image, "path", path)
	return archive.Extract(f, dstDir, c.logger)
}

// Write tars srcDir into the cache entry for image, overwriting any
// previous entry. Symlinks are preserved, never followed.
func (c *Cache) Write(image, srcDir string) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create cache dir: %s", c.dir)
	}

	path := c.Path(image)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create cache entry: %s", path)
	}
	defer f.Close()

	c.logger.Info("writing image rootfs to cache", "image", image, "path", path)
	return archive.WriteTar(f, srcDir)
}
