package dockerclient

import "github.com/pkg/errors"

// ErrNotRunning is returned by Inspect when the target container's
// State.Running is false.
var ErrNotRunning = errors.New("container is not running")

// ErrMissingMergedDir is returned by Inspect when the overlay2 graph
// driver reports no MergedDir.
var ErrMissingMergedDir = errors.New("container graph driver data has no MergedDir")

// ErrNoManifest is returned by ExportTo when the exported image tar
// contains an empty manifest array.
var ErrNoManifest = errors.New("image manifest is empty")

// UnsupportedDriverError is returned by Inspect when the container's
// storage driver is not overlay2.
type UnsupportedDriverError struct {
	Driver string
}

func (e *UnsupportedDriverError) Error() string {
	return "unsupported storage driver: " + e.Driver
}

// UnsupportedMediaTypeError is returned by ExportTo when a layer's media
// type does not correspond to an uncompressed image layer.
type UnsupportedMediaTypeError struct {
	MediaType string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return "unsupported layer media type: " + e.MediaType
}
