// Package dockerclient adapts the Docker Engine API to the three
// operations the session orchestrator needs: inspecting a running
// container, pulling an image, and exporting an image's layers onto disk.
package dockerclient

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	docker "github.com/docker/docker/client"

	"github.com/combust-labs/nsdebug/pkg/archive"
	"github.com/combust-labs/nsdebug/pkg/imageref"
	"github.com/docker/docker/api/types"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// ContainerInfo is an immutable snapshot of the data this tool needs about
// the target container, taken once at startup.
type ContainerInfo struct {
	PID       int
	MergedDir string
}

// Client wraps a Docker Engine API client with the logging and error
// semantics the orchestrator expects.
type Client struct {
	api    *docker.Client
	logger hclog.Logger
}

// NewClient connects to the local daemon using its default discovery
// (DOCKER_HOST and friends, or the well-known Unix socket) and negotiates
// the API version.
func NewClient(logger hclog.Logger) (*Client, error) {
	api, err := docker.NewClientWithOpts(docker.FromEnv, docker.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "failed to construct Docker Engine API client")
	}
	return &Client{api: api, logger: logger}, nil
}

// Inspect fetches the target container's state and validates it is a
// running overlay2-backed container, returning its init PID and merged
// directory.
func (c *Client) Inspect(ctx context.Context, id string) (ContainerInfo, error) {
	opLogger := c.logger.With("container-id", id)

	info, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		opLogger.Error("failed inspecting container", "reason", err)
		return ContainerInfo{}, errors.Wrapf(err, "failed to inspect container: %s", id)
	}

	if info.State == nil || !info.State.Running {
		opLogger.Error("container is not running")
		return ContainerInfo{}, ErrNotRunning
	}

	if info.GraphDriver.Name != "overlay2" {
		opLogger.Error("unsupported storage driver", "driver", info.GraphDriver.Name)
		return ContainerInfo{}, &UnsupportedDriverError{Driver: info.GraphDriver.Name}
	}

	mergedDir, ok := info.GraphDriver.Data["MergedDir"]
	if !ok || mergedDir == "" {
		opLogger.Error("graph driver data missing MergedDir")
		return ContainerInfo{}, ErrMissingMergedDir
	}

	opLogger.Debug("container inspected", "pid", info.State.Pid, "merged-dir", mergedDir)
	return ContainerInfo{PID: info.State.Pid, MergedDir: mergedDir}, nil
}

// Pull splits image into (name, tag) on the last colon, defaulting tag to
// "latest", and streams the pull. Progress events are logged as they
// arrive; a network error is fatal.
func (c *Client) Pull(ctx context.Context, image string) error {
	ref := imageref.Parse(image)
	opLogger := c.logger.With("image", ref.String())
	opLogger.Info("pulling image")

	reader, err := c.api.ImagePull(ctx, ref.String(), types.ImagePullOptions{})
	if err != nil {
		opLogger.Error("failed to start image pull", "reason", err)
		return errors.Wrapf(err, "failed to pull image: %s", ref.String())
	}
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	for {
		var event pullProgressEvent
		if err := decoder.Decode(&event); err != nil {
			if err == io.EOF {
				break
			}
			opLogger.Error("failed reading pull progress stream", "reason", err)
			return errors.Wrap(err, "failed reading pull progress stream")
		}
		logPullEvent(opLogger, event)
		if event.ErrorMessage != "" {
			return errors.New("image pull failed: " + event.ErrorMessage)
		}
	}

	opLogger.Info("image pull complete")
	return nil
}

type pullProgressEvent struct {
	Status       string `json:"status"`
	Progress     string `json:"progress"`
	ID           string `json:"id"`
	ErrorMessage string `json:"error"`
}

func logPullEvent(logger hclog.Logger, event pullProgressEvent) {
	switch {
	case event.ErrorMessage != "":
		logger.Error("pull error", "id", event.ID, "message", event.ErrorMessage)
	case event.Progress != "":
		logger.Debug("pull progress", "id", event.ID, "progress", event.Progress)
	case event.Status != "":
		logger.Debug("pull status", "id", event.ID, "status", event.Status)
	default:
		logger.Trace("pull event", "id", event.ID)
	}
}

// ExportTo exports image's filesystem onto disk: if pull is set, it first
// calls Pull. The image is exported to <tmpDir>/temp.tar, then that tar is
// read in a single pass: manifest.json is parsed as an ImageManifest
// array (only the first entry is used, a warning is logged if there are
// more), blobs under blobs/sha256/ are buffered fully in memory, and every
// layer named in the manifest's Layers (in order) is extracted into
// dstDir via pkg/archive.
func (c *Client) ExportTo(ctx context.Context, image, tmpDir, dstDir string, pull bool) error {
	ref := imageref.Parse(image)
	opLogger := c.logger.With("image", ref.String())

	if pull {
		if err := c.Pull(ctx, image); err != nil {
			return err
		}
	}

	tarPath := filepath.Join(tmpDir, "temp.tar")
	if err := c.saveImageTo(ctx, ref.String(), tarPath, opLogger); err != nil {
		return err
	}

	f, err := os.Open(tarPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open exported image tar: %s", tarPath)
	}
	defer f.Close()

	manifests, blobs, err := readExportedTar(f, tmpDir, opLogger)
	if err != nil {
		return err
	}
	if len(manifests) == 0 {
		return ErrNoManifest
	}
	if len(manifests) > 1 {
		opLogger.Warn("exported image tar contains multiple manifest entries, using the first", "count", len(manifests))
	}
	manifest := manifests[0]

	for _, layerPath := range manifest.Layers {
		key := LayerKey(layerPath)
		source, ok := manifest.LayerSources[key]
		if !ok {
			return errors.Errorf("no layer source found for key: %s (layer path %s)", key, layerPath)
		}
		if !IsUncompressedLayer(source.MediaType) {
			opLogger.Error("unsupported layer media type", "layer", layerPath, "media-type", source.MediaType)
			return &UnsupportedMediaTypeError{MediaType: source.MediaType}
		}

		data, ok := blobs[layerPath]
		if !ok {
			return errors.Errorf("layer blob not found in exported tar: %s", layerPath)
		}

		opLogger.Debug("applying layer", "layer", layerPath)
		if err := archive.Extract(bytes.NewReader(data), dstDir, opLogger); err != nil {
			return errors.Wrapf(err, "failed to apply layer: %s", layerPath)
		}
	}

	return nil
}

func (c *Client) saveImageTo(ctx context.Context, ref, dstPath string, logger hclog.Logger) error {
	reader, err := c.api.ImageSave(ctx, []string{ref})
	if err != nil {
		logger.Error("failed to start image export", "reason", err)
		return errors.Wrapf(err, "failed to export image: %s", ref)
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for exported tar: %s", dstPath)
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create exported tar file: %s", dstPath)
	}
	defer out.Close()

	logger.Debug("streaming image export to disk", "path", dstPath)
	if _, err := io.Copy(out, reader); err != nil {
		return errors.Wrapf(err, "failed to write exported tar: %s", dstPath)
	}
	return nil
}

// readExportedTar performs the single forward pass over an exported image
// tar described in §4.2: manifest.json is parsed, blob entries are
// buffered in memory keyed by their full tar path, plain directory entries
// are created under tmpDir, and any other regular file is written under
// tmpDir best-effort.
func readExportedTar(r io.Reader, tmpDir string, logger hclog.Logger) ([]ImageManifest, map[string][]byte, error) {
	blobs := make(map[string][]byte)
	var manifests []ImageManifest

	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed reading exported image tar")
		}

		switch {
		case header.Typeflag == tar.TypeDir:
			if err := os.MkdirAll(filepath.Join(tmpDir, header.Name), 0755); err != nil {
				return nil, nil, errors.Wrapf(err, "failed to create directory: %s", header.Name)
			}

		case header.Name == "manifest.json":
			data, err := ioutil.ReadAll(tr)
			if err != nil {
				return nil, nil, errors.Wrap(err, "failed to read manifest.json")
			}
			if err := json.Unmarshal(data, &manifests); err != nil {
				return nil, nil, errors.Wrap(err, "failed to parse manifest.json")
			}

		case isBlobPath(header.Name):
			data, err := ioutil.ReadAll(tr)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "failed to read blob: %s", header.Name)
			}
			blobs[header.Name] = data

		default:
			target := filepath.Join(tmpDir, header.Name)
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				logger.Warn("failed to create parent directory for exported entry, skipping", "path", header.Name, "reason", err.Error())
				continue
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(header.Mode)&os.ModePerm)
			if err != nil {
				logger.Warn("failed to create exported entry, skipping", "path", header.Name, "reason", err.Error())
				continue
			}
			if _, err := io.Copy(out, tr); err != nil {
				logger.Warn("failed to write exported entry, skipping", "path", header.Name, "reason", err.Error())
			}
			out.Close()
		}
	}

	return manifests, blobs, nil
}

func isBlobPath(name string) bool {
	const prefix = "blobs/sha256/"
	return len(name) > len(prefix) && name[:len(prefix)] == prefix
}
