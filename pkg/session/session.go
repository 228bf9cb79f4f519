// Package session implements the end-to-end orchestrator (C5): it drives
// container inspection, image materialization, mount composition and
// namespace attach, then hands off to the fork/exec chain in reexec.go
// that lands the operator in an interactive shell sharing the target
// container's non-mount namespaces.
package session

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"

	"github.com/combust-labs/nsdebug/configs"
	"github.com/combust-labs/nsdebug/pkg/cache"
	"github.com/combust-labs/nsdebug/pkg/dockerclient"
	"github.com/combust-labs/nsdebug/pkg/flock"
	"github.com/combust-labs/nsdebug/pkg/mountcompose"
	"github.com/combust-labs/nsdebug/pkg/nsattach"
	"github.com/combust-labs/nsdebug/pkg/utils"
	"github.com/combust-labs/nsdebug/pkg/worklayout"
	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Run executes the full lifecycle described in §4.5 against cfg, logging
// through logger. It returns a non-nil error on any fatal condition; a
// clean or non-zero interactive shell exit is not itself an error.
func Run(ctx context.Context, cfg *configs.SessionConfig, logger hclog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return &ConfigInvalidError{cause: err}
	}

	sessionID, err := uuid.NewV4()
	if err != nil {
		return errors.Wrap(err, "failed to generate session id")
	}
	// The trailing random suffix disambiguates the log tag when two
	// sessions' uuids are hard to tell apart by eye in interleaved log
	// output; it carries no locking semantics of its own.
	lockToken := sessionID.String() + "." + utils.RandStringBytes(6)
	logger = logger.With("session-id", lockToken)

	if err := mountcompose.AssertOverlaySupported(); err != nil {
		return err
	}

	dockerCli, err := dockerclient.NewClient(logger.Named("docker"))
	if err != nil {
		return err
	}

	info, err := dockerCli.Inspect(ctx, cfg.ContainerID)
	if err != nil {
		return err
	}

	layout, err := worklayout.New(cfg.WorkDir)
	if err != nil {
		return err
	}

	// An advisory lock on a file alongside (not under) the work directory
	// guards the namespace-sensitive phase against a second invocation
	// racing the same work directory; the spec explicitly does not require
	// locking the cache file itself, only the mutable mount/work state.
	lockPath := layout.WorkDir + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return errors.Wrapf(err, "failed to create lock directory: %s", filepath.Dir(lockPath))
	}
	workLock := flock.New(lockPath)
	if err := workLock.Acquire(); err != nil {
		return errors.Wrap(err, "failed to acquire work directory lock")
	}
	defer workLock.Release()

	if err := mountcompose.ClearStale(layout.WorkDir, logger); err != nil {
		return err
	}

	if err := layout.Reset(); err != nil {
		return err
	}

	imgCache := cache.New(cfg.CacheDir, logger.Named("cache"))

	usedCache := false
	if cfg.Cache && imgCache.Has(cfg.Image) {
		if err := imgCache.Extract(cfg.Image, layout.Rootfs); err != nil {
			return err
		}
		usedCache = true
	}
	if !usedCache {
		if err := dockerCli.ExportTo(ctx, cfg.Image, layout.TmpExtract, layout.Rootfs, cfg.Pull); err != nil {
			return err
		}
	}
	// All further work is synchronous kernel calls; no Docker HTTP I/O
	// occurs past this point, matching the async-runtime-shutdown
	// requirement this orchestrator has no runtime of its own to tear down.

	if err := mountcompose.Compose(layout, info.MergedDir, cfg.ContainerMountPath); err != nil {
		return err
	}

	if err := writeInitScript(layout.Mergedfs); err != nil {
		return err
	}

	// setns affects only the calling OS thread, and the fork performed by
	// runShellChain's reexec.Command must happen on that same thread for
	// the child to inherit the joined namespaces; the Go scheduler is
	// otherwise free to move this goroutine between threads between the
	// two calls. The lock is intentionally never released: the process
	// exits (directly, or via the shell chain below) shortly after.
	runtime.LockOSThread()

	if err := nsattach.EnterNamespace(info.PID, nsattach.Flags); err != nil {
		return err
	}

	// init.sh reports the bind-mount location from this variable; the
	// stage processes and the shell inherit the environment.
	if err := os.Setenv("NSDEBUG_CONTAINER_MOUNT_PATH", cfg.ContainerMountPath); err != nil {
		return errors.Wrap(err, "failed to set container mount path environment")
	}

	if err := runShellChain(layout.Mergedfs); err != nil {
		return err
	}

	return cleanup(layout, imgCache, cfg, logger)
}

func writeInitScript(mergedfsDir string) error {
	path := filepath.Join(mergedfsDir, "init.sh")
	if err := ioutil.WriteFile(path, initScript, 0755); err != nil {
		return errors.Wrapf(err, "failed to write init script: %s", path)
	}
	return nil
}

// cleanup implements §4.5 step 10: write the cache (if enabled), unmount
// the container bind unconditionally, and unmount the overlay only if
// configured to. The bind/overlay unmount asymmetry is preserved as
// specified even though it is surprising: unmount-on-exit governs only the
// overlay, never the injected bind.
func cleanup(layout worklayout.Layout, imgCache *cache.Cache, cfg *configs.SessionConfig, logger hclog.Logger) error {
	var firstErr error
	recordErr := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	// Defers.Add prepends, so CallAll runs its functions in the reverse
	// of Add order. The three steps must run cache-write, then
	// bind-unmount, then overlay-unmount, so they are added here in the
	// opposite order.
	teardown := utils.NewDefers()

	if cfg.UnmountOnExit {
		teardown.Add(func() {
			if err := mountcompose.UnmountOverlay(layout); err != nil {
				recordErr(err)
				logger.Error("failed to unmount overlay", "reason", err)
			}
		})
	} else {
		logger.Warn("leaving overlay mounted at operator's request", "path", layout.Mergedfs)
	}

	teardown.Add(func() {
		if err := mountcompose.UnmountContainerBind(layout, cfg.ContainerMountPath); err != nil {
			recordErr(err)
			logger.Error("failed to unmount container bind", "reason", err)
		}
	})

	if cfg.Cache {
		teardown.Add(func() {
			if err := imgCache.Write(cfg.Image, layout.Rootfs); err != nil {
				recordErr(err)
				logger.Error("failed to write image cache", "reason", err)
			}
		})
	}

	teardown.CallAll()

	return firstErr
}
