// Package mountcompose validates overlay support, clears stale mounts left
// by a prior crashed invocation, and builds the three-layer overlay plus
// the injected container bind mount.
package mountcompose

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/combust-labs/nsdebug/pkg/worklayout"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrOverlayUnsupported is returned by AssertOverlaySupported when the
// running kernel has no overlay filesystem driver registered.
var ErrOverlayUnsupported = errors.New("overlay filesystem is not supported by this kernel")

const filesystemsPath = "/proc/filesystems"

// AssertOverlaySupported reads the kernel's registered-filesystems list
// and fails with ErrOverlayUnsupported if "overlay" is absent.
func AssertOverlaySupported() error {
	f, err := os.Open(filesystemsPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", filesystemsPath)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 && fields[len(fields)-1] == "overlay" {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "failed to scan %s", filesystemsPath)
	}
	return ErrOverlayUnsupported
}

const mountsPath = "/proc/self/mounts"

// ClearStale enumerates current mounts and lazily detaches every mount
// point that begins with the absolute form of workDir. This reclaims mount
// state left behind by a prior crashed invocation; it is idempotent —
// running it twice in succession with no intervening mount leaves the
// mount table unchanged after the second call.
func ClearStale(workDir string, logger hclog.Logger) error {
	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve absolute work dir: %s", workDir)
	}

	f, err := os.Open(mountsPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", mountsPath)
	}
	defer f.Close()

	var stale []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		mountPoint := fields[1]
		if strings.HasPrefix(mountPoint, absWorkDir) {
			stale = append(stale, mountPoint)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "failed to scan %s", mountsPath)
	}

	for _, mountPoint := range stale {
		logger.Warn("detaching stale mount from prior invocation", "path", mountPoint)
		if err := unix.Unmount(mountPoint, unix.MNT_DETACH); err != nil {
			logger.Warn("failed to detach stale mount, continuing", "path", mountPoint, "error", err.Error())
		}
	}
	return nil
}

// Compose mounts the overlay at layout.Mergedfs (lowerdir=layout.TmpLower,
// upperdir=layout.Rootfs, workdir=layout.TmpWork), then creates and
// bind-mounts containerMergedDir onto
// layout.ContainerMountPath(containerMountPath). Both mounts are created
// in the host mount namespace, before any unshare, so the orchestrator
// (not the eventual shell) owns their lifetime.
func Compose(layout worklayout.Layout, containerMergedDir, containerMountPath string) error {
	opts := "lowerdir=" + layout.TmpLower + ",upperdir=" + layout.Rootfs + ",workdir=" + layout.TmpWork
	if err := unix.Mount("overlay", layout.Mergedfs, "overlay", 0, opts); err != nil {
		return &SyscallError{Name: "mount", Path: layout.Mergedfs, Errno: err}
	}

	target := layout.ContainerMountPath(containerMountPath)
	if err := os.MkdirAll(target, 0755); err != nil {
		return errors.Wrapf(err, "failed to create container mount point: %s", target)
	}
	if err := unix.Mount(containerMergedDir, target, "", unix.MS_BIND, ""); err != nil {
		return &SyscallError{Name: "mount", Path: target, Errno: err}
	}
	return nil
}

// UnmountContainerBind detaches the injected container bind mount.
// Unconditional on exit, regardless of the unmount-on-exit flag.
func UnmountContainerBind(layout worklayout.Layout, containerMountPath string) error {
	target := layout.ContainerMountPath(containerMountPath)
	if err := unix.Unmount(target, unix.MNT_DETACH); err != nil {
		return &SyscallError{Name: "unmount", Path: target, Errno: err}
	}
	return nil
}

// UnmountOverlay detaches the overlay mounted at layout.Mergedfs.
func UnmountOverlay(layout worklayout.Layout) error {
	if err := unix.Unmount(layout.Mergedfs, unix.MNT_DETACH); err != nil {
		return &SyscallError{Name: "unmount", Path: layout.Mergedfs, Errno: err}
	}
	return nil
}
