package configs

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// SessionConfig carries every flag the nsdebug command accepts.
type SessionConfig struct {
	flagBase

	ContainerID string

	Pull               bool
	WorkDir            string
	Image              string
	Cache              bool
	CacheDir           string
	ContainerMountPath string
	UnmountOnExit      bool
}

// NewSessionConfig returns a new, unconfigured SessionConfig.
func NewSessionConfig() *SessionConfig {
	return &SessionConfig{}
}

// FlagSet returns the pflag.FlagSet backing this configuration, lazily
// registering flags on first call.
func (c *SessionConfig) FlagSet() *pflag.FlagSet {
	if c.initFlagSet() {
		c.flagSet.BoolVar(&c.Pull, "pull", false, "Force image re-pull before export")
		c.flagSet.StringVarP(&c.WorkDir, "workdir", "w", "/var/lib/rustnsoverlay/work", "Root of the work layout")
		c.flagSet.StringVar(&c.Image, "image", "debian:12", "Image reference for the debug rootfs")
		c.flagSet.BoolVar(&c.Cache, "cache", true, "Enable on-disk cache of the materialized image")
		c.flagSet.StringVar(&c.CacheDir, "cache-dir", "/var/cache/rustnsoverlay", "Cache root directory")
		c.flagSet.StringVar(&c.ContainerMountPath, "container-mount-path", "/mnt/container", "Where inside the debug rootfs the target container's root is bind-mounted")
		c.flagSet.BoolVar(&c.UnmountOnExit, "unmount-on-exit", true, "Tear down the overlay on session end")
	}
	return c.flagSet
}

// Validate checks that the configuration is usable.
func (c *SessionConfig) Validate() error {
	if c.ContainerID == "" {
		return errors.New("container id is required")
	}
	if c.WorkDir == "" {
		return errors.New("workdir must not be empty")
	}
	if c.Image == "" {
		return errors.New("image must not be empty")
	}
	if c.CacheDir == "" {
		return errors.New("cache-dir must not be empty")
	}
	return nil
}
