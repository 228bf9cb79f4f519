// Package nsattach attaches the calling task to a target process's
// namespaces via pidfd_open + setns, following the ordering prescribed for
// the session orchestrator's control flow.
package nsattach

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Flags is a bitmask over the namespace classes the orchestrator is
// allowed to attach to. Mount is deliberately excluded: the debug shell
// keeps its own, unshared mount namespace.
const Flags = unix.CLONE_NEWCGROUP | unix.CLONE_NEWIPC | unix.CLONE_NEWNET | unix.CLONE_NEWPID | unix.CLONE_NEWUTS

// SyscallError reports a failing syscall name alongside its errno, per the
// SyscallFailure{name, errno} error kind.
type SyscallError struct {
	Name  string
	Errno error
}

func (e *SyscallError) Error() string {
	return e.Name + ": " + e.Errno.Error()
}

func (e *SyscallError) Unwrap() error { return e.Errno }

// EnterNamespace opens a pidfd for pid, joins the namespace classes named
// in flags, and closes the pidfd. setns changes only the calling thread's
// namespaces, so a multi-threaded caller must keep the calling goroutine
// locked to its OS thread and fork from that same thread. Joining a PID
// namespace only affects the calling task's future children, never the
// calling task's own view — callers that need the new shell to observe the
// target PID namespace must fork immediately after this call returns.
func EnterNamespace(pid int, flags int) error {
	fd, err := unix.PidfdOpen(pid, 0 /* flags */)
	if err != nil {
		return &SyscallError{Name: "pidfd_open", Errno: err}
	}
	defer unix.Close(fd)

	if err := unix.Setns(fd, flags); err != nil {
		return &SyscallError{Name: "setns", Errno: err}
	}
	return nil
}

// ParseNamespaceContent extracts the integer namespace identifier from a
// /proc/<pid>/ns/* symlink target such as "mnt:[4026532001]", returning the
// value between the first '[' and the first ']'. An absent bracket or a
// non-numeric interior is an error.
func ParseNamespaceContent(content string) (int64, error) {
	open := strings.IndexByte(content, '[')
	if open < 0 {
		return 0, errors.Errorf("no '[' found in namespace content: %q", content)
	}
	close := strings.IndexByte(content[open:], ']')
	if close < 0 {
		return 0, errors.Errorf("no ']' found in namespace content: %q", content)
	}
	close += open

	inner := content[open+1 : close]
	id, err := strconv.ParseInt(inner, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "non-numeric namespace identifier: %q", inner)
	}
	return id, nil
}
