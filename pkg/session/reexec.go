// This file implements the two-fork control flow of §4.5 as a chain of
// self-reexec stages. Go cannot safely continue running arbitrary Go code
// in a process immediately after a raw fork(): the runtime's goroutine and
// thread bookkeeping assumes a fully-formed, multi-threaded process. Each
// "fork" in the original design is instead realized as a fresh OS process,
// produced by a safe fork+execve of the running binary against itself
// (/proc/self/exe), dispatched by argv[0] via docker/docker/pkg/reexec —
// the same mechanism the Docker daemon uses for its own helper processes.
package session

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/combust-labs/nsdebug/pkg/nsattach"
	"github.com/docker/docker/pkg/reexec"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	mountnsStageName = "nsdebug-mountns-stage"
	execStageName    = "nsdebug-exec-stage"
)

func init() {
	reexec.Register(mountnsStageName, mountnsStageMain)
	reexec.Register(execStageName, execStageMain)
}

// runShellChain is fork #1, performed by the namespace-attached
// orchestrator process: it launches the mount-namespace stage as a child
// that inherits the cgroup/ipc/net/pid/uts namespaces already joined via
// nsattach.EnterNamespace, and waits for it. A non-zero exit from the
// interactive shell at the end of the chain is not itself a fatal
// orchestration error — it is swallowed so cache write and
// unmount still run, matching §4.5 step 10's "parent waits on child; on
// return..." regardless of the child's exit status.
func runShellChain(mergedfsDir string) error {
	cmd := reexec.Command(mountnsStageName, mergedfsDir)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to start mount-namespace stage")
	}
	err := cmd.Wait()
	if err == nil {
		return nil
	}
	if _, ok := err.(*exec.ExitError); ok {
		return nil
	}
	return errors.Wrap(err, "mount-namespace stage failed to run")
}

// mountnsStageMain is fork #1's child. It unshares the mount namespace —
// detaching all subsequent mount changes from the host — then launches the
// exec stage (fork #2) and waits for it.
func mountnsStageMain() {
	mergedfsDir := os.Args[1]

	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		fatalf("%s", (&nsattach.SyscallError{Name: "unshare", Errno: err}).Error())
	}

	cmd := reexec.Command(execStageName, mergedfsDir)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		fatalf("failed to start exec stage: %v", err)
	}
	err := cmd.Wait()
	if err == nil {
		return
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		os.Exit(exitErr.ExitCode())
	}
	fatalf("exec stage failed to run: %v", err)
}

// execStageMain is fork #2's child: it changes directory into the merged
// root and execs bash with the embedded init file, replacing its own
// process image. A return from syscall.Exec is always an error.
func execStageMain() {
	mergedfsDir := os.Args[1]

	if err := os.Chdir(mergedfsDir); err != nil {
		fatalf("failed to chdir to %s: %v", mergedfsDir, err)
	}

	argv := []string{"bash", "--init-file", "init.sh"}
	if err := syscall.Exec("/usr/bin/bash", argv, os.Environ()); err != nil {
		fatalf("%s", (&nsattach.SyscallError{Name: "execve", Errno: err}).Error())
	}
}

func fatalf(format string, args ...interface{}) {
	_, _ = os.Stderr.WriteString(errors.Errorf(format, args...).Error() + "\n")
	os.Exit(1)
}
