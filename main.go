package main

import (
	"fmt"
	"os"

	nsdebugcmd "github.com/combust-labs/nsdebug/cmd/nsdebug"
	"github.com/docker/docker/pkg/reexec"
)

func main() {
	// Self-reexec stages (see pkg/session/reexec.go) are dispatched here,
	// before cobra ever sees argv. When the binary was invoked as one of
	// its registered stage names, reexec.Init runs that stage's function
	// and returns true, and main returns without running the command.
	if reexec.Init() {
		return
	}

	if err := nsdebugcmd.Command.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
