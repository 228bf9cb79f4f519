package nsdebug

import (
	"context"

	"github.com/combust-labs/nsdebug/configs"
	"github.com/combust-labs/nsdebug/pkg/session"
	"github.com/spf13/cobra"
)

var commandConfig = configs.NewSessionConfig()
var logConfig = configs.NewLogginConfig()

// version is overridable at build time via
// -ldflags "-X github.com/combust-labs/nsdebug/cmd/nsdebug.version=...".
var version = "dev"

// Command is the single nsdebug subcommand: attach an interactive debug
// shell to a running container.
var Command = &cobra.Command{
	Use:     "nsdebug <container-id>",
	Short:   "Attach an interactive debug rootfs shell to a running container",
	Args:    cobra.ExactArgs(1),
	Version: version,
	RunE:    run,
}

func init() {
	Command.Flags().AddFlagSet(commandConfig.FlagSet())
	Command.Flags().AddFlagSet(logConfig.FlagSet())
}

func run(cmd *cobra.Command, args []string) error {
	commandConfig.ContainerID = args[0]

	logger := logConfig.NewLogger("nsdebug")

	return session.Run(context.Background(), commandConfig, logger)
}
