package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dOrder/cmd/util"
	"github.com/ValentinKolb/dOrder/lib/common"
	"github.com/ValentinKolb/dOrder/lib/node"
	"github.com/spf13/cobra"
)

var (
	serveCmdConfig common.NodeConfig
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a dOrder node",
		Long:    `Start a dOrder node with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DORDER_<flag> (e.g. DORDER_LOCK_TIMEOUT=15s)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)
	cmdUtil.SetupNodeFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}
	config, err := cmdUtil.ReadNodeConfig()
	if err != nil {
		return err
	}
	serveCmdConfig = config
	return common.InitLoggers(serveCmdConfig)
}

// run starts the node and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	n, err := node.New(serveCmdConfig)
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return n.Run(ctx)
}
