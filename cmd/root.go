package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dOrder/cmd/config"
	"github.com/ValentinKolb/dOrder/cmd/serve"
	"github.com/ValentinKolb/dOrder/cmd/simulate"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dorder",
		Short: "admission and ordering of replicated cache commands",
		Long: fmt.Sprintf(`dOrder (v%s)

The admission and ordering layer of a distributed in-memory cache. A node
decides for every received write command when it may run against local
state, enforcing topology validity, distributed locks, pending transactions
and per-segment delivery order without blocking the receiving goroutines.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dOrder",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dOrder v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(simulate.SimulateCmd)
	RootCmd.AddCommand(config.ConfigCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
