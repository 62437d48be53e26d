package config

import (
	"fmt"

	cmdUtil "github.com/ValentinKolb/dOrder/cmd/util"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

// ConfigCmd prints the effective node configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective node configuration",
	Long:  `Print the node configuration that 'dorder serve' would start with, after applying flags, DORDER_* environment variables and .env files. The output is YAML; --pretty prints the sectioned human readable form instead.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cmdUtil.BindCommandFlags(cmd); err != nil {
			return err
		}
		config, err := cmdUtil.ReadNodeConfig()
		if err != nil {
			return err
		}

		if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
			fmt.Fprint(cmd.OutOrStdout(), config.String())
			return nil
		}
		out, err := yaml.Marshal(config)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)
	cmdUtil.SetupNodeFlags(ConfigCmd)
	ConfigCmd.Flags().Bool("pretty", false, cmdUtil.WrapString("Print the sectioned human readable form instead of YAML"))
}
