package simulate

import (
	"context"
	"fmt"
	"io"
	"sort"

	cmdUtil "github.com/ValentinKolb/dOrder/cmd/util"
	"github.com/ValentinKolb/dOrder/lib/common"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

// SimulateCmd runs a scenario against an in-process node
var SimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run an ordering scenario against an in-process node",
	Long: `Run an ordering scenario against an in-process single-member node and print the order in which the commands completed.

Without --scenario, backup writes of several segments and state transfer chunks arrive permuted, and two transactions contend for a shared key.`,
	RunE: runSimulate,
}

func init() {
	SimulateCmd.Flags().String("scenario", "", cmdUtil.WrapString("Path to a YAML scenario file"))
	SimulateCmd.Flags().Bool("yaml", false, cmdUtil.WrapString("Print the report as YAML"))
	SimulateCmd.Flags().String("log-level", "error", cmdUtil.WrapString("LogLevel of the in-process node (debug, info, warn, error)"))
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	config := common.DefaultNodeConfig()
	config.LogLevel, _ = cmd.Flags().GetString("log-level")
	if err := common.InitLoggers(config); err != nil {
		return err
	}

	scenario := DefaultScenario()
	if path, _ := cmd.Flags().GetString("scenario"); path != "" {
		var err error
		if scenario, err = LoadScenario(path); err != nil {
			return err
		}
	}

	report, err := Run(context.Background(), scenario)
	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		out, merr := yaml.Marshal(report)
		if merr != nil {
			return merr
		}
		_, _ = cmd.OutOrStdout().Write(out)
		return err
	}
	printReport(cmd.OutOrStdout(), scenario, report)
	return err
}

func printReport(w io.Writer, s Scenario, r Report) {
	fmt.Fprintf(w, "dOrder simulation (segments=%d, workers=%d, hold=%s)\n\n", s.Segments, s.Workers, s.Hold)
	fmt.Fprintf(w, "%4s  %-20s %-36s %s\n", "STEP", "KIND", "DETAIL", "RESULT")
	for _, e := range r.Events {
		fmt.Fprintf(w, "%4d  %-20s %-36s %s\n", e.Step, e.Kind, e.Detail, e.Result)
	}

	segments := make([]int, 0, len(r.Delivered))
	for seg := range r.Delivered {
		segments = append(segments, seg)
	}
	sort.Ints(segments)

	fmt.Fprintln(w)
	for _, seg := range segments {
		fmt.Fprintf(w, "segment %d delivered up to %d\n", seg, r.Delivered[seg])
	}
	fmt.Fprintf(w, "state transfer position %d\n", r.Position)
	fmt.Fprintf(w, "submitted=%d admitted=%d executed=%d failed=%d canceled=%d\n",
		r.Metrics.Submitted, r.Metrics.Admitted, r.Metrics.Executed, r.Metrics.Failed, r.Metrics.Canceled)
}
