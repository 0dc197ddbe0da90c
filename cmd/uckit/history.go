package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voiceops/uckit/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded per-device results",
	Long: `Show per-device results recorded in the run history database
(history.path in the config file).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.History.Path == "" {
			return errors.New("history.path is not configured")
		}
		host, _ := cmd.Flags().GetString("host")
		run, _ := cmd.Flags().GetString("run")
		limit, _ := cmd.Flags().GetInt("limit")
		if (host == "") == (run == "") {
			return errors.New("give exactly one of --host or --run")
		}

		h, err := report.OpenHistory(cfg.History.Path)
		if err != nil {
			return err
		}
		defer h.Close()

		var entries []report.Entry
		if host != "" {
			entries, err = h.ForHost(cmd.Context(), host, limit)
		} else {
			entries, err = h.ForRun(cmd.Context(), run)
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "AT\tTOOL\tHOST\tTYPE\tSTATUS\tDETAIL")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.At.Local().Format("2006-01-02 15:04:05"), e.Tool, e.Host, e.DeviceType, e.Status, e.Detail)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().String("host", "", "show the latest results for this device")
	historyCmd.Flags().String("run", "", "show every result of this run id")
	historyCmd.Flags().Int("limit", 20, "maximum entries for --host")
}
