package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voiceops/uckit/mtputty"
)

var mtputtyCmd = &cobra.Command{
	Use:   "mtputty",
	Short: "Generate an MTPutty import file from a device list",
	Long: `Generate an MTPutty import file from a device list.

The input CSV has a header row followed by name,ip,username,password rows.
Passwords never appear on the generated PuTTY command lines.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := &cfg.MTPutty
		flags := cmd.Flags()
		if v, _ := flags.GetString("input"); v != "" {
			m.Input = v
		}
		if v, _ := flags.GetString("output"); v != "" {
			m.Output = v
		}
		if v, _ := flags.GetString("display-name"); v != "" {
			m.DisplayName = v
		}
		n, err := mtputty.Generate(m.Input, m.Output, m.DisplayName)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d servers to %s\n", n, m.Output)
		return nil
	},
}

func init() {
	mtputtyCmd.Flags().StringP("input", "i", "", "device list CSV (default DeviceList.csv)")
	mtputtyCmd.Flags().StringP("output", "o", "", "import file (default import_this.xml)")
	mtputtyCmd.Flags().String("display-name", "", "folder name shown in MTPutty")
}
