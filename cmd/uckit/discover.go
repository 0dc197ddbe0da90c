package main

import (
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voiceops/uckit/config"
	"github.com/voiceops/uckit/discovery"
	"github.com/voiceops/uckit/inventory"
	"github.com/voiceops/uckit/report"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Collect facts, configurations and inventories of IOS devices",
	Long: `Collect facts, configurations and inventories of IOS devices.

The device list is a CSV with the header ip,username,password,enablesecret.
For each reachable device the hostname, boot date, software version, serial
number and model are written to Discovery_Report_<timestamp>.csv, and the
running configuration and "show inventory" output are saved under
DeviceConfigs/ and DeviceInventories/, stamped with the operator's initials.` + connectHelp,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringP("inventory", "i", "", "device list CSV (default from config, DeviceList.csv)")
	discoverCmd.Flags().String("initials", "", "operator initials stamped on dump files (1 to 3 letters)")
	discoverCmd.Flags().String("config-source", "", "how to fetch running configurations: cli or sftp")
	discoverCmd.Flags().String("report-dir", "", "directory for the report and log")
	discoverCmd.Flags().Bool("debug", false, "log raw device output")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	start := time.Now()
	d := &cfg.Discovery
	flags := cmd.Flags()
	if v, _ := flags.GetString("inventory"); v != "" {
		d.Inventory = v
	}
	if v, _ := flags.GetString("initials"); v != "" {
		d.Initials = v
	}
	if v, _ := flags.GetString("config-source"); v != "" {
		d.ConfigSource = v
	}
	if v, _ := flags.GetString("report-dir"); v != "" {
		d.ReportDir = v
	}
	if v, _ := flags.GetBool("debug"); v {
		d.Debug = true
	}
	if d.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := config.NewPrompter().Fill(&d.Initials, "Enter your initials"); err != nil {
		return err
	}
	opts := discovery.Options{
		Initials:     d.Initials,
		ConfigSource: d.ConfigSource,
		ConfigDir:    d.ConfigDir,
		InventoryDir: d.InventoryDir,
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	closeLog, err := teeLog(filepath.Join(d.ReportDir, report.TimestampedName("Discovery_Log", ".txt", start)))
	if err != nil {
		return err
	}
	defer closeLog()

	list, err := inventory.Load(d.Inventory, inventory.DiscoveryColumns)
	if err != nil {
		return err
	}
	_, err = batch{
		tool:     "discover",
		list:     list,
		dir:      d.ReportDir,
		prefix:   "Discovery_Report",
		header:   discovery.Header,
		format:   discovery.Row,
		fallback: discovery.NewHandler(opts, iosConnector()),
	}.run(cmd.Context())
	printRuntime(start)
	return err
}
