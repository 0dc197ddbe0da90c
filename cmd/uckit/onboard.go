package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/voiceops/uckit/config"
	"github.com/voiceops/uckit/inventory"
	"github.com/voiceops/uckit/onboard"
	"github.com/voiceops/uckit/orchestrate"
	"github.com/voiceops/uckit/report"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Apply the monitoring baseline to every device in the device list",
	Long: `Apply the monitoring baseline to every device in the device list.

The device list is a CSV with the header ip,username,password,enablesecret,devicetype
where devicetype is one of NETWORK, CUCM, CUC, IMP or CER. Each reachable
device gets its syslog destination, SNMP community and, depending on its
family, AXL or PAWS service accounts. Every setting is verified and one row
per device is written to Onboarding_Report_<timestamp>.csv.

Settings missing from the config file are prompted for once at startup.` + connectHelp,
	RunE: runOnboard,
}

func init() {
	onboardCmd.Flags().StringP("inventory", "i", "", "device list CSV (default from config, DeviceList.csv)")
	onboardCmd.Flags().String("report-dir", "", "directory for the report and log")
}

func runOnboard(cmd *cobra.Command, args []string) error {
	start := time.Now()
	o := &cfg.Onboarding
	if v, _ := cmd.Flags().GetString("inventory"); v != "" {
		o.Inventory = v
	}
	if v, _ := cmd.Flags().GetString("report-dir"); v != "" {
		o.ReportDir = v
	}

	p := config.NewPrompter()
	for _, fill := range []func() error{
		func() error { return p.Fill(&o.LoggingServer, "Enter logging server") },
		func() error { return p.FillSecret(&o.SNMPCommunity, "Enter SNMP community string") },
		func() error { return p.Fill(&o.PAWSAccount, "Enter PAWS API username") },
		func() error { return p.FillSecret(&o.PAWSPassword, "Enter PAWS API password") },
		func() error { return p.Fill(&o.AXLUsername, "Enter CUCM AXL username") },
		func() error { return p.Fill(&o.ACGName, "Enter CUCM access control group name") },
	} {
		if err := fill(); err != nil {
			return err
		}
	}
	if err := cfg.ValidateOnboarding(); err != nil {
		return err
	}
	params, err := onboardParams(*o)
	if err != nil {
		return err
	}

	closeLog, err := teeLog(filepath.Join(o.ReportDir, report.TimestampedName("Onboarding_Log", ".txt", start)))
	if err != nil {
		return err
	}
	defer closeLog()

	list, err := inventory.Load(o.Inventory, inventory.OnboardingColumns)
	if err != nil {
		return err
	}

	h := onboard.NewHandler(params, &onboard.Runner{Timeout: cfg.Connect.CommandTimeout}, iosConnector(), vosConnector())
	handlers := map[string]orchestrate.Handler{}
	for _, family := range onboard.Families {
		handlers[family] = h
	}
	_, err = batch{
		tool:     "onboard",
		list:     list,
		dir:      o.ReportDir,
		prefix:   "Onboarding_Report",
		header:   append(append([]string{}, orchestrate.SummaryHeader...), "checks"),
		handlers: handlers,
	}.run(cmd.Context())
	printRuntime(start)
	return err
}

func onboardParams(o config.Onboarding) (onboard.Params, error) {
	community, err := o.SNMPCommunity.Resolve()
	if err != nil {
		return onboard.Params{}, fmt.Errorf("snmp community: %w", err)
	}
	password, err := o.PAWSPassword.Resolve()
	if err != nil {
		return onboard.Params{}, fmt.Errorf("paws password: %w", err)
	}
	return onboard.Params{
		LoggingServer:   o.LoggingServer,
		SNMPCommunity:   community,
		AXLUsername:     o.AXLUsername,
		ACGName:         o.ACGName,
		ACLName:         o.ACLName,
		PAWSAccount:     o.PAWSAccount,
		PAWSPassword:    password,
		PAWSDescription: o.PAWSDescription,
	}, nil
}
