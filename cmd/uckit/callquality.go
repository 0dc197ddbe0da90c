package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voiceops/uckit/callquality"
	"github.com/voiceops/uckit/config"
	"github.com/voiceops/uckit/report"
	"github.com/voiceops/uckit/ucdriver"
)

var callQualityCmd = &cobra.Command{
	Use:   "callquality",
	Short: "Log per-leg voice quality of active calls on a gateway",
	Long: `Log per-leg voice quality of active calls on a gateway.

Every poll runs "show call active voice" on the gateway and appends a
timestamp row followed by one row per call leg (delay, packet counters,
calling number) to CallQualityLog.csv. The schedule is a number of seconds,
a duration such as 1m or a cron expression. Polling runs until interrupted.`,
	RunE: runCallQuality,
}

func init() {
	callQualityCmd.Flags().String("host", "", "gateway address")
	callQualityCmd.Flags().StringP("username", "u", "", "login username")
	callQualityCmd.Flags().StringP("schedule", "s", "", `polling schedule, e.g. "30", "1m" or "*/5 * * * *"`)
	callQualityCmd.Flags().String("log-file", "", "CSV file to append to")
}

func runCallQuality(cmd *cobra.Command, args []string) error {
	c := &cfg.CallQuality
	flags := cmd.Flags()
	if v, _ := flags.GetString("host"); v != "" {
		c.Host = v
	}
	if v, _ := flags.GetString("username"); v != "" {
		c.Username = v
	}
	if v, _ := flags.GetString("schedule"); v != "" {
		c.Schedule = v
	}
	if v, _ := flags.GetString("log-file"); v != "" {
		c.LogFile = v
	}

	schedule, err := callquality.ParseSchedule(c.Schedule)
	if err != nil {
		return err
	}
	p := config.NewPrompter()
	if err := p.Fill(&c.Host, "Enter gateway address"); err != nil {
		return err
	}
	if err := p.Fill(&c.Username, "Enter username"); err != nil {
		return err
	}
	if err := p.FillSecret(&c.Password, "Enter password"); err != nil {
		return err
	}
	if err := p.FillSecret(&c.Secret, "Enter enable secret"); err != nil {
		return err
	}
	password, err := c.Password.Resolve()
	if err != nil {
		return err
	}
	secret, err := c.Secret.Resolve()
	if err != nil {
		return err
	}

	device, err := iosConnector().Connect(cmd.Context(), ucdriver.Target{Host: c.Host, Username: c.Username, Password: password, Secret: secret})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.Host, err)
	}
	defer device.Disconnect()
	if err := device.Enable(); err != nil {
		log.Warnf("Enable failed on %s, polling in user mode: %v", c.Host, err)
	}

	rows, err := report.OpenCSV(c.LogFile, callquality.Header())
	if err != nil {
		return err
	}
	defer rows.Close()

	log.Infof("Polling %s on schedule %s", c.Host, c.Schedule)
	poller := &callquality.Poller{Device: device, Rows: rows, Schedule: schedule}
	return poller.Run(cmd.Context())
}
