package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voiceops/uckit/config"
)

var (
	cfgFile  string
	logLevel string
	logFile  string

	cfg   *config.Config
	runID string
)

var rootCmd = &cobra.Command{
	Use:   "uckit",
	Short: "Cisco UC voice network automation",
	Long: `uckit automates routine work on Cisco voice networks: onboarding
gateways and UC appliances (CUCM, CUC, IM&P, CER) to monitoring, discovering
IOS device facts and configurations, logging call quality, proxying the CUCM
AXL API and generating MTPutty session lists.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, path, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			cfg.Log.File = logFile
		}
		if err := setupLogging(cfg.Log); err != nil {
			return err
		}
		if path != "" {
			log.Debugf("Using config %s", path)
		}
		runID = uuid.NewString()
		log.Debugf("Run %s", runID)
		return cfg.Validate()
	},
}

var logOutput io.Writer = os.Stderr

func setupLogging(c config.Log) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logOutput = os.Stderr
	if c.File != "" {
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logOutput = io.MultiWriter(os.Stderr, f)
	}
	log.SetOutput(logOutput)
	return nil
}

// teeLog also writes the log to path for the rest of the run.
func teeLog(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(logOutput, f))
	log.Infof("Logging to %s", path)
	return func() {
		log.SetOutput(logOutput)
		f.Close()
	}, nil
}

func printRuntime(start time.Time) {
	elapsed := time.Since(start).Round(time.Millisecond)
	fmt.Printf("Runtime: %s\n", elapsed)
	log.Infof("Runtime: %s", elapsed)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the first of /etc/uckit/uckit.yaml, ~/.config/uckit/uckit.yaml, ./uckit.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append the log to this file")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(callQualityCmd)
	rootCmd.AddCommand(axlProxyCmd)
	rootCmd.AddCommand(mtputtyCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
