// Package discovery collects the facts, running configuration and hardware
// inventory of IOS devices.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/voiceops/uckit/inventory"
	"github.com/voiceops/uckit/orchestrate"
	"github.com/voiceops/uckit/report"
	"github.com/voiceops/uckit/scrape"
	"github.com/voiceops/uckit/ucdriver"
)

const (
	ConfigSourceCLI  = "cli"
	ConfigSourceSFTP = "sftp"

	DefaultConfigDir    = "DeviceConfigs"
	DefaultInventoryDir = "DeviceInventories"

	// BootDateLayout is MM-DD-YYYY.
	BootDateLayout = "01-02-2006"

	runningConfigFile = "system:running-config"
)

// Header of the discovery report.
var Header = []string{"hostname", "ip", "boot_date", "version", "serial", "model", "status", "detail"}

var initialsRegex = regexp.MustCompile(`^[A-Za-z]{1,3}$`)

// ValidateInitials checks the operator initials stamped on dump files.
func ValidateInitials(s string) error {
	if !initialsRegex.MatchString(s) {
		return fmt.Errorf("initials must be 1 to 3 letters, got %q", s)
	}
	return nil
}

type Options struct {
	Initials     string
	ConfigSource string
	ConfigDir    string
	InventoryDir string
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o *Options) Validate() error {
	if err := ValidateInitials(o.Initials); err != nil {
		return err
	}
	switch o.ConfigSource {
	case "":
		o.ConfigSource = ConfigSourceCLI
	case ConfigSourceCLI, ConfigSourceSFTP:
	default:
		return fmt.Errorf("unknown config source %q, want %s or %s", o.ConfigSource, ConfigSourceCLI, ConfigSourceSFTP)
	}
	if o.ConfigDir == "" {
		o.ConfigDir = DefaultConfigDir
	}
	if o.InventoryDir == "" {
		o.InventoryDir = DefaultInventoryDir
	}
	return nil
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Device is the part of an IOS session discovery uses.
type Device interface {
	SendCommand(cmd string) (string, error)
	SendCommandTimeout(cmd string, timeout time.Duration) (string, error)
	CheckEnableMode() bool
	Enable() error
	RetrieveFile(remoteFile, localFile string) error
	Disconnect()
}

type Handler struct {
	Options
	Open func(ctx context.Context, t ucdriver.Target) (Device, error)
}

func NewHandler(opts Options, ios *ucdriver.Connector[*ucdriver.IOSDeviceConnection]) *Handler {
	return &Handler{
		Options: opts,
		Open: func(ctx context.Context, t ucdriver.Target) (Device, error) {
			s, err := ios.Connect(ctx, t)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}

func (h *Handler) Handle(ctx context.Context, e inventory.Entry) orchestrate.Result {
	logger := log.WithFields(log.Fields{"host": e.Address, "device_type": e.DeviceType})
	logger.Infof("Connecting to device: %s", e.Address)

	device, err := h.Open(ctx, ucdriver.Target{Host: e.Address, Username: e.Username, Password: e.Password, Secret: e.Secret})
	if err != nil {
		return failure(err)
	}
	defer device.Disconnect()

	if !device.CheckEnableMode() {
		if err := device.Enable(); err != nil {
			if !ucdriver.IsAuthError(err) {
				return failure(err)
			}
			logger.Warnf("Enable secret rejected on %s, continuing in user mode", e.Address)
		}
	}

	version, err := device.SendCommand("show version")
	if err != nil {
		return failure(err)
	}
	logger.Debug(version)
	now := h.now()
	facts := scrape.Collect(version, scrape.DiscoveryFields...)
	hostname := facts[scrape.Hostname.Name]
	bootDate := ""
	if uptime, ok := facts[scrape.Uptime.Name]; ok {
		bootDate = scrape.BootDate(uptime, now).Format(BootDateLayout)
	}
	fields := []string{
		orDash(hostname),
		orDash(bootDate),
		orDash(facts[scrape.Version.Name]),
		orDash(facts[scrape.Serial.Name]),
		orDash(facts[scrape.Model.Name]),
	}

	dumpHost := hostname
	if dumpHost == "" {
		dumpHost = e.Address
	}
	if err := h.dumpConfig(device, dumpHost, now); err != nil {
		return failureWith(err, fields)
	}
	inv, err := device.SendCommand("show inventory")
	if err != nil {
		return failureWith(err, fields)
	}
	if _, err := report.WriteDump(h.InventoryDir, report.DumpName(dumpHost, "inventory", h.Initials, now), inv); err != nil {
		return failureWith(err, fields)
	}

	var missing []string
	for _, f := range scrape.DiscoveryFields {
		if _, ok := facts[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		logger.Warnf("Could not find %s in show version of %s", strings.Join(missing, ", "), e.Address)
		return orchestrate.Result{Status: orchestrate.VerificationError, Detail: "not found: " + strings.Join(missing, ", "), Fields: fields}
	}
	logger.Infof("Discovered %s (%s)", hostname, e.Address)
	return orchestrate.Result{Status: orchestrate.Success, Fields: fields}
}

// dumpConfig saves the running configuration, fetched over SFTP/SCP when so
// configured and over the CLI otherwise or when the file transfer fails.
func (h *Handler) dumpConfig(device Device, host string, now time.Time) error {
	name := report.DumpName(host, "config", h.Initials, now)
	if h.ConfigSource == ConfigSourceSFTP {
		local := filepath.Join(h.ConfigDir, name)
		err := os.MkdirAll(h.ConfigDir, 0o755)
		if err == nil {
			err = device.RetrieveFile(runningConfigFile, local)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, ucdriver.ErrNoSSHTransport) {
			log.Infof("No SSH transport to %s, reading the running configuration over the CLI", host)
		} else {
			log.Warnf("Failed to retrieve %s from %s: %v. Reading it over the CLI.", runningConfigFile, host, err)
		}
	}
	config, err := device.SendCommandTimeout("show running-config", 2*ucdriver.DefaultTimeout)
	if err != nil {
		return err
	}
	_, err = report.WriteDump(h.ConfigDir, name, config)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func failure(err error) orchestrate.Result {
	return orchestrate.Result{Status: orchestrate.ClassifyError(err), Detail: err.Error()}
}

func failureWith(err error, fields []string) orchestrate.Result {
	r := failure(err)
	r.Fields = fields
	return r
}

// Row lays a result out as a discovery report row. Devices that produced no
// facts get "-" in every fact column.
func Row(r orchestrate.Result) []string {
	f := r.Fields
	if len(f) != 5 {
		f = []string{"-", "-", "-", "-", "-"}
	}
	return []string{f[0], r.Entry.Address, f[1], f[2], f[3], f[4], string(r.Status), r.Detail}
}
