package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/voiceops/uckit/inventory"
	"github.com/voiceops/uckit/orchestrate"
	"github.com/voiceops/uckit/ucdriver"
	"github.com/voiceops/uckit/ucdriver/ucdrivertest"
)

const showVersion = "Cisco IOS XE Software, Version 16.09.04\r\n" +
	"Cisco IOS Software [Fuji], ISR Software (X86_64_LINUX_IOSD-UNIVERSALK9-M), Version 16.9.4, RELEASE SOFTWARE (fc2)\r\n" +
	"CUBE-01 uptime is 1 year, 2 weeks, 3 days, 4 hours, 5 minutes\r\n" +
	"cisco ISR4331/K9 (1RU) processor with 1795979K/6147K bytes of memory.\r\n" +
	"Processor board ID FDO21520TGH\r\n"

// router is a scripted IOS exec console. With tries above one it asks for
// the enable secret again after each wrong answer.
type router struct {
	hostname string
	secret   string
	version  string
	mode     string
	tries    int
	failed   int
	awaiting bool
}

func (r *router) console() *ucdrivertest.Console {
	c := ucdrivertest.NewConsole("", r.handle)
	c.Silent = func(string) bool { return r.awaiting }
	return c
}

func (r *router) handle(line string) string {
	if r.awaiting {
		r.awaiting = false
		if line != r.secret {
			r.failed++
			if r.failed < r.tries {
				r.awaiting = true
				return "Password: "
			}
			if r.tries > 1 {
				return "% Bad secrets\r\n\r\n" + r.hostname + r.mode
			}
			return "% Access denied\r\n\r\n" + r.hostname + r.mode
		}
		r.mode = "#"
		return r.hostname + r.mode
	}
	switch line {
	case "enable":
		r.awaiting = true
		r.failed = 0
		return "Password: "
	case "show version":
		return r.version + r.hostname + r.mode
	case "show running-config":
		return "Building configuration...\r\n\r\nhostname " + r.hostname + "\r\nend\r\n" + r.hostname + r.mode
	case "show inventory":
		return `NAME: "Chassis", DESCR: "Cisco ISR4331 Chassis"` + "\r\nPID: ISR4331/K9 , VID: V04 , SN: FDO21520TGH\r\n" + r.hostname + r.mode
	}
	return r.hostname + r.mode
}

func TestValidate(t *testing.T) {
	Convey("Options.Validate", t, func() {
		Convey("accepts one to three letters and fills defaults", func() {
			o := Options{Initials: "jd"}
			So(o.Validate(), ShouldBeNil)
			So(o.ConfigSource, ShouldEqual, ConfigSourceCLI)
			So(o.ConfigDir, ShouldEqual, DefaultConfigDir)
			So(o.InventoryDir, ShouldEqual, DefaultInventoryDir)
		})

		Convey("rejects bad initials", func() {
			for _, s := range []string{"", "ABCD", "J1", "J.D"} {
				o := Options{Initials: s}
				So(o.Validate(), ShouldNotBeNil)
			}
		})

		Convey("rejects unknown config sources", func() {
			o := Options{Initials: "JD", ConfigSource: "tftp"}
			So(o.Validate(), ShouldNotBeNil)
		})
	})
}

func TestHandler(t *testing.T) {
	Convey("Given a discovery handler and an IOS gateway", t, func() {
		dir := t.TempDir()
		r := &router{hostname: "CUBE-01", secret: "en", version: showVersion, mode: ">"}
		console := r.console()
		h := &Handler{
			Options: Options{
				Initials:     "JD",
				ConfigSource: ConfigSourceCLI,
				ConfigDir:    filepath.Join(dir, DefaultConfigDir),
				InventoryDir: filepath.Join(dir, DefaultInventoryDir),
				Now:          func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) },
			},
			Open: func(ctx context.Context, t ucdriver.Target) (Device, error) {
				d := ucdriver.NewIOSDeviceConnection(console, t.Username, t.Password, t.Secret)
				if err := d.Connect(); err != nil {
					return nil, err
				}
				return d, nil
			},
		}
		entry := inventory.Entry{Address: "10.1.1.1", Username: "admin", Password: "pw", Secret: "en"}

		Convey("it reports the device facts and writes both dumps", func() {
			res := h.Handle(context.Background(), entry)
			So(res.Status, ShouldEqual, orchestrate.Success)
			So(res.Fields, ShouldResemble, []string{"CUBE-01", "02-13-2023", "16.9.4", "FDO21520TGH", "ISR4331/K9"})
			So(console.Lines(), ShouldContain, "enable")

			config, err := os.ReadFile(filepath.Join(dir, DefaultConfigDir, "CUBE-01_config_03_01_2024_JD.txt"))
			So(err, ShouldBeNil)
			So(string(config), ShouldContainSubstring, "hostname CUBE-01")
			inv, err := os.ReadFile(filepath.Join(dir, DefaultInventoryDir, "CUBE-01_inventory_03_01_2024_JD.txt"))
			So(err, ShouldBeNil)
			So(string(inv), ShouldContainSubstring, "SN: FDO21520TGH")

			res.Entry = entry
			So(Row(res), ShouldResemble, []string{"CUBE-01", "10.1.1.1", "02-13-2023", "16.9.4", "FDO21520TGH", "ISR4331/K9", "success", ""})
		})

		Convey("a rejected enable secret continues in user mode", func() {
			entry.Secret = "wrong"
			res := h.Handle(context.Background(), entry)
			So(res.Status, ShouldEqual, orchestrate.Success)
			So(console.Lines(), ShouldContain, "show version")
		})

		Convey("a secret IOS asks for three times still continues in user mode", func() {
			r.tries = 3
			entry.Secret = "wrong"
			res := h.Handle(context.Background(), entry)
			So(res.Status, ShouldEqual, orchestrate.Success)
			So(res.Fields[0], ShouldEqual, "CUBE-01")
			So(r.mode, ShouldEqual, ">")
			So(console.Lines(), ShouldContain, "show inventory")
		})

		Convey("sftp without an SSH client falls back to the CLI", func() {
			h.ConfigSource = ConfigSourceSFTP
			res := h.Handle(context.Background(), entry)
			So(res.Status, ShouldEqual, orchestrate.Success)
			So(console.Lines(), ShouldContain, "show running-config")
		})

		Convey("facts missing from show version are a verification error", func() {
			r.version = "CUBE-01 uptime is 3 days, 1 hour\r\n"
			res := h.Handle(context.Background(), entry)
			So(res.Status, ShouldEqual, orchestrate.VerificationError)
			So(res.Detail, ShouldEqual, "not found: version, serial, model")
			So(res.Fields, ShouldResemble, []string{"CUBE-01", "02-27-2024", "-", "-", "-"})
		})

		Convey("connection failures carry no facts", func() {
			h.Open = func(ctx context.Context, t ucdriver.Target) (Device, error) {
				return nil, &ucdriver.TransportError{Addr: t.Host + ":22", Protocol: "ssh", Err: errors.New("connection refused")}
			}
			res := h.Handle(context.Background(), entry)
			So(res.Status, ShouldEqual, orchestrate.ConnectorError)
			res.Entry = entry
			row := Row(res)
			So(row[:6], ShouldResemble, []string{"-", "10.1.1.1", "-", "-", "-", "-"})
			So(row[7], ShouldContainSubstring, "connection refused")
		})
	})

	Convey("Unreachable results keep the report shape", t, func() {
		row := Row(orchestrate.Result{Entry: inventory.Entry{Address: "10.9.9.9"}, Status: orchestrate.Unreachable, Detail: "No ping reply"})
		So(row, ShouldResemble, []string{"-", "10.9.9.9", "-", "-", "-", "-", "unreachable", "No ping reply"})
	})
}
