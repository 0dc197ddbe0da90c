package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const sample = `
log:
  level: debug
connect:
  ssh_port: 2222
  dial_timeout: 5s
  fallback_on_auth_failure: true
probe:
  method: tcp
onboarding:
  logging_server: 10.9.9.9
  snmp_community:
    env: UCKIT_TEST_COMMUNITY
  axl_username: svc_axl
  acg_name: Monitoring ACG
  paws_account: svc_paws
  paws_password:
    file: paws.txt
axl:
  url: https://cucm-pub.example.net:8443/axl/
  username: axlproxy
  password:
    env: UCKIT_TEST_AXL
`

func TestLoad(t *testing.T) {
	Convey("Given a config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, FileName)
		So(os.WriteFile(path, []byte(sample), 0o600), ShouldBeNil)

		Convey("values override the defaults and the rest stays default", func() {
			cfg, used, err := Load(path)
			So(err, ShouldBeNil)
			So(used, ShouldEqual, path)
			So(cfg.Log.Level, ShouldEqual, "debug")
			So(cfg.Connect.SSHPort, ShouldEqual, 2222)
			So(cfg.Connect.TelnetPort, ShouldEqual, 23)
			So(cfg.Connect.DialTimeout, ShouldEqual, 5*time.Second)
			So(cfg.Connect.FallbackOnAuthFailure, ShouldBeTrue)
			So(cfg.Probe.Method, ShouldEqual, "tcp")
			So(cfg.Onboarding.PAWSDescription, ShouldEqual, "ANMMS-Monitoring")
			So(cfg.AXL.Version, ShouldEqual, "12.5")
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("unknown keys are rejected", func() {
			So(os.WriteFile(path, []byte("log:\n  levle: debug\n"), 0o600), ShouldBeNil)
			_, _, err := Load(path)
			So(err, ShouldNotBeNil)
		})

		Convey("a missing explicit file is an error", func() {
			_, _, err := Load(filepath.Join(dir, "nope.yaml"))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("An empty file yields the defaults", t, func() {
		cfg := Default()
		So(Parse(nil, &cfg), ShouldBeNil)
		So(cfg, ShouldResemble, Default())
	})
}

func TestValidate(t *testing.T) {
	Convey("Validate", t, func() {
		cfg := Default()

		Convey("accepts the defaults", func() {
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("reports every problem", func() {
			cfg.Connect.SSHPort = 0
			cfg.Probe.Method = "icmp"
			err := cfg.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "ssh_port")
			So(err.Error(), ShouldContainSubstring, "probe.method")
		})

		Convey("onboarding needs its inputs", func() {
			err := cfg.ValidateOnboarding()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "logging_server")
			So(err.Error(), ShouldContainSubstring, "paws_password")
		})

		Convey("the proxy refuses to start without AXL credentials", func() {
			cfg.AXL.URL = "https://cucm:8443/axl/"
			cfg.AXL.Username = "axl"
			So(cfg.ValidateAXL(), ShouldNotBeNil)
			cfg.AXL.Password.Set("pw")
			So(cfg.ValidateAXL(), ShouldBeNil)
		})
	})
}

func TestSecret(t *testing.T) {
	Convey("Secret.Resolve", t, func() {
		Convey("reads the environment first", func() {
			t.Setenv("UCKIT_TEST_SECRET", "from-env")
			s := Secret{Env: "UCKIT_TEST_SECRET", File: "/does/not/exist"}
			So(s.IsSet(), ShouldBeTrue)
			v, err := s.Resolve()
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "from-env")
		})

		Convey("then the file, without its trailing newline", func() {
			path := filepath.Join(t.TempDir(), "secret")
			So(os.WriteFile(path, []byte("from-file\n"), 0o600), ShouldBeNil)
			v, err := Secret{Env: "UCKIT_TEST_UNSET", File: path}.Resolve()
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "from-file")
		})

		Convey("a value set at runtime wins", func() {
			s := Secret{File: "/does/not/exist"}
			s.Set("typed")
			v, err := s.Resolve()
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "typed")
			So(s.String(), ShouldNotContainSubstring, "typed")
		})

		Convey("no source is empty, not an error", func() {
			var s Secret
			So(s.IsSet(), ShouldBeFalse)
			v, err := s.Resolve()
			So(err, ShouldBeNil)
			So(v, ShouldBeEmpty)
		})
	})
}

func TestPrompter(t *testing.T) {
	Convey("Given answers on a non-terminal input", t, func() {
		var out bytes.Buffer
		p := &Prompter{In: strings.NewReader("10.9.9.9\nPa55word!\n"), Out: &out}

		Convey("empty values are asked for once and set values are not", func() {
			server, account := "", "svc_paws"
			So(p.Fill(&server, "Enter logging server"), ShouldBeNil)
			So(p.Fill(&account, "Enter PAWS API username"), ShouldBeNil)
			var pw Secret
			So(p.FillSecret(&pw, "Enter PAWS API password"), ShouldBeNil)

			So(server, ShouldEqual, "10.9.9.9")
			So(account, ShouldEqual, "svc_paws")
			v, _ := pw.Resolve()
			So(v, ShouldEqual, "Pa55word!")
			So(out.String(), ShouldNotContainSubstring, "username")
		})

		Convey("running out of input is an error", func() {
			a, b, c := "", "", ""
			So(p.Fill(&a, "a"), ShouldBeNil)
			So(p.Fill(&b, "b"), ShouldBeNil)
			So(p.Fill(&c, "c"), ShouldNotBeNil)
		})
	})
}
