package ucdriver_test

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/ssh"

	"github.com/voiceops/uckit/ucdriver"
)

// mockAppliance is an SSH server presenting an admin console.
type mockAppliance struct {
	username string
	password string
	listener net.Listener
	config   *ssh.ServerConfig
}

func newMockAppliance(username, password string) (*mockAppliance, error) {
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.NewSignerFromKey(private)
	if err != nil {
		return nil, err
	}
	m := &mockAppliance{username: username, password: password}
	m.config = &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == m.username && string(pass) == m.password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	m.config.AddHostKey(signer)
	m.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	go m.acceptUntilError()
	return m, nil
}

func (m *mockAppliance) port() int {
	return m.listener.Addr().(*net.TCPAddr).Port
}

func (m *mockAppliance) stop() {
	m.listener.Close()
}

func (m *mockAppliance) acceptUntilError() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		go func() {
			_, chans, reqs, err := ssh.NewServerConn(conn, m.config)
			if err != nil {
				conn.Close()
				return
			}
			go ssh.DiscardRequests(reqs)
			for newCh := range chans {
				if newCh.ChannelType() != "session" {
					newCh.Reject(ssh.UnknownChannelType, "unknown channel type")
					continue
				}
				go m.handleSession(newCh)
			}
		}()
	}
}

func (m *mockAppliance) handleSession(newCh ssh.NewChannel) {
	ch, reqs, err := newCh.Accept()
	if err != nil {
		return
	}
	defer ch.Close()
	shell := make(chan struct{})
	go func() {
		for req := range reqs {
			ok := req.Type == "pty-req" || req.Type == "shell"
			req.Reply(ok, nil)
			if req.Type == "shell" {
				close(shell)
			}
		}
	}()
	<-shell
	fmt.Fprint(ch, "Welcome to the Platform Command Line Interface\r\n\r\nadmin:")
	lines := bufio.NewReader(ch)
	for {
		line, err := lines.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		switch line {
		case "exit":
			return
		case "show network cluster":
			fmt.Fprintf(ch, "%s\r\n10.1.1.10 cucm-pub.example.com cucm-pub Publisher callmanager DBPub authenticated\r\nadmin:", line)
		default:
			fmt.Fprintf(ch, "%s\r\nExecuted command unsuccessfully\r\nadmin:", line)
		}
	}
}

func TestSSHTransport(t *testing.T) {
	Convey("Given an appliance listening for SSH", t, func() {
		appliance, err := newMockAppliance("admin", "secret")
		So(err, ShouldBeNil)
		Reset(appliance.stop)

		Convey("Valid credentials open the admin console", func() {
			device, err := ucdriver.InitVOSDevice("127.0.0.1", "admin", "secret", appliance.port())
			So(err, ShouldBeNil)
			So(device.Connect(), ShouldBeNil)
			defer device.Disconnect()

			out, err := device.SendCommand("show network cluster")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Publisher")
		})

		Convey("Rejected credentials are classified as an AuthError", func() {
			device, err := ucdriver.InitVOSDevice("127.0.0.1", "admin", "wrong", appliance.port())
			So(err, ShouldBeNil)
			err = device.Connect()
			So(ucdriver.IsAuthError(err), ShouldBeTrue)
			So(ucdriver.IsTransportError(err), ShouldBeFalse)
		})
	})

	Convey("Given nothing listening on the port", t, func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		So(err, ShouldBeNil)
		port := listener.Addr().(*net.TCPAddr).Port
		listener.Close()

		Convey("Connect fails with a TransportError", func() {
			device, err := ucdriver.InitVOSDevice("127.0.0.1", "admin", "secret", port)
			So(err, ShouldBeNil)
			err = device.Connect()
			So(ucdriver.IsTransportError(err), ShouldBeTrue)
		})
	})
}

type fakeSession struct {
	ucdriver.DeviceConnection
	protocol string
}

func (f *fakeSession) PromptPattern() ucdriver.Pattern { return ucdriver.Literal("#") }

func TestConnector(t *testing.T) {
	Convey("Given a connector with an SSH primary and a Telnet secondary", t, func() {
		var attempts []string
		results := map[string]error{}
		connector := &ucdriver.Connector[*fakeSession]{
			Primary:   ucdriver.ProtocolSSH,
			Secondary: ucdriver.ProtocolTelnet,
			Open: func(t ucdriver.Target, protocol string, port int, timeout time.Duration) (*fakeSession, error) {
				attempts = append(attempts, fmt.Sprintf("%s:%d", protocol, port))
				if err := results[protocol]; err != nil {
					return nil, err
				}
				return &fakeSession{protocol: protocol}, nil
			},
		}
		target := ucdriver.Target{Host: "192.0.2.1", Username: "u", Password: "p"}
		transportErr := &ucdriver.TransportError{Addr: "192.0.2.1:22", Protocol: "ssh", Err: errors.New("connection refused")}
		authErr := &ucdriver.AuthError{Addr: "192.0.2.1:22", Protocol: "ssh", Err: errors.New("unable to authenticate")}

		Convey("A working primary is used without fallback", func() {
			session, err := connector.Connect(context.Background(), target)
			So(err, ShouldBeNil)
			So(session.protocol, ShouldEqual, "ssh")
			So(attempts, ShouldResemble, []string{"ssh:22"})
		})

		Convey("A transport failure falls back to the secondary exactly once", func() {
			results["ssh"] = transportErr
			session, err := connector.Connect(context.Background(), target)
			So(err, ShouldBeNil)
			So(session.protocol, ShouldEqual, "telnet")
			So(attempts, ShouldResemble, []string{"ssh:22", "telnet:23"})
		})

		Convey("When both transports fail the last error is surfaced", func() {
			results["ssh"] = transportErr
			results["telnet"] = &ucdriver.TransportError{Addr: "192.0.2.1:23", Protocol: "telnet", Err: errors.New("refused")}
			session, err := connector.Connect(context.Background(), target)
			So(session, ShouldBeNil)
			So(ucdriver.IsTransportError(err), ShouldBeTrue)
			So(attempts, ShouldHaveLength, 2)
		})

		Convey("An authentication failure is surfaced without fallback", func() {
			results["ssh"] = authErr
			session, err := connector.Connect(context.Background(), target)
			So(session, ShouldBeNil)
			So(ucdriver.IsAuthError(err), ShouldBeTrue)
			So(attempts, ShouldResemble, []string{"ssh:22"})
		})

		Convey("An authentication failure falls back when configured to", func() {
			connector.FallbackOnAuthFailure = true
			results["ssh"] = authErr
			results["telnet"] = &ucdriver.AuthError{Addr: "192.0.2.1:23", Protocol: "telnet", Err: errors.New("login rejected")}
			session, err := connector.Connect(context.Background(), target)
			So(session, ShouldBeNil)
			So(ucdriver.IsAuthError(err), ShouldBeTrue)
			So(attempts, ShouldResemble, []string{"ssh:22", "telnet:23"})
		})

		Convey("Custom ports are honoured", func() {
			connector.Ports = map[string]int{"ssh": 2222}
			_, err := connector.Connect(context.Background(), target)
			So(err, ShouldBeNil)
			So(attempts, ShouldResemble, []string{"ssh:2222"})
		})

		Convey("A cancelled context makes no attempt", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := connector.Connect(ctx, target)
			So(err, ShouldEqual, context.Canceled)
			So(attempts, ShouldBeEmpty)
		})
	})
}
