package probe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const windowsPing = `
Pinging 10.1.1.1 with 32 bytes of data:
Reply from 10.1.1.1: bytes=32 time<1ms TTL=255
Reply from 10.1.1.1: bytes=32 time<1ms TTL=255
Request timed out.
Reply from 10.1.1.1: bytes=32 time<1ms TTL=255

Ping statistics for 10.1.1.1:
    Packets: Sent = 4, Received = 3, Lost = 1 (25% loss),
`

const linuxPingDown = `PING 10.9.9.9 (10.9.9.9) 56(84) bytes of data.

--- 10.9.9.9 ping statistics ---
4 packets transmitted, 0 received, 100% packet loss, time 3062ms
`

func TestReplies(t *testing.T) {
	Convey("Replies reads the summary of every ping flavour", t, func() {
		n, ok := Replies(windowsPing)
		So(ok, ShouldBeTrue)
		So(n, ShouldEqual, 3)

		n, ok = Replies(linuxPingDown)
		So(ok, ShouldBeTrue)
		So(n, ShouldEqual, 0)

		n, ok = Replies("4 packets transmitted, 4 packets received, 0.0% packet loss")
		So(ok, ShouldBeTrue)
		So(n, ShouldEqual, 4)

		_, ok = Replies("ping: unknown host")
		So(ok, ShouldBeFalse)
	})
}

func TestPingProber(t *testing.T) {
	Convey("Given a ping prober with a scripted ping", t, func() {
		var gotArgs []string
		output, exitErr := "", error(nil)
		p := &PingProber{Count: 4, MinReplies: 1, Timeout: 2 * time.Second, GOOS: "linux",
			Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
				gotArgs = append([]string{name}, args...)
				return []byte(output), exitErr
			},
		}

		Convey("A partial reply counts as reachable", func() {
			output = windowsPing
			ok, err := p.Reachable(context.Background(), "10.1.1.1")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(gotArgs, ShouldResemble, []string{"ping", "-c", "4", "-W", "2", "10.1.1.1"})
		})

		Convey("No replies is unreachable even though ping exits non-zero", func() {
			output, exitErr = linuxPingDown, errors.New("exit status 1")
			ok, err := p.Reachable(context.Background(), "10.9.9.9")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("A ping that cannot run is an error", func() {
			output, exitErr = "", errors.New("executable file not found")
			ok, err := p.Reachable(context.Background(), "10.9.9.9")
			So(ok, ShouldBeFalse)
			So(err, ShouldNotBeNil)
		})

		Convey("Windows ping uses its own flags", func() {
			p.GOOS = "windows"
			output = windowsPing
			p.Reachable(context.Background(), "10.1.1.1")
			So(gotArgs, ShouldResemble, []string{"ping", "-n", "4", "-w", "2000", "10.1.1.1"})
		})
	})
}

func TestTCPProber(t *testing.T) {
	Convey("Given a listening TCP port", t, func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		So(err, ShouldBeNil)
		port := listener.Addr().(*net.TCPAddr).Port

		Convey("The host is reachable while the port is open", func() {
			defer listener.Close()
			ok, err := (&TCPProber{Port: port, Timeout: time.Second}).Reachable(context.Background(), "127.0.0.1")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})

		Convey("The host is unreachable once the port closes", func() {
			listener.Close()
			ok, err := (&TCPProber{Port: port, Timeout: time.Second}).Reachable(context.Background(), "127.0.0.1")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})
	})
}
