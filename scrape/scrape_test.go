package scrape

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const showVersion = `Cisco IOS XE Software, Version 16.09.04
Cisco IOS Software [Fuji], ISR Software (X86_64_LINUX_IOSD-UNIVERSALK9-M), Version 16.9.4, RELEASE SOFTWARE (fc2)
Technical Support: http://www.cisco.com/techsupport

ROM: IOS-XE ROMMON
CUBE-01 uptime is 1 year, 2 weeks, 3 days, 4 hours, 5 minutes
Uptime for this control processor is 1 year, 2 weeks, 3 days, 4 hours, 7 minutes

cisco ISR4331/K9 (1RU) processor with 1795999K/6147K bytes of memory.
Processor board ID FDO21520TGH
3 Gigabit Ethernet interfaces
`

const activeCalls = `CallID=1001, CallOrigin=2
RemoteMediaIPAddress=10.20.30.40
ReceiveDelay=60 ms
TransmitPackets=1523
ReceivePackets=1519
LostPackets=4
EarlyPackets=0
LatePackets=1
OriginalCallingNumber=5551001
CallID=1002, CallOrigin=1
ReceiveDelay=70 ms
TransmitPackets=88
ReceivePackets=87
LostPackets=1
OriginalCallingNumber=5551002
`

func TestExtract(t *testing.T) {
	Convey("Given captured text with some fields present", t, func() {
		text := "CallID=42\nReceiveDelay=10 ms\n"

		Convey("Present fields are extracted by name", func() {
			So(Extract(text, CallID), ShouldResemble, []string{"42"})
			So(Extract(text, ReceiveDelay), ShouldResemble, []string{"10"})
		})

		Convey("An absent field yields an empty result", func() {
			So(Extract(text, OriginalCallingNumber), ShouldBeEmpty)
			v, ok := First(text, OriginalCallingNumber)
			So(ok, ShouldBeFalse)
			So(v, ShouldEqual, "")
			So(FirstOr(text, OriginalCallingNumber, "-"), ShouldEqual, "-")
		})

		Convey("A zero field never panics", func() {
			So(Extract(text, Field{Name: "empty"}), ShouldBeEmpty)
		})
	})

	Convey("Packet counters each have their own expression", t, func() {
		text := "TransmitPackets=10\nReceivePackets=20\nLostPackets=30\n"
		So(Extract(text, TransmitPackets), ShouldResemble, []string{"10"})
		So(Extract(text, ReceivePackets), ShouldResemble, []string{"20"})
		So(Extract(text, LostPackets), ShouldResemble, []string{"30"})
	})
}

func TestCallLegs(t *testing.T) {
	Convey("Given two active call legs", t, func() {
		legs := CallLegs(activeCalls)

		So(legs, ShouldHaveLength, 2)
		So(legs[0].CallID(), ShouldEqual, "1001")
		So(legs[0].Values, ShouldResemble,
			[]string{"1001", "10.20.30.40", "60", "1523", "1519", "4", "0", "1", "5551001"})

		Convey("Fields missing from a leg stay empty instead of borrowing the next leg's", func() {
			So(legs[1].Values, ShouldResemble,
				[]string{"1002", "", "70", "88", "87", "1", "", "", "5551002"})
		})
	})

	Convey("No active calls means no legs", t, func() {
		So(CallLegs(""), ShouldBeEmpty)
	})
}

func TestDiscoveryFields(t *testing.T) {
	Convey("Given show version output", t, func() {
		rec := Collect(showVersion, DiscoveryFields...)

		So(rec["hostname"], ShouldEqual, "CUBE-01")
		So(rec["version"], ShouldEqual, "16.9.4")
		So(rec["serial"], ShouldEqual, "FDO21520TGH")
		So(rec["model"], ShouldEqual, "ISR4331/K9")
		So(rec["uptime"], ShouldStartWith, "1 year, 2 weeks, 3 days")

		Convey("Uptime converts to a boot date", func() {
			now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			So(BootDate(rec["uptime"], now), ShouldEqual, now.AddDate(0, 0, -(365 + 14 + 3)))
			So(BootDate("5 minutes", now), ShouldEqual, now)
			So(BootDate("12 weeks, 1 day, 2 hours", now), ShouldEqual, now.AddDate(0, 0, -85))
		})
	})

	Convey("Output without the fields produces an empty record", t, func() {
		So(Collect("% Invalid input detected", DiscoveryFields...), ShouldBeEmpty)
	})
}

func TestAppliance(t *testing.T) {
	Convey("PKID finds the key printed in front of a name", t, func() {
		out := "pkid                                 name                              \n" +
			"==================================== ================================= \n" +
			"2c5a1b3e-7d0f-4a52-9b0e-4f6a1c2d3e4f Standard AXL API Access           \n"

		id, ok := PKID(out, "Standard AXL API Access")
		So(ok, ShouldBeTrue)
		So(id, ShouldEqual, "2c5a1b3e-7d0f-4a52-9b0e-4f6a1c2d3e4f")

		_, ok = PKID(out, "Standard CCM Admin Users")
		So(ok, ShouldBeFalse)
	})

	Convey("IsPublisher matches the node address as a whole token", t, func() {
		out := "10.1.1.10       cucm-pub.example.com  cucm-pub  Publisher callmanager DBPub authenticated\n" +
			"10.1.1.11       cucm-sub.example.com  cucm-sub  Subscriber callmanager DBSub authenticated using TCP since Mon\n"

		So(IsPublisher(out, "10.1.1.10"), ShouldBeTrue)
		So(IsPublisher(out, "10.1.1.11"), ShouldBeFalse)
		So(IsPublisher(out, "10.1.1.1"), ShouldBeFalse)
	})
}
