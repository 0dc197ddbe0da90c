package inventory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParse(t *testing.T) {
	Convey("Given a device list with a named header", t, func() {
		csv := "ip,username,password,enablesecret,devicetype\n" +
			"10.1.1.1,admin,pw1,en1,network\n" +
			"10.1.1.10,ccmadmin,pw2,,CUCM\n" +
			"10.1.1.20,admin,pw3\n" +
			"\n" +
			",admin,pw4,en4,CER\n"

		list, err := Parse(strings.NewReader(csv), OnboardingColumns)
		So(err, ShouldBeNil)

		Convey("Well-formed rows become entries with all five columns", func() {
			So(list.Entries, ShouldHaveLength, 2)
			So(list.Entries[0], ShouldResemble, Entry{
				Line: 2, Address: "10.1.1.1", Username: "admin", Password: "pw1", Secret: "en1", DeviceType: "NETWORK",
			})
			So(list.Entries[1].DeviceType, ShouldEqual, "CUCM")
			So(list.Entries[1].Secret, ShouldEqual, "")
		})

		Convey("Short rows and rows without an address are rejected, blank lines ignored", func() {
			So(list.Rejected, ShouldHaveLength, 2)
			So(list.Rejected[0].Line, ShouldEqual, 4)
			So(list.Rejected[0].Reason, ShouldContainSubstring, "expected 5 columns, found 3")
			So(list.Rejected[1].Line, ShouldEqual, 6)
			So(list.Rejected[1].Reason, ShouldEqual, "empty ip column")
			So(list.Len(), ShouldEqual, 4)
		})
	})

	Convey("Header columns may come in any order and case", t, func() {
		csv := "DeviceType, IP ,Username,Password,EnableSecret,notes\nCER,10.2.2.2,u,p,s,lab\n"
		list, err := Parse(strings.NewReader(csv), OnboardingColumns)
		So(err, ShouldBeNil)
		So(list.Entries[0].Address, ShouldEqual, "10.2.2.2")
		So(list.Entries[0].DeviceType, ShouldEqual, "CER")
		So(list.Entries[0].Secret, ShouldEqual, "s")
	})

	Convey("A header without the column names falls back to column order", t, func() {
		csv := "Address,User,Pass,Enable\n10.3.3.3,u,p,s\n"
		list, err := Parse(strings.NewReader(csv), DiscoveryColumns)
		So(err, ShouldBeNil)
		So(list.Entries[0], ShouldResemble, Entry{Line: 2, Address: "10.3.3.3", Username: "u", Password: "p", Secret: "s"})
	})

	Convey("A header-only list is empty", t, func() {
		_, err := Parse(strings.NewReader("ip,username,password,enablesecret\n"), DiscoveryColumns)
		So(err, ShouldEqual, ErrEmpty)

		_, err = Parse(strings.NewReader(""), DiscoveryColumns)
		So(err, ShouldEqual, ErrEmpty)
	})
}

func TestLoad(t *testing.T) {
	Convey("Load reads a list from disk", t, func() {
		path := filepath.Join(t.TempDir(), "DeviceList.csv")
		So(os.WriteFile(path, []byte("ip,username,password,enablesecret\n192.0.2.1,u,p,s\n"), 0o644), ShouldBeNil)

		list, err := Load(path, DiscoveryColumns)
		So(err, ShouldBeNil)
		So(list.Entries, ShouldHaveLength, 1)

		_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), DiscoveryColumns)
		So(err, ShouldNotBeNil)
	})
}
