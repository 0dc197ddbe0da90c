// Package scrape pulls named fields out of captured CLI output.
//
// Absence is never an error: Extract returns an empty slice and First
// reports ok=false, so a record with a missing field is still a record.
package scrape

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Field is a named expression whose first capture group is the value.
type Field struct {
	Name    string
	Pattern *regexp.Regexp
}

func NewField(name, expr string) Field {
	return Field{Name: name, Pattern: regexp.MustCompile(expr)}
}

// Extract returns the first capture group of every match, in order.
func Extract(text string, f Field) []string {
	if f.Pattern == nil {
		return []string{}
	}
	matches := f.Pattern.FindAllStringSubmatch(text, -1)
	values := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) < 2 {
			values = append(values, strings.TrimSpace(m[0]))
			continue
		}
		values = append(values, strings.TrimSpace(m[1]))
	}
	return values
}

// First returns the first value of f in text.
func First(text string, f Field) (string, bool) {
	values := Extract(text, f)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// FirstOr returns the first value of f in text, or def when absent.
func FirstOr(text string, f Field, def string) string {
	if v, ok := First(text, f); ok {
		return v
	}
	return def
}

// Record maps field names to values; absent fields are simply missing.
type Record map[string]string

// Collect takes the first value of every field.
func Collect(text string, fields ...Field) Record {
	rec := Record{}
	for _, f := range fields {
		if v, ok := First(text, f); ok {
			rec[f.Name] = v
		}
	}
	return rec
}

// Device facts from "show version" on IOS and IOS-XE.
var (
	Hostname = NewField("hostname", `(\S+)\suptime\sis`)
	Uptime   = NewField("uptime", `\S+\suptime\sis\s(.+)`)
	Version  = NewField("version", `Cisco\sIOS\sSoftware.+?Version\s([^,\s]+)`)
	Serial   = NewField("serial", `Processor\sboard\sID\s(\S+)`)
	Model    = NewField("model", `[Cc]isco\s(\S+).*memory\.`)
)

// DiscoveryFields is the field set of one discovery report row.
var DiscoveryFields = []Field{Hostname, Uptime, Version, Serial, Model}

var (
	uptimeYears = regexp.MustCompile(`(\d+)\syears?`)
	uptimeWeeks = regexp.MustCompile(`(\d+)\sweeks?`)
	uptimeDays  = regexp.MustCompile(`(\d+)\sdays?`)
)

// BootDate converts an IOS uptime string to the day the device booted,
// counting a year as 365 days and ignoring hours and minutes.
func BootDate(uptime string, now time.Time) time.Time {
	days := 0
	if m := uptimeYears.FindStringSubmatch(uptime); m != nil {
		n, _ := strconv.Atoi(m[1])
		days += n * 365
	}
	if m := uptimeWeeks.FindStringSubmatch(uptime); m != nil {
		n, _ := strconv.Atoi(m[1])
		days += n * 7
	}
	if m := uptimeDays.FindStringSubmatch(uptime); m != nil {
		n, _ := strconv.Atoi(m[1])
		days += n
	}
	return now.AddDate(0, 0, -days)
}

// PKID returns the pkid printed in front of name by a "run sql select
// pkid,name ..." query on a UC appliance.
func PKID(text, name string) (string, bool) {
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	re := regexp.MustCompile(`(?m)^\s*([0-9a-fA-F][0-9a-fA-F-]{7,})\s+` + strings.Join(words, `\s+`) + `\s*$`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsPublisher reports whether "show network cluster" output lists ip as the
// cluster publisher.
func IsPublisher(text, ip string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "Publisher") && containsWord(line, ip) {
			return true
		}
	}
	return false
}

// containsWord matches ip as a whole token so 10.1.1.1 does not match 10.1.1.10.
func containsWord(line, word string) bool {
	for _, f := range strings.Fields(line) {
		if f == word {
			return true
		}
	}
	return false
}
