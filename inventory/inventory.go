// Package inventory reads the device list CSV.
package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Column names of the device list header.
const (
	ColAddress    = "ip"
	ColUsername   = "username"
	ColPassword   = "password"
	ColSecret     = "enablesecret"
	ColDeviceType = "devicetype"
)

// OnboardingColumns are required by the onboarding run.
var OnboardingColumns = []string{ColAddress, ColUsername, ColPassword, ColSecret, ColDeviceType}

// DiscoveryColumns are required by the discovery run, which only talks to
// IOS devices.
var DiscoveryColumns = []string{ColAddress, ColUsername, ColPassword, ColSecret}

// Entry is one device of the list. Line is the 1-based CSV line.
type Entry struct {
	Line       int
	Address    string
	Username   string
	Password   string
	Secret     string
	DeviceType string
}

func (e Entry) String() string {
	if e.DeviceType == "" {
		return e.Address
	}
	return fmt.Sprintf("%s (%s)", e.Address, e.DeviceType)
}

// Rejected is a row that could not become an Entry.
type Rejected struct {
	Line   int
	Raw    []string
	Reason string
}

// List is a parsed device list. Len counts every data row, rejected or not.
type List struct {
	Entries  []Entry
	Rejected []Rejected
}

func (l *List) Len() int {
	return len(l.Entries) + len(l.Rejected)
}

var ErrEmpty = errors.New("device list is empty")

// Parse reads a device list. Columns are located by header name,
// case-insensitively. A header without the required names is treated as a
// plain title row and the required columns are taken positionally.
func Parse(r io.Reader, required []string) (*List, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read device list header: %w", err)
	}

	index := columnIndex(header, required)
	width := 0
	for _, i := range index {
		if i+1 > width {
			width = i + 1
		}
	}

	list := &List{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return list, fmt.Errorf("failed to read device list: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if blank(row) {
			continue
		}
		if len(row) < width {
			list.Rejected = append(list.Rejected, Rejected{
				Line:   line,
				Raw:    row,
				Reason: fmt.Sprintf("expected %d columns, found %d", width, len(row)),
			})
			continue
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		e := Entry{
			Line:       line,
			Address:    get(ColAddress),
			Username:   get(ColUsername),
			Password:   get(ColPassword),
			Secret:     get(ColSecret),
			DeviceType: strings.ToUpper(get(ColDeviceType)),
		}
		if e.Address == "" {
			list.Rejected = append(list.Rejected, Rejected{Line: line, Raw: row, Reason: "empty ip column"})
			continue
		}
		list.Entries = append(list.Entries, e)
	}
	if list.Len() == 0 {
		return list, ErrEmpty
	}
	return list, nil
}

func columnIndex(header, required []string) map[string]int {
	byName := map[string]int{}
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	index := map[string]int{}
	named := true
	for _, col := range required {
		i, ok := byName[col]
		if !ok {
			named = false
			break
		}
		index[col] = i
	}
	if named {
		return index
	}
	log.Warnf("Device list header %v does not name %v, using column order", header, required)
	index = map[string]int{}
	for i, col := range required {
		index[col] = i
	}
	return index
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Load parses the device list at path.
func Load(path string, required []string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open device list: %w", err)
	}
	defer f.Close()
	list, err := Parse(f, required)
	if err != nil {
		return list, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("Found %s. Found %d devices, %d rejected.", path, len(list.Entries), len(list.Rejected))
	return list, nil
}
