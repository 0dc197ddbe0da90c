// Package mtputty turns a device list into an MTPutty server import file.
package mtputty

import (
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultOutput      = "import_this.xml"
	DefaultDisplayName = "Voice Gateways"
)

// Server is one row of the device list: name, ip, username, password.
type Server struct {
	Name     string
	Address  string
	Username string
	Password string
}

// CLParams is the PuTTY command line MTPutty starts the session with. The
// password itself is kept out of it.
func (s Server) CLParams() string {
	switch {
	case s.Username == "":
		return s.Address + " -ssh"
	case s.Password == "":
		return s.Address + " -ssh -l " + s.Username
	default:
		return s.Address + " -ssh -l " + s.Username + " -pw *****"
	}
}

// ReadServers reads name,ip,username,password rows. The first row is a
// header and is skipped; username and password may be absent.
func ReadServers(r io.Reader) ([]Server, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var servers []Server
	header := true
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read device list: %w", err)
		}
		if header {
			header = false
			continue
		}
		line, _ := reader.FieldPos(0)
		if len(row) < 2 || strings.TrimSpace(row[1]) == "" {
			log.Warnf("Skipping line %d: no ip column", line)
			continue
		}
		s := Server{Name: strings.TrimSpace(row[0]), Address: strings.TrimSpace(row[1])}
		if len(row) > 2 {
			s.Username = strings.TrimSpace(row[2])
		}
		if len(row) > 3 {
			s.Password = row[3]
		}
		servers = append(servers, s)
	}
	return servers, nil
}

type document struct {
	XMLName xml.Name `xml:"Servers"`
	Putty   struct {
		Node folder `xml:"Node"`
	} `xml:"Putty"`
}

type folder struct {
	Type        int      `xml:"Type,attr"`
	Expanded    int      `xml:"Expanded,attr"`
	DisplayName string   `xml:"DisplayName"`
	Nodes       []server `xml:"Node"`
}

type server struct {
	Type        int    `xml:"Type,attr"`
	ServerName  string `xml:"ServerName"`
	DisplayName string `xml:"DisplayName"`
	UserName    string `xml:"UserName"`
	Password    string `xml:"Password"`
	CLParams    string `xml:"CLParams"`
}

// Write renders servers as one expanded folder named displayName.
func Write(w io.Writer, displayName string, servers []Server) error {
	var doc document
	doc.Putty.Node = folder{Type: 0, Expanded: 1, DisplayName: displayName}
	for _, s := range servers {
		doc.Putty.Node.Nodes = append(doc.Putty.Node.Nodes, server{
			Type:        1,
			ServerName:  s.Address,
			DisplayName: fmt.Sprintf("%s (%s)", s.Name, s.Address),
			UserName:    s.Username,
			Password:    s.Password,
			CLParams:    s.CLParams(),
		})
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode server list: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Generate converts the device list at in to an import file at out and
// returns the number of servers written.
func Generate(in, out, displayName string) (int, error) {
	f, err := os.Open(in)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	servers, err := ReadServers(f)
	if err != nil {
		return 0, err
	}

	o, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	if err := Write(o, displayName, servers); err != nil {
		o.Close()
		return 0, err
	}
	if err := o.Close(); err != nil {
		return 0, err
	}
	log.Infof("Wrote %d servers to %s", len(servers), out)
	return len(servers), nil
}
