package axlproxy

import (
	"bytes"
	"encoding/xml"
	"errors"
	"net/url"
	"strings"
)

const soapEnvNS = "http://schemas.xmlsoap.org/soap/envelope/"

// ListPhoneCriteria are the listPhone search criteria a caller may pass, in
// envelope order.
var ListPhoneCriteria = []string{
	"name",
	"description",
	"protocol",
	"callingSearchSpaceName",
	"devicePoolName",
	"securityProfileName",
}

// phoneTags are returned for every phone.
var phoneTags = []string{
	"name",
	"description",
	"ownerUserName",
	"protocol",
	"callingSearchSpaceName",
	"devicePoolName",
	"securityProfileName",
}

var ErrNoCriteria = errors.New("at least one search criterion is required: " + strings.Join(ListPhoneCriteria, ", "))

// Criterion is one element of a search.
type Criterion struct {
	Name  string
	Value string
}

// CriteriaFrom picks the known listPhone criteria out of query, ignoring
// anything else.
func CriteriaFrom(query url.Values) ([]Criterion, error) {
	var criteria []Criterion
	for _, name := range ListPhoneCriteria {
		if v, ok := query[name]; ok && len(v) > 0 {
			criteria = append(criteria, Criterion{Name: name, Value: v[0]})
		}
	}
	if len(criteria) == 0 {
		return nil, ErrNoCriteria
	}
	return criteria, nil
}

// ListPhoneEnvelope builds a listPhone request for AXL schema version.
func ListPhoneEnvelope(version string, criteria []Criterion) []byte {
	var b bytes.Buffer
	open(&b, version)
	b.WriteString("<ns:listPhone><searchCriteria>")
	for _, c := range criteria {
		element(&b, c.Name, c.Value)
	}
	b.WriteString("</searchCriteria>")
	returnedTags(&b)
	b.WriteString("</ns:listPhone>")
	closeEnvelope(&b)
	return b.Bytes()
}

// GetPhoneEnvelope builds a getPhone request for the phone called name.
func GetPhoneEnvelope(version, name string) []byte {
	var b bytes.Buffer
	open(&b, version)
	b.WriteString("<ns:getPhone>")
	element(&b, "name", name)
	returnedTags(&b)
	b.WriteString("</ns:getPhone>")
	closeEnvelope(&b)
	return b.Bytes()
}

func open(b *bytes.Buffer, version string) {
	b.WriteString(`<soapenv:Envelope xmlns:soapenv="` + soapEnvNS + `" xmlns:ns="http://www.cisco.com/AXL/API/`)
	xml.EscapeText(b, []byte(version))
	b.WriteString(`"><soapenv:Header/><soapenv:Body>`)
}

func closeEnvelope(b *bytes.Buffer) {
	b.WriteString("</soapenv:Body></soapenv:Envelope>")
}

func returnedTags(b *bytes.Buffer) {
	b.WriteString("<returnedTags>")
	for _, t := range phoneTags {
		b.WriteString("<" + t + "/>")
	}
	b.WriteString("</returnedTags>")
}

func element(b *bytes.Buffer, name, value string) {
	b.WriteString("<" + name + ">")
	xml.EscapeText(b, []byte(value))
	b.WriteString("</" + name + ">")
}
