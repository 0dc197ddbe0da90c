package onboard

import (
	"strings"
	"time"

	"github.com/voiceops/uckit/scrape"
	"github.com/voiceops/uckit/ucdriver"
)

// Device families, as tagged in the device list.
const (
	Network = "NETWORK"
	CUCM    = "CUCM"
	CUC     = "CUC"
	IMP     = "IMP"
	CER     = "CER"
)

// Families lists every supported device-type tag.
var Families = []string{Network, CUCM, CUC, IMP, CER}

// Params are the site-wide settings pushed to every device.
type Params struct {
	LoggingServer string
	SNMPCommunity string
	AXLUsername   string
	ACGName       string
	// ACLName names the standard ACL guarding the SNMP community on
	// network devices. Defaults to AXLUsername.
	ACLName         string
	PAWSAccount     string
	PAWSPassword    string
	PAWSDescription string
}

// Vars returns the variables the sequences reference for one device.
func (p Params) Vars(host string) Vars {
	acl := p.ACLName
	if acl == "" {
		acl = p.AXLUsername
	}
	return Vars{
		"host":             host,
		"logging_server":   p.LoggingServer,
		"snmp_community":   p.SNMPCommunity,
		"axl_username":     p.AXLUsername,
		"acg_name":         p.ACGName,
		"acl_name":         acl,
		"paws_account":     p.PAWSAccount,
		"paws_password":    p.PAWSPassword,
		"paws_description": p.PAWSDescription,
	}
}

// Roles granted to the AXL service account's access control group.
var Roles = []struct{ Var, Name string }{
	{"serviceability_pkid", "Standard SERVICEABILITY Read Only"},
	{"axl_api_pkid", "Standard AXL API Access"},
	{"admin_users_pkid", "Standard CCM Admin Users"},
}

// snmpRestartTimeout covers the SNMP master agent restart after a change.
const snmpRestartTimeout = 3 * time.Minute

var networkConfig = []string{
	"snmp-server enable traps voice",
	"snmp-server enable traps isdn",
	"snmp-server enable traps dial",
	"snmp-server enable traps dsp",
	"logging trap errors",
	"ip access-list standard ${acl_name}",
	"permit host ${logging_server}",
	"snmp-server community ${snmp_community} RO ${acl_name}",
	"snmp-server host ${logging_server} version 2c ${snmp_community}",
	"logging host ${logging_server}",
}

// NetworkSequence configures traps, syslog and an ACL-restricted SNMP
// community on an IOS router or switch already in privileged mode.
func NetworkSequence() Sequence {
	steps := []Step{Send{Command: "configure terminal", Expect: ucdriver.ConfigPrompt}}
	var checks []Expectation
	for _, line := range networkConfig {
		sensitive := strings.Contains(line, "${snmp_community}")
		steps = append(steps, Send{Command: line, Expect: ucdriver.ConfigPrompt, Sensitive: sensitive})
		want := line
		if strings.HasPrefix(line, "permit host ") {
			// running-config drops the host keyword
			want = "permit ${logging_server}"
		}
		name := line
		if sensitive {
			name = strings.ReplaceAll(line, "${snmp_community}", masked)
		}
		checks = append(checks, Expectation{Name: name + " on network device", Want: []string{want}})
	}
	steps = append(steps,
		Send{Command: "end"},
		Verify{Command: "show running-config", Checks: checks, Timeout: 2 * ucdriver.DefaultTimeout, Sensitive: true},
		Send{Command: "write memory", Timeout: 2 * ucdriver.DefaultTimeout},
	)
	return Sequence{Family: Network, Steps: steps}
}

// snmpSteps adds a read-only v2c community limited to the logging server
// and verifies it. node names the appliance in check names.
func snmpSteps(node string) []Step {
	return []Step{
		Send{Command: "utils snmp config 1/2c community-string add", Expect: ucdriver.Regex(`(?i)community string:+\s*$`)},
		Send{Command: "${snmp_community}", Expect: ucdriver.QuestionPrompt, Sensitive: true},
		Send{Command: "ReadOnly", Expect: ucdriver.QuestionPrompt},
		Send{Command: "${logging_server}", Expect: ucdriver.QuestionPrompt},
		Send{Command: "yes", Timeout: snmpRestartTimeout},
		Verify{
			Command:   "utils snmp config 1/2c community-string list",
			Checks:    []Expectation{{Name: "community string on " + node, Want: []string{"${snmp_community}"}}},
			Sensitive: true,
		},
	}
}

// syslogSteps points RemoteSyslogServerName5 at the logging server.
func syslogSteps(node string) []Step {
	return []Step{
		Send{Command: "run sql update processconfig set paramvalue = '${logging_server}' where paramname = 'RemoteSyslogServerName5'"},
		Verify{
			Command: "run sql select paramvalue from processconfig where paramname = 'RemoteSyslogServerName5'",
			Checks:  []Expectation{{Name: "RemoteSyslogServerName5 on " + node, Want: []string{"${logging_server}"}}},
		},
	}
}

// pawsSteps creates the platform API account. extra holds the answers to
// the questions some releases ask between privilege level and password.
func pawsSteps(node string, extra ...Step) []Step {
	steps := []Step{
		Send{Command: "set account name ${paws_account}", Expect: ucdriver.Regex(`(?i)privilege level\s*:\s*$`)},
		Send{Command: "0", Expect: ucdriver.QuestionPrompt},
	}
	steps = append(steps, extra...)
	return append(steps,
		Send{Command: "${paws_password}", Expect: ucdriver.QuestionPrompt, Sensitive: true},
		Send{Command: "${paws_password}", Sensitive: true},
		Send{Command: "set password change-at-login disable ${paws_account}"},
		Verify{
			Command: "show account",
			Checks:  []Expectation{{Name: "PAWS API user account on " + node, Want: []string{"${paws_account}"}}},
		},
	)
}

func isPublisher(out string, vars Vars) bool {
	return scrape.IsPublisher(out, vars["host"])
}

func pkidPattern(name string) string {
	return `(?m)^\s*([0-9a-fA-F][0-9a-fA-F-]{7,})\s+` + name + `\s*$`
}

// CUCMSequence creates the AXL service account, its access control group
// and roles on the publisher, then sets SNMP on every node. The account
// password has to be set by hand afterwards.
func CUCMSequence() Sequence {
	publisher := []Step{
		Send{Command: "run sql insert into applicationuser (name) values ('${axl_username}')"},
		Capture{
			Command:  "run sql select pkid,name from applicationuser where name = '${axl_username}'",
			Pattern:  pkidPattern("${axl_username}"),
			Var:      "user_pkid",
			OnAbsent: SkipBlock,
		},
		Send{Command: "run sql insert into dirgroup (name) values ('${acg_name}')"},
		Capture{
			Command:  "run sql select pkid,name from dirgroup where name = '${acg_name}'",
			Pattern:  pkidPattern("${acg_name}"),
			Var:      "acg_pkid",
			OnAbsent: SkipBlock,
		},
	}
	var roleChecks []Expectation
	for _, role := range Roles {
		publisher = append(publisher, Capture{
			Command:  "run sql select pkid,name from functionrole where name = '" + role.Name + "'",
			Pattern:  pkidPattern(strings.ReplaceAll(role.Name, " ", `\s+`)),
			Var:      role.Var,
			OnAbsent: SkipBlock,
		})
		roleChecks = append(roleChecks, Expectation{
			Name: role.Name + " to ${acg_name}",
			Want: []string{"${" + role.Var + "}"},
		})
	}
	for _, role := range Roles {
		publisher = append(publisher, Send{
			Command: "run sql insert into functionroledirgroupmap (fkfunctionrole, fkdirgroup) values ('${" + role.Var + "}','${acg_pkid}')",
		})
	}
	publisher = append(publisher,
		Verify{
			Command: "run sql select fkfunctionrole,fkdirgroup from functionroledirgroupmap where fkdirgroup = '${acg_pkid}'",
			Checks:  roleChecks,
		},
		Send{Command: "run sql insert into applicationuserdirgroupmap (fkapplicationuser,fkdirgroup) values ('${user_pkid}','${acg_pkid}')"},
		Verify{
			Command: "run sql select fkapplicationuser,fkdirgroup from applicationuserdirgroupmap where fkapplicationuser = '${user_pkid}'",
			Checks: []Expectation{{
				Name: "association of ${axl_username} to ${acg_name} on CUCM",
				Want: []string{"${user_pkid}", "${acg_pkid}"},
			}},
		},
	)
	publisher = append(publisher, syslogSteps("CUCM")...)

	steps := []Step{When{Name: "CUCM publisher", Command: "show network cluster", Cond: isPublisher, Steps: publisher}}
	steps = append(steps, snmpSteps("CUCM node")...)
	return Sequence{Family: CUCM, Steps: steps}
}

// CUCSequence sets syslog on the publisher, then the PAWS account and SNMP
// on every node. Release 12.5 asks two more questions when creating an
// account.
func CUCSequence() Sequence {
	steps := []Step{
		Capture{
			Command:  "show status",
			Pattern:  `Product Ver\s*:\s*(\S+)`,
			Var:      "product_version",
			OnAbsent: Continue,
		},
		When{Name: "CUC publisher", Command: "show network cluster", Cond: isPublisher, Steps: syslogSteps("CUC publisher")},
	}
	steps = append(steps, pawsSteps("CUC node",
		When{
			Name: "12.5 account questions",
			Cond: func(_ string, vars Vars) bool { return strings.HasPrefix(vars["product_version"], "12.5") },
			Steps: []Step{
				Send{Command: "No", Expect: ucdriver.QuestionPrompt},
				Send{Command: "${paws_description}", Expect: ucdriver.QuestionPrompt},
			},
		},
	)...)
	steps = append(steps, snmpSteps("CUC node")...)
	return Sequence{Family: CUC, Steps: steps}
}

// IMPSequence creates the PAWS account and sets SNMP.
func IMPSequence() Sequence {
	steps := pawsSteps("IMP node")
	steps = append(steps, snmpSteps("IMP node")...)
	return Sequence{Family: IMP, Steps: steps}
}

// CERSequence sets SNMP.
func CERSequence() Sequence {
	return Sequence{Family: CER, Steps: snmpSteps("CER node")}
}

// SequenceFor returns the sequence for a device-type tag.
func SequenceFor(family string) (Sequence, bool) {
	switch strings.ToUpper(strings.TrimSpace(family)) {
	case Network:
		return NetworkSequence(), true
	case CUCM:
		return CUCMSequence(), true
	case CUC:
		return CUCSequence(), true
	case IMP:
		return IMPSequence(), true
	case CER:
		return CERSequence(), true
	}
	return Sequence{}, false
}
