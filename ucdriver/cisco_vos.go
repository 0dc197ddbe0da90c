package ucdriver

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// VOSPrompt is the administration console prompt of the UC appliances
// (call manager, voicemail, presence, emergency responder).
const VOSPrompt = "admin:"

// VOSDeviceConnection drives the text administration console of a Cisco
// UC appliance. The console is only reachable over SSH.
type VOSDeviceConnection struct {
	DeviceConnection
	DeviceType string
}

func NewVOSDeviceConnection(connection Transport) *VOSDeviceConnection {
	return &VOSDeviceConnection{
		DeviceConnection: DeviceConnection{
			Connection: connection,
			Return:     "\n",
			Timeout:    DefaultTimeout,
		},
		DeviceType: "cisco_vos",
	}
}

// InitVOSDevice initializes a new admin console connection
func InitVOSDevice(host, username, password string, port int) (*VOSDeviceConnection, error) {
	connection, err := InitTransport(host, username, password, ProtocolSSH, port)
	if err != nil {
		return nil, err
	}
	return NewVOSDeviceConnection(connection), nil
}

// Connect opens the console and waits for the first prompt. The appliances
// print a long banner and can take most of a minute to get there.
func (vos *VOSDeviceConnection) Connect() error {
	if err := vos.DeviceConnection.Connect(); err != nil {
		return err
	}
	if _, err := vos.Expect(Literal(VOSPrompt), vos.Timeout); err != nil {
		vos.DeviceConnection.Disconnect()
		return &TransportError{Addr: vos.Address(), Protocol: ProtocolSSH, Err: err}
	}
	log.Infof("Admin console ready on %s", vos.Address())
	return nil
}

func (vos *VOSDeviceConnection) PromptPattern() Pattern {
	return Literal(VOSPrompt)
}

func (vos *VOSDeviceConnection) SendCommand(cmd string) (string, error) {
	return vos.Exec(cmd, Literal(VOSPrompt), 0)
}

func (vos *VOSDeviceConnection) SendCommandTimeout(cmd string, timeout time.Duration) (string, error) {
	return vos.Exec(cmd, Literal(VOSPrompt), timeout)
}

func (vos *VOSDeviceConnection) Disconnect() {
	if vos.chunks != nil && vos.readErr == nil {
		vos.Connection.Write("exit" + vos.Return)
	}
	vos.DeviceConnection.Disconnect()
}
