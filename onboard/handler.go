package onboard

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/voiceops/uckit/inventory"
	"github.com/voiceops/uckit/orchestrate"
	"github.com/voiceops/uckit/ucdriver"
)

// PrivilegedSession is a session that can be elevated to privileged mode.
type PrivilegedSession interface {
	ucdriver.Session
	Enable() error
}

// Handler onboards one device of any family.
type Handler struct {
	Params Params
	Runner *Runner
	// OpenNetwork opens IOS devices; OpenAppliance opens the UC appliances.
	OpenNetwork   func(ctx context.Context, t ucdriver.Target) (PrivilegedSession, error)
	OpenAppliance func(ctx context.Context, t ucdriver.Target) (ucdriver.Session, error)
}

// NewHandler wires the connectors into a Handler.
func NewHandler(p Params, runner *Runner, ios *ucdriver.Connector[*ucdriver.IOSDeviceConnection], vos *ucdriver.Connector[*ucdriver.VOSDeviceConnection]) *Handler {
	return &Handler{
		Params: p,
		Runner: runner,
		OpenNetwork: func(ctx context.Context, t ucdriver.Target) (PrivilegedSession, error) {
			s, err := ios.Connect(ctx, t)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		OpenAppliance: func(ctx context.Context, t ucdriver.Target) (ucdriver.Session, error) {
			s, err := vos.Connect(ctx, t)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}

func (h *Handler) Handle(ctx context.Context, e inventory.Entry) orchestrate.Result {
	seq, ok := SequenceFor(e.DeviceType)
	if !ok {
		return orchestrate.Result{Status: orchestrate.UnexpectedError, Detail: fmt.Sprintf("unknown device type %q", e.DeviceType)}
	}
	logger := log.WithFields(log.Fields{"host": e.Address, "device_type": seq.Family})
	logger.Infof("Connecting to %s device: %s", seq.Family, e.Address)

	target := ucdriver.Target{Host: e.Address, Username: e.Username, Password: e.Password, Secret: e.Secret}
	var session ucdriver.Session
	if seq.Family == Network {
		s, err := h.OpenNetwork(ctx, target)
		if err != nil {
			return connectorFailure(err)
		}
		defer s.Disconnect()
		if err := s.Enable(); err != nil {
			return connectorFailure(err)
		}
		session = s
	} else {
		s, err := h.OpenAppliance(ctx, target)
		if err != nil {
			return connectorFailure(err)
		}
		defer s.Disconnect()
		session = s
	}

	runner := Runner{}
	if h.Runner != nil {
		runner = *h.Runner
	}
	runner.Logger = logger
	out := runner.Run(session, seq, h.Params.Vars(e.Address))
	return ResultOf(out)
}

func connectorFailure(err error) orchestrate.Result {
	return orchestrate.Result{Status: orchestrate.ClassifyError(err), Detail: err.Error()}
}

// ResultOf reduces an Outcome to a report result.
func ResultOf(out Outcome) orchestrate.Result {
	passed := len(out.Checks) - len(out.Failed())
	summary := fmt.Sprintf("%d/%d checks passed", passed, len(out.Checks))
	if out.Err != nil {
		return orchestrate.Result{
			Status: orchestrate.ClassifyError(out.Err),
			Detail: out.Err.Error(),
			Fields: []string{summary},
		}
	}
	failed := out.Failed()
	if len(failed) == 0 {
		return orchestrate.Result{Status: orchestrate.Success, Fields: []string{summary}}
	}
	names := make([]string, len(failed))
	for i, c := range failed {
		names[i] = c.Name
	}
	return orchestrate.Result{
		Status: orchestrate.VerificationError,
		Detail: "failed to set " + strings.Join(names, "; "),
		Fields: []string{summary},
	}
}
