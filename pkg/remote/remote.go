// Package remote carries method invocations to the desktop host's
// automation socket. Everything above it (modeler, emc, report) talks to
// an Invoker; the concrete implementations are the framed TCP Conn here
// and the in-memory emulator in pkg/simhost.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// Host automation service names. The host routes each method by the
// target it is addressed to.
const (
	TargetDesktop      = "desktop"
	TargetProject      = "project"
	TargetEditor       = "editor"
	TargetInterference = "interference"
	TargetReport       = "report"
)

// Targets lists the host service names in routing order.
func Targets() []string {
	return []string{TargetDesktop, TargetProject, TargetEditor, TargetInterference, TargetReport}
}

// Invoker issues one remote method call against a host service and
// returns the decoded result arrays.
type Invoker interface {
	Invoke(ctx context.Context, target, method string, args *variant.Value) (*variant.Value, error)
}

// ErrNotConnected is returned for calls on a closed or never-dialed Conn.
var ErrNotConnected = errors.New("remote: not connected")

// CallError is a failure reported by the host for a well-formed call.
// Code is the host's short machine-readable tag, Reason its message.
type CallError struct {
	Target string
	Method string
	Code   string
	Reason string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("remote: %s.%s: %s: %s", e.Target, e.Method, e.Code, e.Reason)
}
