package common

import "errors"

// ErrModulePaused is returned by Guard when a flow has been halted.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named protocol flow is currently halted.
type PauseView interface {
	IsPaused(flow string) bool
}

// Guard rejects the call when the supplied flow is paused. A nil view or
// empty flow name disables the check.
func Guard(p PauseView, flow string) error {
	if p == nil || flow == "" {
		return nil
	}
	if p.IsPaused(flow) {
		return ErrModulePaused
	}
	return nil
}

// FlowPauses is a static PauseView keyed by flow name.
type FlowPauses map[string]bool

// IsPaused implements the PauseView interface.
func (f FlowPauses) IsPaused(flow string) bool { return f[flow] }
