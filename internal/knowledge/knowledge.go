package knowledge

import (
	"fmt"
	"strings"
)

// Status describes what a message tells the receiver about one node.
type Status int

const (
	NotSent    Status = 0  // Not in the transmitted subset, or out of sync
	Known      Status = 1  // Transmitted and value known
	Unresolved Status = -1 // Transmitted but value unknown
)

// ParseStatus maps the integer encoding used in traces onto a Status.
func ParseStatus(v int) (Status, error) {
	switch Status(v) {
	case NotSent, Known, Unresolved:
		return Status(v), nil
	}
	return NotSent, fmt.Errorf("invalid status %d: must be -1, 0 or 1", v)
}

// Transmitted reports whether the node was part of the transmitted subset.
func (s Status) Transmitted() bool {
	return s != NotSent
}

func (s Status) String() string {
	switch s {
	case NotSent:
		return "not-sent"
	case Known:
		return "known"
	case Unresolved:
		return "unresolved"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// LinkType classifies a link over a run of epochs.
type LinkType int

const (
	Good LinkType = iota
	Bad
	Unknown
)

// ParseLinkType accepts G, B, U or the full names, case-insensitively.
func ParseLinkType(s string) (LinkType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "G", "GOOD":
		return Good, nil
	case "B", "BAD":
		return Bad, nil
	case "U", "UNKNOWN":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("invalid link type %q", s)
}

func (t LinkType) String() string {
	switch t {
	case Good:
		return "GOOD"
	case Bad:
		return "BAD"
	case Unknown:
		return "UNKNOWN"
	}
	return fmt.Sprintf("LinkType(%d)", int(t))
}

// Interval is the classification of a child-to-head link together with the
// epoch at which its current run began.
type Interval struct {
	Type  LinkType
	Begin int
}

// StartsAt reports whether the run begins at epoch.
func (iv Interval) StartsAt(epoch int) bool {
	return iv.Begin == epoch
}
