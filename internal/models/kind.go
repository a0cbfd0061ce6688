package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when a record kind or table name is not one of
// the supported kinds
var ErrUnknownKind = errors.New("unknown record kind")

// Kind identifies the type of record being synchronized
type Kind int

const (
	KindTeam Kind = iota + 1
	KindEvent
)

// AllKinds lists every supported kind in processing order
var AllKinds = []Kind{KindTeam, KindEvent}

// ParseKind converts a kind, index or table name into a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "team", "teams":
		return KindTeam, nil
	case "event", "events":
		return KindEvent, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// KindForTable resolves a destination table name to its kind
func KindForTable(table string) (Kind, error) {
	switch table {
	case "teams":
		return KindTeam, nil
	case "events":
		return KindEvent, nil
	default:
		return 0, fmt.Errorf("%w: no table %q", ErrUnknownKind, table)
	}
}

// String returns the singular name of the kind
func (k Kind) String() string {
	switch k {
	case KindTeam:
		return "team"
	case KindEvent:
		return "event"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Index returns the remote search index holding records of this kind
func (k Kind) Index() string {
	switch k {
	case KindTeam:
		return "teams"
	case KindEvent:
		return "events"
	default:
		return ""
	}
}

// Table returns the local table records of this kind are written to
func (k Kind) Table() string {
	switch k {
	case KindTeam:
		return "teams"
	case KindEvent:
		return "events"
	default:
		return ""
	}
}

// Valid reports whether k is one of the supported kinds
func (k Kind) Valid() bool {
	return k == KindTeam || k == KindEvent
}
