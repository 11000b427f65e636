package alerts

import (
	"strconv"
	"strings"
)

type Mode int

const (
	ModeAggregate Mode = iota
	ModeSubscription
	ModeGrouped
)

func (m Mode) String() string {
	switch m {
	case ModeSubscription:
		return "subscription"
	case ModeGrouped:
		return "grouped"
	default:
		return "aggregate"
	}
}

// ResolveMode picks the query mode. With strict set, asking for both a
// subscription feed and a grouped series is an error; otherwise the
// subscription feed wins.
func ResolveMode(forSubscription, group, strict bool) (Mode, error) {
	switch {
	case forSubscription && group && strict:
		return ModeAggregate, ErrConflictingModes
	case forSubscription:
		return ModeSubscription, nil
	case group:
		return ModeGrouped, nil
	default:
		return ModeAggregate, nil
	}
}

// ParseFlag reads a query flag. Boolean spellings are honored; any other
// non-empty value counts as set.
func ParseFlag(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return true
}
