package domain

import (
	"fmt"
	"strings"
)

// AppState is the host application's lifecycle state at callback time.
type AppState int32

const (
	AppActive AppState = iota
	AppInactive
	AppBackground
)

func (s AppState) String() string {
	switch s {
	case AppActive:
		return "active"
	case AppInactive:
		return "inactive"
	case AppBackground:
		return "background"
	default:
		return fmt.Sprintf("AppState(%d)", int32(s))
	}
}

func (s AppState) Foreground() bool {
	return s == AppActive
}

func ParseAppState(s string) (AppState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return AppActive, nil
	case "inactive":
		return AppInactive, nil
	case "background":
		return AppBackground, nil
	}
	return 0, fmt.Errorf("unknown app state %q", s)
}
