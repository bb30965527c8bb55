package domain

import "errors"

var (
	ErrValidation = errors.New("invalid geofence")
	ErrStorage    = errors.New("geofence storage failure")
	ErrNotFound   = errors.New("geofence not found")

	ErrMonitoringUnavailable = errors.New("region monitoring unavailable")
	ErrLocationDisabled      = errors.New("location services disabled")
	ErrPermissionDenied      = errors.New("location permission denied")
	ErrRegistrationFailed    = errors.New("region registration failed")
)
