package domain

import "time"

// Location is a position fix reported by the monitored device.
type Location struct {
	Lat       float64   `json:"latitude"`
	Lon       float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}
