package subscriber

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/module/geofence/domain"
)

// LocationTopic is where the device reports position fixes.
func LocationTopic(deviceID string) string {
	return fmt.Sprintf("/geonotify/device/%s/location", deviceID)
}

// locationSink is the monitoring platform that turns fixes into region
// callbacks.
type locationSink interface {
	UpdateLocation(loc domain.Location)
}

type locationMessage struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

type LocationSubscriber struct {
	client   mqtt.Client
	deviceID string
	sink     locationSink
	logger   *zap.Logger

	mu   sync.Mutex
	last time.Time
}

func NewLocationSubscriber(client mqtt.Client, deviceID string, sink locationSink, logger *zap.Logger) *LocationSubscriber {
	return &LocationSubscriber{
		client:   client,
		deviceID: deviceID,
		sink:     sink,
		logger:   logger.Named("location_subscriber"),
	}
}

func (s *LocationSubscriber) Start() error {
	token := s.client.Subscribe(LocationTopic(s.deviceID), 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *LocationSubscriber) Stop() error {
	token := s.client.Unsubscribe(LocationTopic(s.deviceID))
	token.Wait()
	return token.Error()
}

func (s *LocationSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw locationMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		s.logger.Warn("invalid location message", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}

	if err := validateLocationMessage(&raw); err != nil {
		s.logger.Warn("location message rejected", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	if raw.DeviceID != s.deviceID {
		s.logger.Debug("location for another device ignored", zap.String("device_id", raw.DeviceID))
		return
	}

	loc := domain.Location{
		Lat:       raw.Latitude,
		Lon:       raw.Longitude,
		Timestamp: time.Unix(raw.Timestamp, 0),
	}

	// QoS 1 redelivers; an older fix must not undo a newer one.
	s.mu.Lock()
	if loc.Timestamp.Before(s.last) {
		s.mu.Unlock()
		s.logger.Debug("stale location dropped", zap.Time("timestamp", loc.Timestamp))
		return
	}
	s.last = loc.Timestamp
	s.mu.Unlock()

	s.sink.UpdateLocation(loc)
}

func validateLocationMessage(msg *locationMessage) error {
	if msg.DeviceID == "" {
		return fmt.Errorf("device_id: required")
	}
	if msg.Latitude < -90 || msg.Latitude > 90 {
		return fmt.Errorf("latitude: must be between -90 and 90")
	}
	if msg.Longitude < -180 || msg.Longitude > 180 {
		return fmt.Errorf("longitude: must be between -180 and 180")
	}
	if msg.Timestamp <= 0 {
		return fmt.Errorf("timestamp: must be positive")
	}
	return nil
}
