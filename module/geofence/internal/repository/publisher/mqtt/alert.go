package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/nandanugg/geonotify/module/geofence/domain"
	"github.com/nandanugg/geonotify/module/geofence/internal/repository/publisher"
)

var _ publisher.AlertPublisher = (*AlertPublisher)(nil)

func AlertTopic(deviceID string) string {
	return fmt.Sprintf("/geonotify/device/%s/alert", deviceID)
}

type alertMessage struct {
	GeofenceID string          `json:"geofence_id"`
	Title      string          `json:"title"`
	Text       string          `json:"text"`
	Vibrate    bool            `json:"vibrate"`
	Pattern    []int           `json:"vibrate_pattern,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Event      json.RawMessage `json:"event"`
}

// AlertPublisher hands alerts to the device's notification agent over MQTT.
type AlertPublisher struct {
	client paho.Client
	topic  string
}

func NewAlertPublisher(client paho.Client, deviceID string) *AlertPublisher {
	return &AlertPublisher{client: client, topic: AlertTopic(deviceID)}
}

func (p *AlertPublisher) PublishAlert(ctx context.Context, alert domain.Alert) error {
	event, err := domain.EncodeTransitions(alert.Event)
	if err != nil {
		return err
	}

	body, err := json.Marshal(alertMessage{
		GeofenceID: alert.GeofenceID,
		Title:      alert.Title,
		Text:       alert.Text,
		Vibrate:    alert.ShouldVibrate(),
		Pattern:    alert.Vibrate,
		Data:       alert.Data,
		Event:      event,
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, body)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
