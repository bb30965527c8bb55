package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/nandanugg/geonotify/module/geofence/domain"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (f *fakeToken) Wait() bool                     { <-f.done; return true }
func (f *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (f *fakeToken) Done() <-chan struct{}          { return f.done }
func (f *fakeToken) Error() error                   { return f.err }

type fakeClient struct {
	paho.Client
	topic   string
	payload []byte
	token   paho.Token
}

func (f *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	f.topic = topic
	f.payload = payload.([]byte)
	return f.token
}

func TestPublishAlert_Success(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil)}
	pub := NewAlertPublisher(client, "device-1")

	def := domain.Definition{
		ID:           "g1",
		Radius:       100,
		Notification: &domain.Notification{Title: "Office", Text: "Welcome", Vibrate: []int{300, 100}},
	}
	ev := domain.NewTransitionEvent(def, domain.TransitionEnter, domain.AppBackground, time.Unix(1715003456, 0))
	alert, ok := domain.NewAlert(ev)
	if !ok {
		t.Fatal("expected alert")
	}

	if err := pub.PublishAlert(context.Background(), alert); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.topic != "/geonotify/device/device-1/alert" {
		t.Errorf("unexpected topic %s", client.topic)
	}

	var msg alertMessage
	if err := json.Unmarshal(client.payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Title != "Office" || msg.Text != "Welcome" {
		t.Errorf("unexpected alert %+v", msg)
	}
	if !msg.Vibrate {
		t.Error("expected vibrate")
	}

	var events []map[string]any
	if err := json.Unmarshal(msg.Event, &events); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if len(events) != 1 || events[0]["openedFromNotification"] != true {
		t.Errorf("unexpected event payload %s", msg.Event)
	}
}

func TestPublishAlert_TokenError(t *testing.T) {
	client := &fakeClient{token: newFakeToken(errors.New("not connected"))}
	pub := NewAlertPublisher(client, "device-1")

	ev := domain.NewTransitionEvent(domain.Definition{ID: "g1", Radius: 1}, domain.TransitionExit, domain.AppActive, time.Now())
	if err := pub.PublishAlert(context.Background(), domain.Alert{GeofenceID: "g1", Event: ev}); err == nil {
		t.Fatal("expected error")
	}
}
