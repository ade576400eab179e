// Package events decouples the launcher core from any presentation layer.
// Lifecycle notifications go through a publish/subscribe bus; subscribers
// (CLI output, a future control panel) register without the core knowing.
package events

import (
	"time"

	"github.com/asaskevich/EventBus"
)

// Topics published by the launcher core.
const (
	TopicClientStarted = "client.started"
	TopicClientStopped = "client.stopped"
	TopicAuthRefreshed = "auth.refreshed"
)

// ClientStarted is the payload for TopicClientStarted.
type ClientStarted struct {
	PID       int
	VersionID string
	StartedAt time.Time
}

// ClientStopped is the payload for TopicClientStopped.
type ClientStopped struct {
	PID       int
	ExitCode  int
	StoppedAt time.Time
}

// AuthRefreshed is the payload for TopicAuthRefreshed.
type AuthRefreshed struct {
	PlayerName string
	UsedCache  bool
}

// Bus is the launcher's event channel.
type Bus struct {
	bus EventBus.Bus
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

// Publish sends a payload to every subscriber of topic.
func (b *Bus) Publish(topic string, payload interface{}) {
	b.bus.Publish(topic, payload)
}

// Subscribe registers fn for topic. fn's signature must accept the topic's
// payload type.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}
