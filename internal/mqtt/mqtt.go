// Package mqtt pushes control messages to the screen over the device's
// command topic.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

type MessageType string

const (
	MessageModeChange MessageType = "MODE_CHANGE"
	MessageReload     MessageType = "RELOAD"
	MessageStatus     MessageType = "STATUS"
)

const publishTimeout = 5 * time.Second

type Status struct {
	FromCache           bool `json:"from_cache"`
	IsStale             bool `json:"is_stale"`
	Overlay             bool `json:"overlay"`
	ConsecutiveFailures int  `json:"consecutive_failures"`
}

type Message struct {
	Type      MessageType `json:"type"`
	DeviceID  string      `json:"device_id"`
	SessionID string      `json:"session_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Mode      string      `json:"mode,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Status    *Status     `json:"status,omitempty"`
}

// publisher is the subset of paho.Client the Publisher needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// MQTT message handler for unexpected inbound messages
var messagePubHandler paho.MessageHandler = func(client paho.Client, msg paho.Message) {
	log.Debug().Str("topic", msg.Topic()).Bytes("payload", msg.Payload()).Msg("received mqtt message")
}

var connectHandler paho.OnConnectHandler = func(client paho.Client) {
	log.Info().Msg("connected to mqtt broker")
}

var connectLostHandler paho.ConnectionLostHandler = func(client paho.Client, err error) {
	log.Warn().Err(err).Msg("mqtt connection lost")
}

// Connect opens a client to brokerURL. The client reconnects on its own
// after the first successful connect.
func Connect(brokerURL, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetDefaultPublishHandler(messagePubHandler)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	log.Info().Str("broker", brokerURL).Str("client_id", clientID).Msg("mqtt client initialized")
	return client, nil
}

func Topic(deviceID string) string {
	return fmt.Sprintf("tv/%s/commands", deviceID)
}

// Publisher sends messages for one device. A Publisher without a client
// drops everything, which is how MQTT is switched off.
type Publisher struct {
	client    publisher
	deviceID  string
	sessionID string
	now       func() time.Time
}

func NewPublisher(client publisher, deviceID, sessionID string) *Publisher {
	return &Publisher{client: client, deviceID: deviceID, sessionID: sessionID, now: time.Now}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil
}

func (p *Publisher) ModeChange(mode string) error {
	return p.Send(Message{Type: MessageModeChange, Mode: mode})
}

func (p *Publisher) Reload(reason string) error {
	return p.Send(Message{Type: MessageReload, Reason: reason})
}

func (p *Publisher) Status(s Status) error {
	return p.Send(Message{Type: MessageStatus, Status: &s})
}

// Send fills in the device fields and publishes msg with QoS 1.
func (p *Publisher) Send(msg Message) error {
	if !p.Enabled() {
		return nil
	}
	msg.DeviceID = p.deviceID
	msg.SessionID = p.sessionID
	msg.Timestamp = p.now().Unix()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}

	token := p.client.Publish(Topic(p.deviceID), 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("mqtt publish timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to send %s to device %s: %w", msg.Type, p.deviceID, err)
	}
	return nil
}

// Close disconnects the underlying client when it is a full paho client.
func (p *Publisher) Close() {
	if !p.Enabled() {
		return
	}
	if c, ok := p.client.(paho.Client); ok {
		c.Disconnect(250)
		log.Info().Msg("mqtt client disconnected")
	}
}
