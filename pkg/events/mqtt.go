package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/linkhub/pkg/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
)

// ErrPublishFailed indicates the broker did not accept a message
var ErrPublishFailed = errors.New("mqtt publish failed")

// mqttClient is the part of the paho client the publisher uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher is a Sink publishing events as JSON under a topic prefix:
// <prefix>/jobs/<kind> and <prefix>/linking/<device>.
type MQTTPublisher struct {
	client mqttClient
	prefix string
	qos    byte
}

// ConnectMQTT connects to the configured broker.
func ConnectMQTT(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout after %v", cfg.Broker, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}

	log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")

	return newMQTTPublisher(client, cfg.TopicPrefix, byte(cfg.QoS)), nil
}

func newMQTTPublisher(client mqttClient, prefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: strings.TrimSuffix(prefix, "/"), qos: qos}
}

// Topic returns the topic evt is published on.
func (p *MQTTPublisher) Topic(evt Event) string {
	switch {
	case evt.Job != nil:
		return fmt.Sprintf("%s/jobs/%s", p.prefix, evt.Job.Kind)
	case evt.Linking != nil:
		return fmt.Sprintf("%s/linking/%s", p.prefix, evt.Linking.DeviceID)
	default:
		return fmt.Sprintf("%s/%s", p.prefix, evt.Type)
	}
}

func (p *MQTTPublisher) Publish(evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	token := p.client.Publish(p.Topic(evt), p.qos, false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(defaultDisconnectQuiesce)
}

var _ Sink = (*MQTTPublisher)(nil)
