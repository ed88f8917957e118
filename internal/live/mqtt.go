package live

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ipnet/site-go/internal/config"
)

var defaultTopics = []string{
	"ipnet/+/status",
	"ipnet/+/metrics",
	"ipnet/network/topology",
	"ipnet/alerts/+",
}

const connectTimeout = 10 * time.Second

// StatusPersister writes broker-reported status flips through to a backing
// store so restarts keep the latest online state.
type StatusPersister interface {
	UpdateNodeStatus(ctx context.Context, nodeID string, online bool, lastSeen *time.Time) error
}

// MQTTSource bridges the broker's per-node status stream into the listener
// and mirrors every raw message to the websocket hub.
type MQTTSource struct {
	log      zerolog.Logger
	cfg      config.MQTTConfig
	listener *Listener
	hub      *Hub
	client   mqtt.Client
	persist  StatusPersister
}

func NewMQTTSource(log zerolog.Logger, cfg config.MQTTConfig, l *Listener, hub *Hub) *MQTTSource {
	return &MQTTSource{log: log, cfg: cfg, listener: l, hub: hub}
}

// PersistStatus enables write-through of status updates. Call before Connect.
func (s *MQTTSource) PersistStatus(p StatusPersister) {
	s.persist = p
}

// Connect dials the broker and subscribes to the site topics. The client id
// gets a random suffix so replicas of the site don't evict each other's
// sessions.
func (s *MQTTSource) Connect() error {
	scheme := "tcp"
	if s.cfg.UseTLS {
		scheme = "ssl"
	}
	broker := fmt.Sprintf("%s://%s:%d", scheme, s.cfg.BrokerHost, s.cfg.BrokerPort)
	clientID := fmt.Sprintf("%s-%s", s.cfg.ClientID, uuid.NewString()[:8])

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetKeepAlive(s.cfg.Keepalive).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	if s.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.log.Info().Str("broker", broker).Msg("connected to mqtt broker")
		for _, topic := range defaultTopics {
			if token := c.Subscribe(topic, 0, s.onMessage); token.Wait() && token.Error() != nil {
				s.log.Error().Err(token.Error()).Str("topic", topic).Msg("mqtt subscribe failed")
			}
		}
		s.hub.Broadcast("mqtt_status", map[string]any{"connected": true})
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.log.Warn().Err(err).Msg("mqtt connection lost")
		s.hub.Broadcast("mqtt_status", map[string]any{"connected": false})
	})

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

func (s *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()

	var payload any
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		payload = string(msg.Payload())
	}
	s.hub.Broadcast("mqtt_message", map[string]any{"topic": topic, "data": payload})

	if strings.HasSuffix(topic, "/status") {
		s.handleStatus(topic, msg.Payload())
	}
}

func (s *MQTTSource) handleStatus(topic string, payload []byte) {
	var status struct {
		NodeID   string     `json:"nodeId"`
		IsOnline *bool      `json:"isOnline"`
		LastSeen *time.Time `json:"lastSeen"`
	}
	if err := json.Unmarshal(payload, &status); err != nil {
		s.log.Warn().Err(err).Str("topic", topic).Msg("dropping unparseable status message")
		return
	}
	if status.NodeID == "" || status.IsOnline == nil {
		s.log.Warn().Str("topic", topic).Msg("dropping status message without node id or online flag")
		return
	}
	s.listener.SubmitStatus(status.NodeID, *status.IsOnline, status.LastSeen)

	if s.persist != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.persist.UpdateNodeStatus(ctx, status.NodeID, *status.IsOnline, status.LastSeen); err != nil {
			s.log.Error().Err(err).Str("node_id", status.NodeID).Msg("failed to persist status update")
		}
	}
}
