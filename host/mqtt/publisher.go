// Package mqtt publishes bus scan results to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"microi2c/host/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// milliseconds
	defaultDisconnectQuiesce = 250

	maxQoS = 2
)

// client is the part of pahomqtt.Client the publisher uses.
type client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// connectingClient adds the connect call used once by Connect.
type connectingClient interface {
	client
	Connect() pahomqtt.Token
}

// Publisher sends scan reports to <prefix>/<bus>/scan.
type Publisher struct {
	client client
	cfg    config.MQTTConfig
	logger *zap.Logger
}

// ScanReport is the JSON payload of one scan.
type ScanReport struct {
	Bus       string    `json:"bus"`
	Status    string    `json:"status"`
	Count     int       `json:"count"`
	Addresses []string  `json:"addresses"`
	Truncated bool      `json:"truncated,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewScanReport formats addresses as 0xNN strings. count may exceed
// len(addrs) when the scan found more devices than it could store.
func NewScanReport(bus, status string, count int, addrs []uint8, at time.Time) ScanReport {
	r := ScanReport{
		Bus:       bus,
		Status:    status,
		Count:     count,
		Addresses: make([]string, len(addrs)),
		Truncated: count > len(addrs),
		Timestamp: at.UTC(),
	}
	for i, a := range addrs {
		r.Addresses[i] = fmt.Sprintf("0x%02x", a)
	}
	return r
}

// ScanTopic returns the topic scan reports for bus are published to.
func ScanTopic(prefix, bus string) string {
	return prefix + "/" + bus + "/scan"
}

// Connect connects to the broker in cfg.
func Connect(cfg config.MQTTConfig, logger *zap.Logger) (*Publisher, error) {
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	return connect(pahomqtt.NewClient(opts), cfg, logger, defaultConnectTimeout)
}

// connect waits for c to connect. On failure the client is disconnected
// so it stops retrying in the background.
func connect(c connectingClient, cfg config.MQTTConfig, logger *zap.Logger, timeout time.Duration) (*Publisher, error) {
	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		c.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		c.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	logger.Debug("mqtt connected", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))

	return newPublisher(c, cfg, logger), nil
}

func newPublisher(c client, cfg config.MQTTConfig, logger *zap.Logger) *Publisher {
	return &Publisher{client: c, cfg: cfg, logger: logger}
}

// PublishScan publishes r to its bus's scan topic and returns the topic.
func (p *Publisher) PublishScan(r ScanReport) (string, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	topic := ScanTopic(p.cfg.TopicPrefix, r.Bus)
	return topic, p.publish(topic, payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	token := p.client.Publish(topic, byte(p.cfg.QoS), p.cfg.Retain, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	p.logger.Debug("published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(defaultDisconnectQuiesce)
	}
}
