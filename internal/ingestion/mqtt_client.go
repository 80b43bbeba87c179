package ingestion

import (
	"errors"
	"fmt"
	"sync"

	"facility-uptime-monitor/internal/logger"
	pkgmqtt "facility-uptime-monitor/pkg/mqtt"

	"go.uber.org/zap"
)

// AggregationTrigger starts an uptime aggregation run without waiting for it.
type AggregationTrigger interface {
	Trigger(source string)
}

// MQTTIngestionConfig describes the topics and MQTT connection parameters.
type MQTTIngestionConfig struct {
	ClientConfig *pkgmqtt.Config
	StatusTopic  string
	TriggerTopic string
	QoS          byte
}

// Subscriber is the slice of the MQTT client the ingestion side uses.
type Subscriber interface {
	Connect() error
	Subscribe(topic string, qos byte, handler pkgmqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
	Disconnect()
	IsConnected() bool
}

// MQTTIngestionClient wires broker messages into the processor and the aggregation trigger.
type MQTTIngestionClient struct {
	cfg       *MQTTIngestionConfig
	client    Subscriber
	processor *Processor
	trigger   AggregationTrigger

	mu            sync.Mutex
	started       bool
	subscriptions []string
}

// NewMQTTIngestionClient builds a new MQTT client for ingestion. trigger may be nil.
func NewMQTTIngestionClient(cfg *MQTTIngestionConfig, processor *Processor, trigger AggregationTrigger) (*MQTTIngestionClient, error) {
	if cfg == nil || cfg.ClientConfig == nil {
		return nil, errors.New("mqtt ingestion config is not configured")
	}
	return newMQTTIngestionClient(cfg, pkgmqtt.NewClient(cfg.ClientConfig), processor, trigger)
}

func newMQTTIngestionClient(cfg *MQTTIngestionConfig, client Subscriber, processor *Processor, trigger AggregationTrigger) (*MQTTIngestionClient, error) {
	if processor == nil {
		return nil, errors.New("processor is required")
	}
	return &MQTTIngestionClient{
		cfg:       cfg,
		client:    client,
		processor: processor,
		trigger:   trigger,
	}, nil
}

// Start establishes the MQTT connection and subscribes to the topics.
func (c *MQTTIngestionClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	type subscription struct {
		topic   string
		handler pkgmqtt.MessageHandler
	}

	subs := []subscription{}
	if c.cfg.StatusTopic != "" {
		subs = append(subs, subscription{topic: c.cfg.StatusTopic, handler: c.handleStatusMessage})
	}
	if c.cfg.TriggerTopic != "" && c.trigger != nil {
		subs = append(subs, subscription{topic: c.cfg.TriggerTopic, handler: c.handleTriggerMessage})
	}
	if len(subs) == 0 {
		return errors.New("no MQTT topics configured for ingestion")
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	for _, sub := range subs {
		if err := c.client.Subscribe(sub.topic, c.cfg.QoS, sub.handler); err != nil {
			c.client.Disconnect()
			c.subscriptions = nil
			return fmt.Errorf("subscribe failed for topic %s: %w", sub.topic, err)
		}
		c.subscriptions = append(c.subscriptions, sub.topic)
	}

	c.started = true
	return nil
}

// Stop unsubscribes and disconnects from the broker.
func (c *MQTTIngestionClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}

	if len(c.subscriptions) > 0 {
		if err := c.client.Unsubscribe(c.subscriptions...); err != nil {
			logger.Warn("Failed to unsubscribe from MQTT topics", zap.Error(err))
		}
	}

	c.client.Disconnect()
	c.started = false
	c.subscriptions = nil
}

// Connected reports whether the client is started and the broker link is up.
func (c *MQTTIngestionClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started && c.client.IsConnected()
}

func (c *MQTTIngestionClient) handleStatusMessage(_ string, payload []byte) {
	c.processor.Submit(SourceMQTT, payload)
}

// The trigger payload is ignored.
func (c *MQTTIngestionClient) handleTriggerMessage(topic string, _ []byte) {
	logger.Info("Uptime calculation requested over MQTT", zap.String("topic", topic))
	c.trigger.Trigger(SourceMQTT)
}
