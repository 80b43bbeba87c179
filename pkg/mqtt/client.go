package mqtt

import (
	"fmt"
	"time"

	"facility-uptime-monitor/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type Config struct {
	Broker               string
	ClientID             string
	Username             string
	Password             string
	CleanSession         bool
	KeepAlive            int
	ConnectTimeout       int
	AutoReconnect        bool
	MaxReconnectInterval time.Duration
}

// DefaultConfig fills the connection knobs the service does not expose.
func DefaultConfig(broker, clientID, username, password string) *Config {
	return &Config{
		Broker:               broker,
		ClientID:             clientID,
		Username:             username,
		Password:             password,
		CleanSession:         true,
		KeepAlive:            30,
		ConnectTimeout:       10,
		AutoReconnect:        true,
		MaxReconnectInterval: time.Minute,
	}
}

type Client struct {
	client mqtt.Client
	config *Config
}

type MessageHandler func(topic string, payload []byte)

func NewClient(config *Config) *Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetCleanSession(config.CleanSession)
	opts.SetKeepAlive(time.Duration(config.KeepAlive) * time.Second)
	opts.SetConnectTimeout(time.Duration(config.ConnectTimeout) * time.Second)
	opts.SetAutoReconnect(config.AutoReconnect)
	opts.SetMaxReconnectInterval(config.MaxReconnectInterval)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Info("MQTT client connected", zap.String("broker", config.Broker))
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	opts.SetReconnectingHandler(func(c mqtt.Client, opts *mqtt.ClientOptions) {
		logger.Info("Reconnecting to MQTT broker")
	})

	client := mqtt.NewClient(opts)

	return &Client{
		client: client,
		config: config,
	}
}

// Connect establishes a connection to the MQTT broker
func (c *Client) Connect() error {
	logger.Info("Connecting to MQTT broker", zap.String("broker", c.config.Broker))

	token := c.client.Connect()
	token.Wait()

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return nil
}

// Subscribe subscribes to a topic with handler
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(client mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})

	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	logger.Info("Subscribed to MQTT topic", zap.String("topic", topic), zap.Uint8("qos", qos))
	return nil
}

func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	token.Wait()
	return token.Error()
}

// Disconnect waits up to 250ms for in-flight work before closing.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	logger.Info("Disconnected from MQTT broker")
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
