// Package transport wraps the MQTT client. The core pipeline consumes it
// through the Handler and Publisher interfaces and never touches the broker
// library directly.
package transport

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/factory-monitor/monitor-server/internal/config"
)

// Handler receives transport callbacks. OnMessage is invoked sequentially,
// one message at a time, in arrival order.
type Handler interface {
	OnConnected()
	OnConnectionLost(err error)
	OnMessage(topic string, payload []byte)
}

// Publisher publishes a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

const publishTimeout = 5 * time.Second

// Client is the MQTT connection used for both ingestion and responses.
type Client struct {
	client  mqtt.Client
	cfg     config.MQTTConfig
	handler Handler
}

// NewClient builds the client. Subscriptions are (re-)established on every
// successful connect, so a broker reconnect needs no extra handling.
func NewClient(cfg config.MQTTConfig, handler Handler) *Client {
	c := &Client{cfg: cfg, handler: handler}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.ClientIDPrefix, uuid.NewString()[:8]))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(cfg.ReconnectMinInterval)
	opts.SetMaxReconnectInterval(cfg.ReconnectMaxInterval)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetOrderMatters(true)

	// All subscriptions are registered without per-route callbacks, so
	// every inbound message flows through this single handler even when
	// the request topics overlap the device topic wildcard.
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		c.handler.OnMessage(msg.Topic(), msg.Payload())
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		c.subscribe(client)
		c.handler.OnConnected()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Error().Err(err).Msg("MQTT connection lost")
		c.handler.OnConnectionLost(err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect establishes the initial connection.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("connect to MQTT broker %s: timeout", c.cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to MQTT broker %s: %w", c.cfg.BrokerURL, err)
	}
	return nil
}

func (c *Client) subscribe(client mqtt.Client) {
	topics := []string{
		c.cfg.Topics.Root,
		c.cfg.Topics.QueryRequest,
		c.cfg.Topics.StatisticsRequest,
	}

	for _, topic := range topics {
		token := client.Subscribe(topic, c.cfg.QoS, nil)
		token.WaitTimeout(c.cfg.ConnectTimeout)
		if err := token.Error(); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe")
			continue
		}
		log.Info().Str("topic", topic).Msg("Subscribed")
	}
}

// Publish sends a payload at the configured QoS and waits for completion.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	return token.Error()
}

// Disconnect closes the connection, allowing in-flight work to finish.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}
