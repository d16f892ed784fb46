package locator

import (
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// RecordHandler is called with the records decoded from one MQTT message.
// err is non-nil when the payload could not be decoded.
type RecordHandler func(topic string, records []RawRecord, err error)

// MQTTClient manages the broker connection and observation subscriptions.
type MQTTClient struct {
	client  mqtt.Client
	config  *Config
	handler RecordHandler

	mu          sync.RWMutex
	isConnected bool
}

// InitMQTT creates a client subscribed to the configured observation topics.
// If no broker is configured (MQTT_BROKER env var or mqtt.broker), MQTT is
// disabled and this returns nil, nil.
func InitMQTT(config *Config, handler RecordHandler) (*MQTTClient, error) {
	if config == nil {
		config = DefaultConfig()
	}

	broker := envOr("MQTT_BROKER", config.MQTT.Broker)
	if broker == "" {
		log.Println("[MQTT] disabled: MQTT_BROKER not set")
		return nil, nil
	}

	client := &MQTTClient{
		config:  config,
		handler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(envOr("MQTT_CLIENT_ID", config.MQTT.ClientID, "firesight"))

	if username := envOr("MQTT_USERNAME", config.MQTT.Username); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(envOr("MQTT_PASSWORD", config.MQTT.Password))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // keep subscriptions across reconnects
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		log.Println("[MQTT] reconnecting...")
	})

	client.client = mqtt.NewClient(opts)
	go client.connectWithRetry()

	return client, nil
}

// envOr returns the environment variable key if set, else the first
// non-empty fallback.
func envOr(key string, fallbacks ...string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	for _, f := range fallbacks {
		if f != "" {
			return f
		}
	}
	return ""
}

// connectWithRetry attempts to connect to the broker with exponential backoff.
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying in %v", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to every observation topic.
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	topics := c.config.Observations.Topics
	if len(topics) == 0 {
		topics = []string{DefaultObservationTopic}
	}

	for _, topic := range topics {
		token := client.Subscribe(topic, 0, c.createMessageHandler())
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("[MQTT] error subscribing to %s: %v", topic, token.Error())
			continue
		}
		log.Printf("[MQTT] subscribed to %s", topic)
	}
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// createMessageHandler decodes observation payloads and forwards them.
func (c *MQTTClient) createMessageHandler() mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		records, err := DecodeRecords(payload)
		if err != nil {
			log.Printf("[MQTT] error decoding observations on %s (%d bytes): %v", msg.Topic(), len(payload), err)
		}
		if c.handler != nil {
			c.handler(msg.Topic(), records, err)
		}
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient around a provided mqtt.Client.
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler RecordHandler) *MQTTClient {
	return &MQTTClient{
		client:  client,
		config:  config,
		handler: handler,
	}
}
