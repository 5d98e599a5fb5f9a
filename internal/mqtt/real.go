package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Options configure a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Topic      string // prefix for the events and system topics
	BufferSize int    // messages kept while offline; 0 selects DefaultBufferSize
	Logger     *zap.SugaredLogger
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client      paho.Client
	eventsTopic string
	systemTopic string
	logger      *zap.SugaredLogger

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool // at least one successful connect so far
	online    bool // the buffer has been drained for the current connection
}

// NewRealPublisher creates a publisher and starts connecting in the
// background; it does not wait for the broker.
func NewRealPublisher(opts Options) *RealPublisher {
	p := newPublisher(opts)

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventShutdown,
		Reason:    "MQTT_DISCONNECT",
	})

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.systemTopic, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(clientOpts)
	p.client.Connect()
	p.logger.Infof("connecting to %s", opts.Broker)
	return p
}

func newPublisher(opts Options) *RealPublisher {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RealPublisher{
		eventsTopic: EventsTopic(opts.Topic),
		systemTopic: SystemTopic(opts.Topic),
		logger:      logger,
		buffer:      newRingBuffer(opts.BufferSize),
	}
}

func (p *RealPublisher) onConnect(client paho.Client) {
	p.mu.Lock()
	pending := p.buffer.drainAll()
	reconnect := p.connected
	p.connected = true
	p.online = true
	p.mu.Unlock()

	p.logger.Infof("connected, replaying %d buffered messages", len(pending))
	for _, msg := range pending {
		token := client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			p.logger.Warnf("replay to %s failed: %v", msg.topic, token.Error())
		}
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventReconnected})
		client.Publish(p.systemTopic, 1, false, payload)
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.online = false
	p.mu.Unlock()
	p.logger.Warnf("connection lost: %v", err)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	// Buffer until onConnect has drained, so nothing lands behind a drain
	// that already ran.
	p.mu.Lock()
	buffered := !p.online || !p.client.IsConnectionOpen()
	var dropped bool
	if buffered {
		dropped = p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
	}
	p.mu.Unlock()
	if buffered {
		if dropped {
			p.logger.Warnf("buffer full (%d messages), dropping oldest", p.buffer.capacity)
		}
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishTransition sends a state change to the events topic.
func (p *RealPublisher) PublishTransition(event TransitionEvent) error {
	payload, err := FormatTransitionPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(p.eventsTopic, 0, false, payload)
}

// PublishButton sends a button gesture to the events topic.
func (p *RealPublisher) PublishButton(event ButtonEvent) error {
	payload, err := FormatButtonPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(p.eventsTopic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the system topic.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(p.systemTopic, 1, event.Retained, payload)
}

// IsConnected reports whether the client currently has a live connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
