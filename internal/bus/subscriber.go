// Package bus subscribes to the server's MQTT notifications and turns the
// processing-related ones into Events for the processing monitor.
package bus

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/fpang/mission-uploader/internal/panics"
)

const (
	// DefaultConnectTimeout bounds the initial broker handshake.
	DefaultConnectTimeout = 50 * time.Second

	// Client ids are "uploadProcClient-N" with N in [clientIDMin, clientIDMax).
	clientIDPrefix = "uploadProcClient-"
	clientIDMin    = 1
	clientIDMax    = 100000

	livenessTopic   = "uploader"
	livenessPayload = "connected"

	defaultBuffer = 256
	disconnectMs  = 250
)

// Options configure Connect.
type Options struct {
	// Broker is the broker URL, e.g. "wss://host/ws" or "tcp://host:1883".
	Broker string
	// Topic is the subscription filter, normally Session.Topic().
	Topic string
	// ClientID defaults to a random "uploadProcClient-N".
	ClientID       string
	ConnectTimeout time.Duration
	// Buffer is the capacity of the channel returned by Listen.
	Buffer int
}

// newClient is replaced in tests.
var newClient = mqtt.NewClient

// Subscriber owns the broker connection. Events are only delivered while a
// listener is registered with Listen; anything arriving before that is
// dropped.
type Subscriber struct {
	client mqtt.Client
	topic  string
	buffer int

	// sendMu is held by deliver while it hands an event over, so fail can
	// close the listener without racing the send.
	sendMu sync.Mutex

	mu       sync.Mutex
	listener chan Event
	stop     chan struct{}
	// err is the panic that ended delivery, if any.
	err error
}

// NewClientID returns a randomized client id so concurrent uploader runs do
// not kick each other off the broker.
func NewClientID() string {
	return fmt.Sprintf("%s%d", clientIDPrefix, clientIDMin+rand.IntN(clientIDMax-clientIDMin))
}

func newSubscriber(topic string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Subscriber{topic: topic, buffer: buffer}
}

// Connect dials the broker, subscribes to opts.Topic and publishes the
// uploader liveness message. Handshake failures are returned; errors after
// that are only logged and the client keeps reconnecting.
func Connect(ctx context.Context, opts Options) (*Subscriber, error) {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = NewClientID()
	}

	s := newSubscriber(opts.Topic, opts.Buffer)
	ready := make(chan struct{})
	var readyOnce sync.Once
	// setupErr is the outcome of the first subscription, published by
	// closing ready.
	var setupErr error

	mopts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			var err error
			defer func() {
				var pe *panics.Error
				if errors.As(err, &pe) {
					s.fail(err)
				}
				readyOnce.Do(func() {
					setupErr = err
					close(ready)
				})
			}()
			defer panics.Capture(&err)
			err = s.subscribe(c)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Str("broker", opts.Broker).Msg("Bus connection lost")
		}).
		SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
			log.Debug().Str("broker", opts.Broker).Msg("Reconnecting to bus")
		})

	s.client = newClient(mopts)
	log.Debug().Str("broker", opts.Broker).Str("clientId", clientID).Msg("Connecting to bus")

	tok := s.client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		s.client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect to bus %s: %w", opts.Broker, err)
	}

	select {
	case <-ready:
		if setupErr != nil {
			s.client.Disconnect(0)
			return nil, fmt.Errorf("connect to bus %s: %w", opts.Broker, setupErr)
		}
	case <-time.After(timeout):
		s.client.Disconnect(0)
		return nil, fmt.Errorf("connect to bus %s: timed out waiting for subscription", opts.Broker)
	case <-ctx.Done():
		s.client.Disconnect(0)
		return nil, ctx.Err()
	}

	log.Info().Str("broker", opts.Broker).Str("topic", opts.Topic).Msg("Connected to bus")
	return s, nil
}

// subscribe runs on every (re)connect since the session is clean.
func (s *Subscriber) subscribe(c mqtt.Client) error {
	tok := c.Subscribe(s.topic, 0, s.onMessage)
	tok.Wait()
	if err := tok.Error(); err != nil {
		log.Error().Err(err).Str("topic", s.topic).Msg("Bus subscribe failed")
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	c.Publish(livenessTopic, 0, false, livenessPayload)
	return nil
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var err error
	defer func() { s.fail(err) }()
	defer panics.Capture(&err)
	s.deliver(msg.Topic(), msg.Payload())
}

// fail records err and ends the current listener's stream. Later events
// are dropped.
func (s *Subscriber) fail(err error) {
	if err == nil {
		return
	}
	log.Error().Err(err).Msg("Bus handler failed")

	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	listener, stop := s.listener, s.stop
	s.listener, s.stop = nil, nil
	s.mu.Unlock()

	if listener == nil {
		return
	}
	close(stop)
	s.sendMu.Lock()
	close(listener)
	s.sendMu.Unlock()
}

// Err returns the failure that closed the event stream, or nil.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// deliver classifies one inbound message and hands it to the listener.
func (s *Subscriber) deliver(topic string, payload []byte) {
	ev, ok, err := Classify(topic, payload)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Malformed bus payload")
		return
	}
	if !ok {
		return
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	listener, stop := s.listener, s.stop
	s.mu.Unlock()

	if listener == nil {
		log.Debug().Str("topic", topic).Str("type", ev.Type).Msg("No listener, dropping bus event")
		return
	}
	select {
	case listener <- ev:
	case <-stop:
	}
}

// Listen registers the single consumer of processing events. The returned
// function unregisters it; events arriving afterwards are dropped. The
// channel is closed when a handler panics; Err then reports the panic.
func (s *Subscriber) Listen() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, s.buffer)
	if s.err != nil {
		close(ch)
		return ch, func() {}
	}
	if s.stop != nil {
		close(s.stop)
	}
	stop := make(chan struct{})
	s.listener, s.stop = ch, stop

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.stop == stop {
				close(stop)
				s.listener, s.stop = nil, nil
			}
		})
	}
}

// Close disconnects from the broker.
func (s *Subscriber) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(disconnectMs)
	}
}
