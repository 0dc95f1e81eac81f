package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	SubscriptionCreated       = "subscription.created"
	SubscriptionStatusChanged = "subscription.status_changed"
	SubscriptionPlanSwitched  = "subscription.plan_switched"
	SubscriptionPeriodUpdated = "subscription.period_updated"
)

// Event is the message published on every subscription state change.
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	SubscriptionID string    `json:"subscriptionId"`
	CompanyID      string    `json:"companyId"`
	FromStatus     string    `json:"fromStatus,omitempty"`
	ToStatus       string    `json:"toStatus,omitempty"`
	FromPlan       string    `json:"fromPlan,omitempty"`
	ToPlan         string    `json:"toPlan,omitempty"`
	ActorID        string    `json:"actorId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NopPublisher drops every event. Used when AMQP_URL is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Encode fills the ID and timestamp when missing and returns the JSON body.
func Encode(evt *Event) ([]byte, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if evt.Type == "" {
		return nil, fmt.Errorf("event type is required")
	}
	return json.Marshal(evt)
}

// ErrNotConnected is returned by Publish while the broker connection is
// down and being redialed.
var ErrNotConnected = errors.New("amqp: not connected")

const maxReconnectDelay = 30 * time.Second

type connection interface {
	Channel() (channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialConnection(url string) (connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

// AMQPPublisher publishes events on a durable topic exchange, using the
// event type as routing key. When the broker drops the connection or the
// channel it redials in the background; Publish fails with ErrNotConnected
// until the link is back.
type AMQPPublisher struct {
	url      string
	exchange string
	dial     func(url string) (connection, error)
	delay    time.Duration
	log      logrus.FieldLogger

	mu      sync.Mutex
	conn    connection
	channel channel
	closed  bool
	done    chan struct{}
}

func DialAMQP(url, exchange string, log logrus.FieldLogger) (*AMQPPublisher, error) {
	return dialPublisher(url, exchange, dialConnection, time.Second, log)
}

func dialPublisher(url, exchange string, dial func(string) (connection, error), delay time.Duration, log logrus.FieldLogger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		url:      url,
		exchange: exchange,
		dial:     dial,
		delay:    delay,
		log:      log.WithField("component", "amqp_publisher"),
		done:     make(chan struct{}),
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrNotConnected
	}

	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("exchange declare %q: %w", p.exchange, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		ch.Close()
		conn.Close()
		return ErrNotConnected
	}
	p.conn, p.channel = conn, ch

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chanClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go p.watch(connClosed, chanClosed)
	return nil
}

// watch waits for the connection or channel to close and redials with a
// growing delay until it succeeds or the publisher is closed.
func (p *AMQPPublisher) watch(connClosed, chanClosed <-chan *amqp.Error) {
	var reason *amqp.Error
	select {
	case <-p.done:
		return
	case reason = <-connClosed:
	case reason = <-chanClosed:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	conn := p.conn
	p.conn, p.channel = nil, nil
	p.mu.Unlock()
	if conn != nil {
		conn.Close()
	}

	log := p.log
	if reason != nil {
		log = log.WithField("reason", reason.Error())
	}
	log.Warn("amqp connection lost, reconnecting")

	for attempt := 1; ; attempt++ {
		wait := min(p.delay*time.Duration(attempt), maxReconnectDelay)
		select {
		case <-p.done:
			return
		case <-time.After(wait):
		}
		if err := p.connect(); err != nil {
			if errors.Is(err, ErrNotConnected) {
				return
			}
			p.log.WithError(err).WithField("attempt", attempt).Warn("amqp reconnect failed")
			continue
		}
		p.log.WithField("attempt", attempt).Info("amqp reconnected")
		return
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := Encode(&evt)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return ErrNotConnected
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, evt.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID,
		Timestamp:    evt.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

// Close stops reconnecting and closes the channel and connection. It is
// safe to call more than once.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	if p.conn == nil {
		return nil
	}
	conn, ch := p.conn, p.channel
	p.conn, p.channel = nil, nil
	if err := ch.Close(); err != nil {
		conn.Close()
		return err
	}
	return conn.Close()
}
