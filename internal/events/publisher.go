package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Appointment lifecycle event types, also used as routing keys.
const (
	AppointmentCreated   = "appointment.created"
	AppointmentCompleted = "appointment.completed"
	AppointmentCancelled = "appointment.cancelled"
	AppointmentNoShow    = "appointment.no_show"
	AppointmentConfirmed = "appointment.confirmed"
)

// AppointmentEvent is the payload published after an appointment changes.
type AppointmentEvent struct {
	Type            string    `json:"type"`
	AppointmentID   string    `json:"appointmentId"`
	DoctorID        string    `json:"doctorId"`
	PatientID       string    `json:"patientId"`
	Status          string    `json:"status"`
	AppointmentDate time.Time `json:"appointmentDate"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// Publisher delivers appointment events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event AppointmentEvent) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AppointmentEvent) error { return nil }
func (NopPublisher) Close() error                                   { return nil }

// AMQPPublisher publishes events as persistent JSON messages to a topic exchange.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      *zap.Logger
	mu       sync.Mutex
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string, log *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	log.Info("events.amqp.connected", zap.String("exchange", exchange))
	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange, log: log}, nil
}

// Publish sends event with its type as routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, event AppointmentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	message := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Headers: amqp091.Table{
			"message_type": "JSON",
		},
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, p.exchange, event.Type, false, false, message); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close closes the channel and then the connection.
func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.log.Warn("events.amqp.channel_close_failed", zap.Error(err))
	}
	return p.conn.Close()
}

// Recorder keeps published events in memory. Tests use it to assert on what was sent.
type Recorder struct {
	mu     sync.Mutex
	events []AppointmentEvent
}

func (r *Recorder) Publish(_ context.Context, event AppointmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []AppointmentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AppointmentEvent, len(r.events))
	copy(out, r.events)
	return out
}
