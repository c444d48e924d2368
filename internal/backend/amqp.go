package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AMQP defaults
const (
	DefaultAMQPExchange     = "softdl.notifications"
	DefaultAMQPRequestQueue = "softdl.requests"

	// HeaderEvent overrides the routing key as the channel name when present
	HeaderEvent = "event"
)

// AMQPConfig configures the RabbitMQ transport
type AMQPConfig struct {
	URL          string
	Exchange     string // topic exchange the backend publishes notifications to
	RequestQueue string // queue the backend consumes commands from
}

// AMQP talks to a backend that sits behind RabbitMQ. Commands are published to
// a durable request queue; notifications arrive on a topic exchange whose
// routing keys are the channel names.
type AMQP struct {
	cfg    AMQPConfig
	conn   *amqp091.Connection
	logger zerolog.Logger

	pubMu sync.Mutex
	pubCh *amqp091.Channel
}

// DialAMQP connects and declares the exchange and request queue
func DialAMQP(cfg AMQPConfig, logger zerolog.Logger) (*AMQP, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultAMQPExchange
	}
	if cfg.RequestQueue == "" {
		cfg.RequestQueue = DefaultAMQPRequestQueue
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-delete
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	if _, err := ch.QueueDeclare(
		cfg.RequestQueue, // name
		true,             // durable
		false,            // auto-delete
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.RequestQueue, err)
	}

	logger.Info().Str("exchange", cfg.Exchange).Str("request_queue", cfg.RequestQueue).Msg("AMQP backend connected")

	return &AMQP{
		cfg:    cfg,
		conn:   conn,
		logger: logger,
		pubCh:  ch,
	}, nil
}

// RequestDownload publishes a download command; a failed publish is a rejection
func (a *AMQP) RequestDownload(ctx context.Context, req Request) error {
	if req.URL == "" {
		return fmt.Errorf("%w: empty url", ErrRejected)
	}
	if err := a.publish(ctx, command{Cmd: CommandDownload, DownloadID: req.DownloadID, URL: req.URL}); err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return nil
}

// CancelDownload publishes a cancel command
func (a *AMQP) CancelDownload(ctx context.Context, downloadID string) error {
	return a.publish(ctx, command{Cmd: CommandCancel, DownloadID: downloadID})
}

func (a *AMQP) publish(ctx context.Context, c command) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	a.pubMu.Lock()
	defer a.pubMu.Unlock()

	err = a.pubCh.PublishWithContext(
		ctx,
		"",                 // exchange (empty for direct queue)
		a.cfg.RequestQueue, // routing key (queue name)
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Type:         c.Cmd,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s command: %w", c.Cmd, err)
	}
	return nil
}

// Subscribe binds an exclusive queue to channels and streams its deliveries
func (a *AMQP) Subscribe(_ context.Context, channels ...string) (Subscription, error) {
	if len(channels) == 0 {
		channels = Channels
	}

	ch, err := a.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendExited, err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare subscription queue: %w", err)
	}

	for _, name := range channels {
		if err := ch.QueueBind(q.Name, name, a.cfg.Exchange, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume: %w", err)
	}

	closed := ch.NotifyClose(make(chan *amqp091.Error, 1))
	s := newStream(channels, func() { ch.Close() })

	go func() {
		for d := range deliveries {
			ev, ok := eventFromDelivery(d)
			if !ok {
				a.logger.Warn().Str("routing_key", d.RoutingKey).Msg("ignoring AMQP delivery without channel")
				continue
			}
			if !s.deliver(ev) {
				return
			}
		}

		var reason error = ErrBackendExited
		select {
		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				reason = fmt.Errorf("%w: %v", ErrBackendExited, amqpErr)
			}
		default:
		}
		s.finish(reason)
	}()

	return s, nil
}

// Close tears down the connection, ending every subscription
func (a *AMQP) Close() error {
	return a.conn.Close()
}

// eventFromDelivery maps a delivery to an Event, preferring the event header
func eventFromDelivery(d amqp091.Delivery) (Event, bool) {
	name := d.RoutingKey
	if v, ok := d.Headers[HeaderEvent].(string); ok && v != "" {
		name = v
	}
	if name == "" {
		return Event{}, false
	}

	payload := json.RawMessage(d.Body)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Event{Channel: name, Payload: payload}, true
}
