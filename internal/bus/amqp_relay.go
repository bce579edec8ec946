package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"messenger-core/internal/observability"
)

const (
	headerOrigin  = "x-origin-instance"
	headerTopic   = "x-topic"
	headerExclude = "x-exclude-conn"
	headerEvict   = "x-evict-user"
)

// AMQPRelay mirrors bus traffic between instances through a topic exchange.
type AMQPRelay struct {
	conn       *amqp.Connection
	pubCh      *amqp.Channel
	subCh      *amqp.Channel
	queue      string
	exchange   string
	instanceID string
	bus        *Bus
	log        logrus.FieldLogger

	pubMu     sync.Mutex
	closeOnce sync.Once
}

// NewAMQPRelay connects to the broker and binds an exclusive queue to every topic.
func NewAMQPRelay(url, exchange string, b *Bus, log logrus.FieldLogger) (*AMQPRelay, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial relay broker: %w", err)
	}

	r := &AMQPRelay{
		conn:       conn,
		exchange:   exchange,
		instanceID: uuid.NewString(),
		bus:        b,
	}
	r.log = log.WithFields(logrus.Fields{"exchange": exchange, "instance": r.instanceID})

	if err := r.setup(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return r, nil
}

func (r *AMQPRelay) setup() error {
	var err error
	if r.pubCh, err = r.conn.Channel(); err != nil {
		return fmt.Errorf("open publish channel: %w", err)
	}
	if r.subCh, err = r.conn.Channel(); err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	if err := r.pubCh.ExchangeDeclare(r.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := r.subCh.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := r.subCh.QueueBind(q.Name, "#", r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	r.queue = q.Name
	return nil
}

// InstanceID identifies this process on the exchange.
func (r *AMQPRelay) InstanceID() string {
	return r.instanceID
}

// Forward publishes a locally originated event for peer instances.
func (r *AMQPRelay) Forward(ctx context.Context, ev Event) error {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	err := r.pubCh.PublishWithContext(ctx, r.exchange, routingKey(ev.Topic), false, false, amqp.Publishing{
		ContentType: "application/json",
		Headers: amqp.Table{
			headerOrigin:  r.instanceID,
			headerTopic:   string(ev.Topic),
			headerExclude: ev.ExcludeConn,
			headerEvict:   ev.EvictUser,
		},
		Body: ev.Payload,
	})
	if err != nil {
		observability.IncAMQPPublishError()
		return fmt.Errorf("relay publish: %w", err)
	}
	observability.IncRelay("out")
	return nil
}

// Run consumes peer traffic until ctx is cancelled or the channel closes.
func (r *AMQPRelay) Run(ctx context.Context) error {
	deliveries, err := r.subCh.Consume(r.queue, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume relay queue: %w", err)
	}
	r.log.Info("relay consuming")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("relay delivery channel closed")
			}
			r.handle(d.Headers, d.Body)
		}
	}
}

func (r *AMQPRelay) handle(headers amqp.Table, body []byte) {
	if origin, _ := headers[headerOrigin].(string); origin == r.instanceID {
		return
	}
	raw, _ := headers[headerTopic].(string)
	topic, ok := ParseTopic(raw)
	if !ok {
		r.log.WithField("topic", raw).Warn("relay frame with bad topic")
		return
	}
	exclude, _ := headers[headerExclude].(string)
	evict, _ := headers[headerEvict].(string)
	observability.IncRelay("in")
	r.bus.DeliverLocal(Event{Topic: topic, Payload: body, ExcludeConn: exclude, EvictUser: evict})
}

// Close tears down both channels and the connection.
func (r *AMQPRelay) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.subCh != nil {
			_ = r.subCh.Close()
		}
		if r.pubCh != nil {
			_ = r.pubCh.Close()
		}
		err = r.conn.Close()
	})
	return err
}

// routingKey maps room:<id> to room.<id> for exchange bindings.
func routingKey(t Topic) string {
	return strings.Replace(string(t), ":", ".", 1)
}
