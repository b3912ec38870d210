package mq

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"workbench/pkg/contextx"
	"workbench/pkg/log"

	"github.com/streadway/amqp"
)

const dialInterval = 3 * time.Second

// RabbitQueue is the broker-backed work queue. The queue is durable and
// messages are published persistent, so queued sub-tasks survive a broker
// restart. Consumers ack manually after the database claim succeeds, which
// gives at-least-once delivery.
type RabbitQueue struct {
	url       string
	queueName string

	connMu  sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel

	deliveryMu sync.Mutex
	deliveries <-chan amqp.Delivery

	closed uint32
}

func NewRabbitQueue(connUrl, queueName string) (*RabbitQueue, error) {
	q := &RabbitQueue{
		url:       connUrl,
		queueName: queueName,
	}
	if err := q.ensureConnection(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *RabbitQueue) ensureConnection() error {
	q.connMu.Lock()
	defer q.connMu.Unlock()

	if q.conn != nil && !q.conn.IsClosed() && q.channel != nil {
		return nil
	}

	for {
		if q.IsClosed() {
			return errors.New("queue closed")
		}

		conn, err := amqp.Dial(q.url)
		if err != nil {
			log.Errorf(nil, "queue %s connect failed, error: %s", q.queueName, err.Error())
			time.Sleep(dialInterval)
			continue
		}

		channel, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			time.Sleep(dialInterval)
			continue
		}

		if _, err = channel.QueueDeclare(q.queueName, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return err
		}
		// hand one message at a time to each worker
		if err = channel.Qos(1, 0, false); err != nil {
			_ = conn.Close()
			return err
		}

		q.conn = conn
		q.channel = channel
		q.deliveries = nil
		log.Debugf(nil, "queue %s connected", q.queueName)
		return nil
	}
}

func (q *RabbitQueue) Push(ctx *contextx.Context, item *Item) error {
	body, err := json.Marshal(item)
	if err != nil {
		return err
	}

	if err := q.ensureConnection(); err != nil {
		return err
	}

	err = q.channel.Publish("", q.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		// one redial attempt before giving up
		if connErr := q.ensureConnection(); connErr != nil {
			return connErr
		}
		return q.channel.Publish("", q.queueName, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	}
	return nil
}

func (q *RabbitQueue) consumeChan() (<-chan amqp.Delivery, error) {
	q.deliveryMu.Lock()
	defer q.deliveryMu.Unlock()

	if q.deliveries != nil {
		return q.deliveries, nil
	}

	if err := q.ensureConnection(); err != nil {
		return nil, err
	}

	deliveries, err := q.channel.Consume(q.queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	q.deliveries = deliveries
	return deliveries, nil
}

func (q *RabbitQueue) Pop(ctx *contextx.Context, timeoutSeconds int) (*Item, error) {
	deliveries, err := q.consumeChan()
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(time.Duration(timeoutSeconds) * time.Second)
	defer timer.Stop()

	select {
	case delivery, ok := <-deliveries:
		if !ok {
			// channel dropped, force a reconnect on the next call
			q.deliveryMu.Lock()
			q.deliveries = nil
			q.deliveryMu.Unlock()
			return nil, errors.New("delivery channel closed")
		}

		item := &Item{}
		if err := json.Unmarshal(delivery.Body, item); err != nil {
			log.Warnf(ctx, "drop malformed queue message: %s", err.Error())
			_ = delivery.Nack(false, false)
			return nil, nil
		}
		// acked on parse: the scheduler's claim transition dedups duplicate
		// deliveries, and the liveness sweep requeues rows whose item was
		// acked but never claimed
		if err := delivery.Ack(false); err != nil {
			return nil, err
		}
		return item, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *RabbitQueue) Length() (int, error) {
	if err := q.ensureConnection(); err != nil {
		return 0, err
	}
	state, err := q.channel.QueueInspect(q.queueName)
	if err != nil {
		return 0, err
	}
	return state.Messages, nil
}

func (q *RabbitQueue) IsClosed() bool {
	return atomic.LoadUint32(&q.closed) == 1
}

func (q *RabbitQueue) Close() error {
	atomic.StoreUint32(&q.closed, 1)

	q.connMu.Lock()
	defer q.connMu.Unlock()
	if q.conn != nil && !q.conn.IsClosed() {
		return q.conn.Close()
	}
	return nil
}
