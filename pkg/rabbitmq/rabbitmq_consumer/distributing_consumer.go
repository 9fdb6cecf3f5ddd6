package rabbitmq_consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/Analogium/PriceWatch/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler обрабатывает одно сообщение. Решение об ack/nack принимает потребитель.
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// DistributingConsumer раздает сообщения обработчикам в отдельных горутинах,
// число одновременно работающих обработчиков ограничено MaxInFlight.
type DistributingConsumer struct {
	baseConsumer *baseConsumer
	handler      MessageHandler
	slots        chan struct{}
}

func NewDistributingConsumer(cfg ConsumerConfig, handler MessageHandler, connManager *rabbitmq_common.ConnectionManager) (*DistributingConsumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("distributing Consumer: message handler is required")
	}

	bc, err := newBaseConsumer(cfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("distributing Consumer: %w", err)
	}

	limit := cfg.MaxInFlight
	if limit <= 0 {
		limit = cfg.PrefetchCount
	}
	if limit <= 0 {
		limit = 1
	}

	return &DistributingConsumer{
		baseConsumer: bc,
		handler:      handler,
		slots:        make(chan struct{}, limit),
	}, nil
}

// StartConsuming блокируется до отмены контекста или закрытия соединения
func (c *DistributingConsumer) StartConsuming(ctx context.Context) error {
	bc := c.baseConsumer
	if bc.channel == nil || bc.connection == nil || bc.connection.IsClosed() {
		return fmt.Errorf("distributing Consumer: not connected")
	}

	msgs, err := bc.channel.Consume(
		bc.actualQueueName,
		bc.config.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("distributing Consumer %s: failed to register a consumer on queue '%s': %w", bc.config.ConsumerTag, bc.actualQueueName, err)
	}

	bc.Logger.Info("[*] Waiting for messages on queue", "queue_name", bc.actualQueueName)

	go c.dispatch(ctx, msgs)

	notifyClose := make(chan *amqp.Error, 1)
	bc.connection.NotifyClose(notifyClose)

	select {
	case <-ctx.Done():
		bc.Logger.Info("Context cancelled. Shutting down consumer.", "consumer_tag", bc.config.ConsumerTag)
		return nil
	case amqpErr := <-notifyClose:
		if amqpErr == nil {
			return nil
		}
		bc.Logger.Error(amqpErr, "Connection closed for consumer.", "consumer_tag", bc.config.ConsumerTag)
		return amqpErr
	}
}

func (c *DistributingConsumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery) {
	bc := c.baseConsumer
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				bc.Logger.Info("Deliveries channel closed by RabbitMQ", "consumer_tag", bc.config.ConsumerTag)
				return
			}

			select {
			case c.slots <- struct{}{}:
			case <-ctx.Done():
				// Сообщение вернется в очередь брокером после закрытия канала
				_ = d.Nack(false, true)
				return
			}

			bc.wg.Add(1)
			go func(delivery amqp.Delivery) {
				defer bc.wg.Done()
				defer func() { <-c.slots }()
				c.process(ctx, delivery)
			}(d)
		}
	}
}

func (c *DistributingConsumer) process(ctx context.Context, delivery amqp.Delivery) {
	bc := c.baseConsumer

	processErr := c.handler(ctx, delivery)
	if processErr == nil {
		_ = delivery.Ack(false)
		bc.Logger.Debug("[+] Message Ack'd", "delivery_tag", delivery.DeliveryTag)
		return
	}

	bc.Logger.Error(processErr, "Handler error for message", "delivery_tag", delivery.DeliveryTag)

	if !bc.config.EnableRetryMechanism {
		_ = delivery.Nack(false, false)
		return
	}

	deathCount := DeathCount(delivery.Headers, bc.actualQueueName)
	if deathCount < int64(bc.config.MaxRetries) {
		bc.Logger.Info("Retrying message", "delivery_tag", delivery.DeliveryTag, "death_count", deathCount)
		_ = delivery.Nack(false, false)
		return
	}

	bc.Logger.Info("Max retries reached for message. Publishing to final DLX.", "delivery_tag", delivery.DeliveryTag)
	pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := bc.finalDlxPublisher.Publish(pubCtx, bc.config.FinalDLQRoutingKey, amqp.Publishing{
		ContentType:  delivery.ContentType,
		Body:         delivery.Body,
		Headers:      delivery.Headers,
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		bc.Logger.Error(err, "Failed to publish to final DLX", "delivery_tag", delivery.DeliveryTag)
		_ = delivery.Nack(false, false)
		return
	}
	_ = delivery.Ack(false)
}

func (c *DistributingConsumer) Close() error {
	c.baseConsumer.Logger.Info("Closing consumer")
	return c.baseConsumer.Close()
}
