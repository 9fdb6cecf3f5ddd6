package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Analogium/PriceWatch/internal/constants"
	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher - часть rabbitmq_producer.Publisher, нужная адаптеру
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// PriceAlertPublisher передает уведомления о снижении цены в обменник уведомлений.
// Реализует port.PriceAlertPort.
type PriceAlertPublisher struct {
	producer   Publisher
	routingKey string
}

func NewPriceAlertPublisher(producer Publisher, routingKey string) (*PriceAlertPublisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		routingKey = constants.RoutingKeyPriceAlert
	}
	return &PriceAlertPublisher{producer: producer, routingKey: routingKey}, nil
}

func (a *PriceAlertPublisher) SendPriceAlert(ctx context.Context, alert domain.PriceAlert) error {
	adapterLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "PriceAlertPublisher",
		"routing_key": a.routingKey,
		"product_id":  alert.ProductID,
	})

	body, err := json.Marshal(toPriceAlertDTO(alert))
	if err != nil {
		return fmt.Errorf("rabbitmq adapter: failed to marshal price alert: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      make(amqp.Table),
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers[constants.HeaderTraceID] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.producer.Publish(publishCtx, a.routingKey, msg); err != nil {
		adapterLogger.Error("Failed to publish price alert", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish price alert for product %d: %w", alert.ProductID, err)
	}

	adapterLogger.Debug("Price alert published", nil)
	return nil
}
