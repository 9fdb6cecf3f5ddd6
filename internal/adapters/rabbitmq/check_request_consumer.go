package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Analogium/PriceWatch/internal/constants"
	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	usecases_port "github.com/Analogium/PriceWatch/internal/core/port/usecases"
	"github.com/Analogium/PriceWatch/pkg/rabbitmq/rabbitmq_common"
	"github.com/Analogium/PriceWatch/pkg/rabbitmq/rabbitmq_consumer"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// CheckRequestConsumer принимает запросы на внеплановую проверку товара.
// Реализует port.EventListenerPort.
type CheckRequestConsumer struct {
	consumer *rabbitmq_consumer.DistributingConsumer
	handler  *checkRequestHandler
}

func NewCheckRequestConsumer(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	checkUC usecases_port.CheckProductPort,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*CheckRequestConsumer, error) {
	handler := &checkRequestHandler{checkUC: checkUC, logger: logger}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_distributing_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewDistributingConsumer(consumerCfg, handler.handle, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for check requests: %w", err)
	}
	return &CheckRequestConsumer{consumer: consumer, handler: handler}, nil
}

// CheckRequestConsumerConfig - топология очереди запросов проверки с ретраями
func CheckRequestConsumerConfig(url string, prefetch int) rabbitmq_consumer.ConsumerConfig {
	return rabbitmq_consumer.ConsumerConfig{
		Config:                 rabbitmq_common.Config{URL: url},
		QueueName:              constants.QueueProductCheckRequests,
		DeclareQueue:           true,
		DurableQueue:           true,
		ExchangeNameForBind:    constants.ExchangeScraper,
		DeclareExchangeForBind: true,
		ExchangeTypeForBind:    "topic",
		DurableExchangeForBind: true,
		RoutingKeyForBind:      constants.RoutingKeyProductCheck,
		PrefetchCount:          prefetch,
		ConsumerTag:            "pricewatch_check_requests",
		EnableRetryMechanism:   true,
		RetryExchange:          constants.CheckRequestsRetryExchange,
		RetryQueue:             constants.CheckRequestsRetryQueue,
		RetryTTL:               constants.CheckRequestsRetryTTLms,
		FinalDLXExchange:       constants.FinalDLXExchange,
		FinalDLQ:               constants.FinalDLQ,
		FinalDLQRoutingKey:     constants.FinalDLQRoutingKey,
		MaxRetries:             constants.CheckRequestsMaxRetries,
	}
}

func (a *CheckRequestConsumer) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

func (a *CheckRequestConsumer) Close() error {
	return a.consumer.Close()
}

type checkRequestHandler struct {
	checkUC usecases_port.CheckProductPort
	logger  port.LoggerPort
}

// handle возвращает ошибку только для повторяемых сбоев: битое сообщение
// и несуществующий товар подтверждаются и отбрасываются
func (h *checkRequestHandler) handle(ctx context.Context, d amqp.Delivery) error {
	traceID, ok := d.Headers[constants.HeaderTraceID].(string)
	if !ok || traceID == "" {
		traceID = uuid.NewString()
	}

	msgLogger := h.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"delivery_tag": d.DeliveryTag,
	})
	ctx = contextkeys.ContextWithLogger(ctx, msgLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	var req CheckRequestDTO
	if err := json.Unmarshal(d.Body, &req); err != nil {
		msgLogger.Error("Malformed check request, dropping", err, nil)
		return nil
	}
	if req.ProductID <= 0 {
		msgLogger.Warn("Check request without product id, dropping", nil)
		return nil
	}

	result, err := h.checkUC.Execute(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			msgLogger.Warn("Product from check request not found", port.Fields{"product_id": req.ProductID})
			return nil
		}
		return err
	}

	msgLogger.Info("Check request processed", port.Fields{"product_id": req.ProductID, "status": result.Status})
	return nil
}
