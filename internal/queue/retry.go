package queue

import (
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// Outcomes returned by HandleProcessingError.
const (
	OutcomeRetry   = "retry"
	OutcomeDLQ     = "dlq"
	OutcomeRequeue = "requeue"
)

// Retryable reports whether a failed message may succeed when redelivered.
// Configuration, validation, not found and extraction failures are final.
func Retryable(err error) bool {
	switch common.KindOf(err) {
	case common.KindConfiguration, common.KindValidation, common.KindNotFound, common.KindExtraction:
		return false
	}
	return true
}

func retries(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 0
}

// HandleProcessingError routes a failed delivery to the _retry queue, or to
// the _dlq queue once MaxRetries is reached or the error is final. If the
// publish itself fails the delivery is nacked with requeue.
func HandleProcessingError(ch Publisher, msg amqp091.Delivery, queueName string, procErr error) string {
	n := retries(msg.Headers)

	if n >= MaxRetries || !Retryable(procErr) {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName, "retries", n, "err", procErr)
		headers := amqp091.Table{}
		for k, v := range msg.Headers {
			headers[k] = v
		}
		if procErr != nil {
			headers["x-error"] = procErr.Error()
		}
		err := ch.Publish("", dlqName, false, false, amqp091.Publishing{
			ContentType:   msg.ContentType,
			CorrelationId: msg.CorrelationId,
			Body:          msg.Body,
			Headers:       headers,
		})
		if err != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", err)
			_ = msg.Nack(false, true)
			return OutcomeRequeue
		}
		_ = msg.Ack(false)
		return OutcomeDLQ
	}

	retryName := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(n + 1)

	err := ch.Publish("", retryName, false, false, amqp091.Publishing{
		ContentType:   msg.ContentType,
		CorrelationId: msg.CorrelationId,
		Body:          msg.Body,
		Headers:       headers,
	})
	if err != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", err)
		_ = msg.Nack(false, true)
		return OutcomeRequeue
	}
	_ = msg.Ack(false)
	return OutcomeRetry
}
