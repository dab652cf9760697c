package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"askcampus/internal/model"
	"askcampus/internal/repository"
)

// AnalyticsPersistWorker drains the analytics queue into MySQL. Records are
// append-only; a failed insert is nacked without requeue so one poison
// message cannot wedge the stream.
type AnalyticsPersistWorker struct {
	conn      *amqp.Connection
	repo      *repository.QAAnalyticsRepository
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAnalyticsPersistWorker(conn *amqp.Connection, repo *repository.QAAnalyticsRepository, queueName string, logger *zap.Logger) *AnalyticsPersistWorker {
	return &AnalyticsPersistWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *AnalyticsPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var record model.QAAnalytics
				if err := json.Unmarshal(d.Body, &record); err != nil {
					w.logger.Error("decode analytics record failed", zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				if err := w.repo.Create(workerCtx, &record); err != nil {
					w.logger.Error("persist analytics record failed",
						zap.Uint("qa_id", record.QAID),
						zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *AnalyticsPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
