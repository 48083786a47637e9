package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ShareDrop/config"
	"ShareDrop/internal/logger"
	"ShareDrop/internal/mq"
	"ShareDrop/utils"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MailJob is the queued notification for one outbound message.
type MailJob struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Attempt int      `json:"attempt"`
}

type dlqMessage struct {
	Job      MailJob   `json:"job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// RunMailWorker consumes mail jobs from RabbitMQ and delivers them over
// SMTP, retrying transient failures with increasing delays before dead
// lettering.
func RunMailWorker(ctx context.Context, cfg *config.Config) error {
	client, err := mq.Dial(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeclareTopology(); err != nil {
		return err
	}

	prefetch := cfg.RabbitMQPrefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := client.Channel.Consume(
		mq.QueueMail,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	concurrency := cfg.MailWorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	burst := cfg.MailBurst
	if burst <= 0 {
		burst = 1
	}
	var limiter *rate.Limiter
	if cfg.MailRate <= 0 {
		limiter = rate.NewLimiter(rate.Inf, burst)
	} else {
		limiter = rate.NewLimiter(rate.Limit(cfg.MailRate), burst)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("mail worker: delivery channel closed")
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				handleMailMessage(ctx, cfg, client, limiter, d)
			}(delivery)
		}
	}
}

func handleMailMessage(ctx context.Context, cfg *config.Config, client *mq.Client, limiter *rate.Limiter, delivery amqp.Delivery) {
	var job MailJob
	if err := json.Unmarshal(delivery.Body, &job); err != nil {
		logger.Warn("mail worker: invalid message", zap.Error(err))
		_ = delivery.Ack(false)
		return
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			_ = delivery.Nack(false, true)
			return
		}
	}

	if err := utils.SendMail(&cfg.SMTP, job.To, job.Subject, job.Body); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			_ = delivery.Nack(false, true)
			return
		}
		if err := scheduleRetry(ctx, cfg, client, job, err); err != nil {
			logger.Error("mail worker: retry schedule failed", zap.Error(err))
			_ = delivery.Nack(false, true)
			return
		}
	}

	_ = delivery.Ack(false)
}

func scheduleRetry(ctx context.Context, cfg *config.Config, client *mq.Client, job MailJob, sendErr error) error {
	maxRetry := cfg.MailRetryMax
	if maxRetry < 0 {
		maxRetry = 0
	}
	nextAttempt := job.Attempt + 1
	if maxRetry == 0 || nextAttempt > maxRetry {
		return deadLetter(ctx, client, job, sendErr)
	}

	delay := pickRetryDelay(nextAttempt, cfg.MailRetryDelays)
	logger.Warn("mail worker: delivery failed, scheduling retry",
		zap.Int("attempt", nextAttempt),
		zap.Duration("delay", delay),
		zap.Error(sendErr),
	)

	job.Attempt = nextAttempt
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return client.PublishRetry(ctx, body, delay)
}

func deadLetter(ctx context.Context, client *mq.Client, job MailJob, sendErr error) error {
	logger.Error("mail worker: delivery exhausted retries",
		zap.Strings("to", job.To),
		zap.Error(sendErr),
	)
	dlq := dlqMessage{
		Job:      job,
		Error:    sendErr.Error(),
		FailedAt: time.Now(),
	}
	body, err := json.Marshal(dlq)
	if err != nil {
		return err
	}
	return client.PublishDLQ(ctx, body)
}

func pickRetryDelay(attempt int, delays []time.Duration) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	index := attempt - 1
	if index < 0 {
		index = 0
	}
	if index >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[index]
}
