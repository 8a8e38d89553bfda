package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/segmentio/kafka-go"

	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AnalysisHandler runs one queued analysis job
type AnalysisHandler func(ctx context.Context, job *models.AnalysisJob) error

// Consumer reads analysis jobs from the requests topic.
// Offsets are committed after the handler returns, whatever its outcome,
// so a job that fails deterministically is not redelivered forever.
type Consumer struct {
	reader messageReader
	topic  string
	log    *logger.Logger
}

// NewConsumer creates a group consumer on the configured requests topic
func NewConsumer(config *Config) (*Consumer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.Brokers) == 0 {
		return nil, errors.Configuration("kafka brokers are required")
	}
	if config.RequestsTopic == "" || config.GroupID == "" {
		return nil, errors.Configuration("kafka requests topic and group ID are required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  config.Brokers,
		GroupID:  config.GroupID,
		Topic:    config.RequestsTopic,
		MinBytes: config.MinBytes,
		MaxBytes: config.MaxBytes,
	})
	return newConsumer(reader, config.RequestsTopic), nil
}

func newConsumer(reader messageReader, topic string) *Consumer {
	return &Consumer{
		reader: reader,
		topic:  topic,
		log:    logger.GetLogger("kafka.consumer"),
	}
}

// Run consumes until ctx is cancelled or the reader fails
func (c *Consumer) Run(ctx context.Context, handle AnalysisHandler) error {
	c.log.Infof("Consuming analysis jobs from %s", c.topic)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				return nil
			}
			return errors.Wrapf(err, "failed to fetch from %s", c.topic)
		}

		c.handle(ctx, msg, handle)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Errorf("Failed to commit offset %d on partition %d: %v", msg.Offset, msg.Partition, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handle AnalysisHandler) {
	var job models.AnalysisJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		c.log.Warnf("Skipping malformed job at offset %d: %v", msg.Offset, err)
		return
	}
	if job.PortfolioID == "" {
		c.log.Warnf("Skipping job at offset %d without portfolio ID", msg.Offset)
		return
	}
	if err := c.run(ctx, &job, handle); err != nil {
		c.log.Errorf("Analysis job for portfolio %s at offset %d failed: %v", job.PortfolioID, msg.Offset, err)
	}
}

// run calls handle and turns a panic into an error so one bad job cannot
// stop the consumer
func (c *Consumer) run(ctx context.Context, job *models.AnalysisJob, handle AnalysisHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("analysis job panicked: %v", r)
		}
	}()
	return handle(ctx, job)
}

// Close closes the reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
