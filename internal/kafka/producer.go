package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/circuit"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// messageWriter is the part of *kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes completed analysis results keyed by run ID. Writes go
// through a circuit breaker so an unreachable cluster fails publishes fast.
type Producer struct {
	writer  messageWriter
	topic   string
	breaker *circuit.CircuitBreaker
	log     *logger.Logger
}

// NewProducer creates a producer writing to the configured results topic
func NewProducer(config *Config) (*Producer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.Brokers) == 0 {
		return nil, errors.Configuration("kafka brokers are required")
	}
	if config.ResultsTopic == "" {
		return nil, errors.Configuration("kafka results topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.ResultsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		Compression:  parseCompression(config.Compression),
		MaxAttempts:  config.MaxAttempts,
		WriteTimeout: config.WriteTimeout,
		BatchTimeout: config.BatchTimeout,
	}

	return newProducer(writer, config.ResultsTopic, circuit.Config{
		MaxFailures: config.BreakerFailures,
		Timeout:     config.BreakerTimeout,
	}), nil
}

func newProducer(writer messageWriter, topic string, breaker circuit.Config) *Producer {
	return &Producer{
		writer:  writer,
		topic:   topic,
		breaker: circuit.NewCircuitBreaker("kafka."+topic, breaker),
		log:     logger.GetLogger("kafka.producer"),
	}
}

// Name identifies the sink in metrics
func (p *Producer) Name() string {
	return "kafka"
}

// Publish writes one analysis result as JSON
func (p *Producer) Publish(ctx context.Context, result *models.AnalysisResult) error {
	if result == nil {
		return errors.InvalidArgument("cannot publish nil result")
	}
	return p.ProduceJSON(ctx, []byte(result.ID), result, []MessageHeader{
		{Key: "seed", Value: []byte(strconv.FormatUint(result.Seed, 10))},
	})
}

// ProduceJSON produces a JSON-serialized message to the topic
func (p *Producer) ProduceJSON(ctx context.Context, key []byte, value interface{}, headers []MessageHeader) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to serialize message to JSON")
	}

	headers = append(headers, MessageHeader{Key: "content-type", Value: []byte("application/json")})
	msg := kafka.Message{
		Key:     key,
		Value:   payload,
		Headers: toKafkaHeaders(headers),
		Time:    time.Now(),
	}

	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		p.log.Errorf("Failed to produce message to %s: %v", p.topic, err)
		return errors.Wrapf(err, "failed to produce message to %s", p.topic)
	}
	p.log.Debugf("Produced %d bytes to %s", len(payload), p.topic)
	return nil
}

// Close flushes pending messages and closes the writer
func (p *Producer) Close() error {
	p.log.Info("Closing producer")
	return p.writer.Close()
}
