package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config holds broker and topic settings shared by the producer and consumer
type Config struct {
	Brokers       []string
	ResultsTopic  string
	RequestsTopic string
	GroupID       string
	Compression   string
	RequiredAcks  int
	MaxAttempts   int
	WriteTimeout  time.Duration
	BatchTimeout  time.Duration
	MinBytes      int
	MaxBytes      int
	// BreakerFailures consecutive write failures open the producer's circuit
	// for BreakerTimeout
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// DefaultConfig returns the configuration used when fields are left empty
func DefaultConfig() *Config {
	return &Config{
		Brokers:       []string{"localhost:9092"},
		ResultsTopic:  "risk-analysis-results",
		RequestsTopic: "risk-analysis-requests",
		GroupID:       "portfolio-risk-engine",
		Compression:   "gzip",
		RequiredAcks:  -1,
		MaxAttempts:   3,
		WriteTimeout:  10 * time.Second,
		BatchTimeout:  50 * time.Millisecond,
		MinBytes:      1,
		MaxBytes:      10e6,

		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// ParseBrokers splits a comma-separated bootstrap list
func ParseBrokers(servers string) []string {
	var brokers []string
	for _, b := range strings.Split(servers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// MessageHeader represents a Kafka message header
type MessageHeader struct {
	Key   string
	Value []byte
}

func toKafkaHeaders(headers []MessageHeader) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafka.Header, len(headers))
	for i, h := range headers {
		out[i] = kafka.Header{Key: h.Key, Value: h.Value}
	}
	return out
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}
