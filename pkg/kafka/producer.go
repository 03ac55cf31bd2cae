package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/logger"
)

var (
	errBrokersRequired = errors.New("kafka brokers are required")
	errTopicRequired   = errors.New("kafka topic is required")
	errNotInitialized  = errors.New("kafka producer not initialized")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes keyed messages synchronously so callers learn about broker acks.
type Producer struct {
	w       messageWriter
	prefix  string
	brokers []string
}

// NewProducer builds a kafka-go writer that routes by message topic and hashes keys
// so all events of one aggregate land on the same partition.
func NewProducer(ctx context.Context, cfg config.KafkaConfig, logg *logger.Logger) (*Producer, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errBrokersRequired
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: requiredAcks(cfg.RequiredAcks),
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if logg != nil {
		ctx = logg.WithField(ctx, "brokers", strings.Join(brokers, ","))
		logg.Info(ctx, "kafka producer initialized")
	}

	producer := newProducer(w, cfg.TopicPrefix)
	producer.brokers = brokers
	return producer, nil
}

func newProducer(w messageWriter, prefix string) *Producer {
	return &Producer{w: w, prefix: strings.TrimSpace(prefix)}
}

func requiredAcks(v int) kafka.RequiredAcks {
	switch v {
	case 0:
		return kafka.RequireNone
	case 1:
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

// Topic applies the configured prefix to a logical topic name.
func (p *Producer) Topic(name string) string {
	name = strings.TrimSpace(name)
	if p == nil || p.prefix == "" || name == "" {
		return name
	}
	return p.prefix + "." + name
}

// Publish writes one message and blocks until the broker acknowledges it.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	if p == nil || p.w == nil {
		return errNotInitialized
	}
	resolved := p.Topic(topic)
	if resolved == "" {
		return errTopicRequired
	}

	msg := kafka.Message{
		Topic: resolved,
		Key:   key,
		Value: value,
		Time:  time.Now().UTC(),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to kafka topic %q: %w", resolved, err)
	}
	return nil
}

// Ping dials the configured brokers until one answers.
func (p *Producer) Ping(ctx context.Context) error {
	if p == nil || len(p.brokers) == 0 {
		return errNotInitialized
	}
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		lastErr = err
	}
	return fmt.Errorf("dialing kafka brokers: %w", lastErr)
}

// Close flushes pending writes and closes broker connections.
func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}
