// Package kafka relays outbox envelopes to a Kafka topic for the reporting subsystem.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"water-billing/internal/eventing"
	"water-billing/internal/observability/metrics"
)

// Config holds producer settings.
type Config struct {
	Brokers      []string
	Topic        string
	ClientID     string
	RequiredAcks string
	Compression  string
}

// Relay publishes envelopes delivered by the dispatcher to Kafka.
type Relay struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewProducer builds a sync producer from cfg.
func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka relay: no brokers")
	}
	saramaConfig := sarama.NewConfig()
	if cfg.ClientID != "" {
		saramaConfig.ClientID = cfg.ClientID
	}
	acks, err := parseRequiredAcks(cfg.RequiredAcks)
	if err != nil {
		return nil, err
	}
	saramaConfig.Producer.RequiredAcks = acks
	saramaConfig.Producer.Compression = parseCompression(cfg.Compression)
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("kafka relay: create producer: %w", err)
	}
	return producer, nil
}

// NewRelay constructs a relay over an existing producer.
func NewRelay(producer sarama.SyncProducer, topic string, logger *zap.Logger) (*Relay, error) {
	if producer == nil {
		return nil, errors.New("kafka relay: nil producer")
	}
	if topic == "" {
		return nil, errors.New("kafka relay: empty topic")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{producer: producer, topic: topic, logger: logger}, nil
}

// Handle is an eventing handler. It needs the envelope in ctx, which the
// dispatcher provides.
func (r *Relay) Handle(ctx context.Context, event any) error {
	env, ok := eventing.EnvelopeFromContext(ctx)
	if !ok {
		built, err := eventing.BuildEnvelope(event, eventing.MetaFromContext(ctx))
		if err != nil {
			return err
		}
		env = built
	}
	value, err := json.Marshal(env)
	if err != nil {
		metrics.IncKafkaRelay(metrics.ResultError)
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: r.topic,
		Key:   sarama.StringEncoder(env.ApartmentID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(env.EventType)},
			{Key: []byte("event_id"), Value: []byte(env.EventID)},
		},
	}
	partition, offset, err := r.producer.SendMessage(msg)
	if err != nil {
		metrics.IncKafkaRelay(metrics.ResultError)
		r.logger.Error("kafka relay send failed",
			zap.String("event_id", env.EventID),
			zap.String("event_type", env.EventType),
			zap.Error(err),
		)
		return err
	}
	metrics.IncKafkaRelay(metrics.ResultSuccess)
	r.logger.Debug("event relayed",
		zap.String("event_id", env.EventID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Attach subscribes the relay to each event type through the processed store.
func (r *Relay) Attach(bus eventing.Bus, store eventing.ProcessedStore, eventTypes ...string) {
	for _, eventType := range eventTypes {
		eventing.Subscribe(bus, eventType, "kafka-relay", r.Handle, store)
	}
}

// Close closes the producer.
func (r *Relay) Close() error {
	if r == nil || r.producer == nil {
		return nil
	}
	return r.producer.Close()
}

func parseRequiredAcks(v string) (sarama.RequiredAcks, error) {
	switch strings.ToLower(v) {
	case "none", "no_response":
		return sarama.NoResponse, nil
	case "leader", "local", "wait_for_local", "1":
		return sarama.WaitForLocal, nil
	case "", "all", "wait_for_all", "-1":
		return sarama.WaitForAll, nil
	default:
		return sarama.WaitForAll, fmt.Errorf("kafka relay: invalid required acks %q", v)
	}
}

func parseCompression(v string) sarama.CompressionCodec {
	switch strings.ToLower(v) {
	case "gzip":
		return sarama.CompressionGZIP
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}
