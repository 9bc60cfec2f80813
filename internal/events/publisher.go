// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"recitation-gateway/internal/models"
	"recitation-gateway/internal/observability/metrics"
	"recitation-gateway/internal/schema"
)

// Publisher publishes recitation events to separate Kafka topics.
type Publisher struct {
	writerCompleted *kafka.Writer
	writerScored    *kafka.Writer
	validator       *schema.Validator
	principal       string
	topicCompleted  string
	topicScored     string
	enabled         bool
	metrics         *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicCompleted string
	TopicScored    string
	Principal      string
	Enabled        bool
}

// New creates a new Kafka event publisher with separate topics for completed
// transcriptions and recitation scores.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics
	v := schema.New()

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			validator: v,
			enabled:   false,
			metrics:   m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			validator:      v,
			principal:      cfg.Principal,
			topicCompleted: cfg.TopicCompleted,
			topicScored:    cfg.TopicScored,
			enabled:        false,
			metrics:        m,
		}
	}

	// Custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerCompleted := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicCompleted,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerScored := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicScored,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicCompleted", cfg.TopicCompleted).
		Str("topicScored", cfg.TopicScored).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerCompleted: writerCompleted,
		writerScored:    writerScored,
		validator:       v,
		principal:       cfg.Principal,
		topicCompleted:  cfg.TopicCompleted,
		topicScored:     cfg.TopicScored,
		enabled:         true,
		metrics:         m,
	}
}

// PublishCompleted publishes a completed transcription event.
func (p *Publisher) PublishCompleted(ctx context.Context, ev models.TranscriptionCompleted) error {
	if err := p.validator.Validate(ev.EventType, ev); err != nil {
		log.Error().Err(err).Str("requestId", ev.RequestID).Msg("Invalid transcription event, not publishing")
		return err
	}
	return p.publish(ctx, p.writerCompleted, p.topicCompleted, ev.EventType, ev.RequestID, ev)
}

// PublishScored publishes a recitation score event.
func (p *Publisher) PublishScored(ctx context.Context, ev models.RecitationScored) error {
	if err := p.validator.Validate(ev.EventType, ev); err != nil {
		log.Error().Err(err).Str("requestId", ev.RequestID).Msg("Invalid score event, not publishing")
		return err
	}
	return p.publish(ctx, p.writerScored, p.topicScored, ev.EventType, ev.RequestID, ev)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerCompleted != nil {
		if e := p.writerCompleted.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing completed writer")
			err = e
		}
	}
	if p.writerScored != nil {
		if e := p.writerScored.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing scored writer")
			err = e
		}
	}
	return err
}
