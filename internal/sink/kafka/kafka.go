// Package kafka publishes a report to a Kafka topic, one message per table.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

const (
	HeaderSchema = "schema"
	HeaderStatus = "status"
	HeaderRows   = "rows"
)

type Config struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Writer struct {
	cfg Config
	w   messageWriter
}

func New(cfg Config) (*Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	return &Writer{
		cfg: cfg,
		w: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

func (w *Writer) Name() string {
	return fmt.Sprintf("kafka:%s/%s", strings.Join(w.cfg.Brokers, ","), w.cfg.Topic)
}

// Write sends every extracted table keyed by its name, followed by one
// message per failed table carrying the failure.
func (w *Writer) Write(ctx context.Context, report *source.ExtractionReport) error {
	msgs, err := Messages(report)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish to %s: %w", w.cfg.Topic, err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.w.Close()
}

// Messages renders report into the messages Write publishes.
func Messages(report *source.ExtractionReport) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(report.Tables)+len(report.Failures))
	for _, t := range report.Tables {
		value, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("encode table %s: %w", t.Table, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(t.Table),
			Value: value,
			Headers: []kafka.Header{
				{Key: HeaderSchema, Value: []byte(report.Schema)},
				{Key: HeaderStatus, Value: []byte("ok")},
				{Key: HeaderRows, Value: []byte(strconv.Itoa(len(t.Data)))},
			},
		})
	}
	for _, f := range report.Failures {
		value, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("encode failure %s: %w", f.Table, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(f.Table),
			Value: value,
			Headers: []kafka.Header{
				{Key: HeaderSchema, Value: []byte(report.Schema)},
				{Key: HeaderStatus, Value: []byte("failed")},
			},
		})
	}
	return msgs, nil
}
