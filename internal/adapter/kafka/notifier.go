package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/iran-stats-etl/internal/config"
	"github.com/couchcryptid/iran-stats-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// TopicUpdated announces that a topic was merged into the statistics document.
type TopicUpdated struct {
	Topic          string    `json:"topic"`
	DetailsKey     string    `json:"details_key"`
	StatisticsPath string    `json:"statistics_path"`
	YearlyAverage  *int      `json:"yearly_average"`
	LatestYear     int       `json:"latest_year,omitempty"`
	Countries      int       `json:"countries"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Notifier produces one TopicUpdated message per merged topic.
// It implements pipeline.Publisher.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured notification topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// Publish writes all notifications in a single WriteMessages call. The hash
// balancer keeps every update of a topic on the same partition.
func (n *Notifier) Publish(ctx context.Context, records []domain.TopicRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := domain.Now()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(newTopicUpdated(records[i], now))
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := n.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write topic updates: %w", err)
	}
	n.logger.Info("topic updates published", "topic", n.writer.Topic, "messages", len(msgs))
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

func newTopicUpdated(rec domain.TopicRecord, now time.Time) TopicUpdated {
	u := TopicUpdated{
		Topic:          rec.Spec.Label,
		DetailsKey:     rec.Spec.DetailsKey,
		StatisticsPath: rec.Spec.StatisticsPath,
		YearlyAverage:  rec.Summary.YearlyAverage,
		UpdatedAt:      now,
	}
	if n := len(rec.Local.Years); n > 0 {
		u.LatestYear = rec.Local.Years[n-1]
	}
	if rec.World != nil {
		u.Countries = len(rec.World.Countries)
	}
	return u
}

// serializeToMessage marshals a TopicUpdated into a Kafka message keyed by details key.
func serializeToMessage(update TopicUpdated) (kafkago.Message, error) {
	data, err := json.Marshal(update)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize topic update: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(update.DetailsKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "topic", Value: []byte(update.Topic)},
			{Key: "updated_at", Value: []byte(update.UpdatedAt.Format(time.RFC3339))},
		},
	}, nil
}
