package notifier

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"indicator-reporting/backend/internal/alert/domain"
)

// alertEvent is the wire shape published for each created alert.
type alertEvent struct {
	ID             string   `json:"id"`
	Kind           string   `json:"kind"`
	IndicatorID    string   `json:"indicator_id,omitempty"`
	StewardID      string   `json:"steward_id,omitempty"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	ThresholdValue *float64 `json:"threshold_value,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

// KafkaNotifier implements Notifier using segmentio/kafka-go.
type KafkaNotifier struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaNotifier creates a notifier that writes created alerts to the given
// topic. Returns nil when brokers or topic are unset (notifications disabled).
// Call Close when shutting down.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaNotifier{writer: writer, topic: topic}
}

// Notify serializes the alert as JSON and writes it to the topic, keyed by the
// alert's indicator so per-indicator ordering is preserved.
func (n *KafkaNotifier) Notify(ctx context.Context, a *domain.Alert) error {
	if n == nil || n.writer == nil || a == nil {
		return nil
	}
	payload, err := json.Marshal(alertEvent{
		ID:             a.ID,
		Kind:           string(a.Kind),
		IndicatorID:    a.IndicatorID,
		StewardID:      a.StewardID,
		Title:          a.Title,
		Description:    a.Description,
		ThresholdValue: a.ThresholdValue,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	err = n.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(a.IndicatorID),
		Value: payload,
	})
	if err != nil {
		log.Printf("alerts: kafka publish failed: %v", err)
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (n *KafkaNotifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}
