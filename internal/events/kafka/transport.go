// Package kafka implements events.DurableTransport on top of
// segmentio/kafka-go, giving the Event Processor a durable log for
// out-of-process subscribers alongside its in-memory fan-out.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"genworld/internal/worldmodel"
)

type Transport struct {
	writer *kafka.Writer
}

func New(brokers []string, topic string) *Transport {
	return &Transport{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (t *Transport) Publish(ctx context.Context, ev *worldmodel.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}
	err = t.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.WorldID),
		Value: body,
	})
	if err != nil {
		return fmt.Errorf("kafka: publish: %w", err)
	}
	return nil
}

func (t *Transport) Close() error { return t.writer.Close() }

// Consumer reads durable events back for a remote subscriber process.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})}
}

func (c *Consumer) Next(ctx context.Context) (*worldmodel.Event, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("kafka: read message: %w", err)
	}
	var ev worldmodel.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return nil, fmt.Errorf("kafka: unmarshal event: %w", err)
	}
	return &ev, nil
}

func (c *Consumer) Close() error { return c.reader.Close() }
