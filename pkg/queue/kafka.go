package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaProducer struct {
	writer *kafka.Writer
}

type KafkaConsumer struct {
	reader *kafka.Reader
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Async:    false,
	}

	return &KafkaProducer{writer: writer}
}

func NewKafkaConsumer(brokers []string, topic, groupID string) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 1 * time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &KafkaConsumer{reader: reader}
}

func (p *KafkaProducer) Publish(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	return p.writer.WriteMessages(ctx, message)
}

func (c *KafkaConsumer) Subscribe(ctx context.Context, handler func(Message) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			message, err := c.reader.ReadMessage(ctx)
			if err != nil {
				return fmt.Errorf("failed to read message: %w", err)
			}

			var value interface{}
			if err := json.Unmarshal(message.Value, &value); err != nil {
				fmt.Printf("Failed to unmarshal message: %v\n", err)
				continue
			}

			msg := Message{
				Key:   string(message.Key),
				Value: value,
				Topic: message.Topic,
			}

			if err := handler(msg); err != nil {
				fmt.Printf("Failed to handle message: %v\n", err)
				continue
			}
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type Message struct {
	Key   string
	Value interface{}
	Topic string
}

type EventType string

const (
	EventUserRegistered  EventType = "user_registered"
	EventUserUpdated     EventType = "user_updated"
	EventUserDeleted     EventType = "user_deleted"
	EventMessageCreated  EventType = "message_created"
	EventMessageDeleted  EventType = "message_deleted"
	EventFollowCreated   EventType = "follow_created"
	EventFollowDeleted   EventType = "follow_deleted"
	EventLikeToggled     EventType = "like_toggled"
	EventQuizSubmitted   EventType = "quiz_submitted"
	EventModuleCompleted EventType = "module_completed"
)

type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type MessageEventData struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

type FollowEventData struct {
	FollowerID string `json:"follower_id"`
	FollowedID string `json:"followed_id"`
	CreatedAt  string `json:"created_at"`
}

type LikeEventData struct {
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
	Liked     bool   `json:"liked"`
}

type ProgressEventData struct {
	UserID string `json:"user_id"`
	Module string `json:"module,omitempty"`
	Score  int    `json:"score,omitempty"`
}

type UserEventData struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
