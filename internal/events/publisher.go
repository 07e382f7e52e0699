package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yourorg/connecthub/internal/models"
)

const (
	TypeRequestAccepted     = "request.accepted"
	TypeConversationCreated = "conversation.created"
	TypeMessageSent         = "message.sent"
)

type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type RequestAccepted struct {
	RequestID string `json:"request_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

type ConversationCreated struct {
	ConversationID string   `json:"conversation_id"`
	Participants   []string `json:"participants"`
	Title          string   `json:"title,omitempty"`
	IsGroup        bool     `json:"is_group"`
}

type MessageSent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
}

// Publisher emits domain events to Kafka. Publishing is best effort: callers
// log failures and continue, the write that triggered the event is already
// committed. A nil *Publisher drops events, so eventing stays optional.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w}
}

func (p *Publisher) publish(ctx context.Context, key, typ string, payload any) error {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(Envelope{Type: typ, OccurredAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b, Time: time.Now()})
}

func (p *Publisher) PublishRequestAccepted(ctx context.Context, req *models.ConnectionRequest) error {
	return p.publish(ctx, req.ID, TypeRequestAccepted, RequestAccepted{
		RequestID: req.ID,
		From:      req.From,
		To:        req.To,
	})
}

func (p *Publisher) PublishConversationCreated(ctx context.Context, conv *models.Conversation) error {
	return p.publish(ctx, conv.ID, TypeConversationCreated, ConversationCreated{
		ConversationID: conv.ID,
		Participants:   conv.Participants,
		Title:          conv.Title,
		IsGroup:        conv.IsGroup,
	})
}

func (p *Publisher) PublishMessageSent(ctx context.Context, msg *models.Message) error {
	return p.publish(ctx, msg.ConversationID, TypeMessageSent, MessageSent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
	})
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
