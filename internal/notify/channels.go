package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betagouv/zacharie-sub006/config"
)

// Message is the payload handed to a delivery transport
type Message struct {
	Recipient string `json:"recipient"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// Transport delivers one message over one channel. The receipt is transport
// specific and stored verbatim in the notification log; it is never parsed.
type Transport interface {
	Deliver(ctx context.Context, msg Message) ([]byte, error)
}

// ServiceBusPushTransport implements the push channel by publishing delivery
// jobs onto a Service Bus queue consumed by the mobile push provider
type ServiceBusPushTransport struct {
	client *azservicebus.Client
	queue  string
}

// NewServiceBusPushTransport creates a new push transport
func NewServiceBusPushTransport(cfg *config.ServiceBusConfig) (*ServiceBusPushTransport, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service bus client: %w", err)
	}
	return &ServiceBusPushTransport{client: client, queue: cfg.PushQueue}, nil
}

// Deliver publishes the message and returns the queued message id as receipt
func (t *ServiceBusPushTransport) Deliver(ctx context.Context, msg Message) ([]byte, error) {
	sender, err := t.client.NewSender(t.queue, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender for queue %s: %w", t.queue, err)
	}
	defer sender.Close(ctx)

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	messageID := uuid.New().String()
	sbMessage := &azservicebus.Message{
		MessageID: &messageID,
		Body:      body,
	}
	if err := sender.SendMessage(ctx, sbMessage, nil); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	receipt, err := json.Marshal(map[string]string{
		"message_id": messageID,
		"queue":      t.queue,
		"queued_at":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// LogEmailTransport is the email channel used when no provider is wired: it
// logs the message and returns a synthetic receipt. Delivery mechanics are an
// external collaborator; the gate only needs the attempt and the receipt.
type LogEmailTransport struct {
	From string
	Log  *logrus.Logger
}

// Deliver logs the message and returns a synthetic receipt
func (t *LogEmailTransport) Deliver(ctx context.Context, msg Message) ([]byte, error) {
	t.Log.WithFields(logrus.Fields{
		"from":      t.From,
		"recipient": msg.Recipient,
		"title":     msg.Title,
	}).Info("Email delivery handed off")

	return json.Marshal(map[string]string{
		"transport": "log",
		"from":      t.From,
		"sent_at":   time.Now().UTC().Format(time.RFC3339),
	})
}
