// Package mqtt bridges job status events onto an MQTT broker so external
// automations (shop displays, notifiers) can follow runs without polling.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eyewearops/syncdeck/internal/core/logger"
	"github.com/eyewearops/syncdeck/internal/core/ports"
)

const (
	connectTimeout = 10 * time.Second
	topicPrefix    = "syncdeck/jobs"
)

type Publisher struct {
	client pahomqtt.Client
	pubsub ports.EventPubSub
}

// NewPublisher connects to the broker and returns a bridge ready to run.
func NewPublisher(brokerURL, clientID string, pubsub ports.EventPubSub) (*Publisher, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout)

	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return &Publisher{client: client, pubsub: pubsub}, nil
}

// Run forwards status events to per-job topics until the context is
// cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	events, err := p.pubsub.SubscribeEvents(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to status events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			topic := fmt.Sprintf("%s/%s/status", topicPrefix, event.JobID)
			if token := p.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
				logger.Error("mqtt publish failed", "topic", topic, "error", token.Error())
			}
		}
	}
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
