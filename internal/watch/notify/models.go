package notify

import (
	"context"
	"fmt"
	"time"
)

// Deliverer publishes a message to an external endpoint on behalf of sender.
type Deliverer interface {
	Deliver(ctx context.Context, endpoint, sender, message string) error
}

// DeliveryError reports a failed delivery to an endpoint.
type DeliveryError struct {
	// Endpoint is the endpoint the message was sent to
	Endpoint string

	// StatusCode is the http status returned by the endpoint,
	// or 0 if no response was received
	StatusCode int

	// Err is the underlying error
	Err error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("delivery failed with status %d: %v", e.StatusCode, e.Err)
	}

	return fmt.Sprintf("delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type Config struct {
	// Endpoint is the webhook url events are delivered to
	Endpoint string `conf:"endpoint"`

	// Sender is the name messages are posted as
	Sender string `conf:"sender"`

	// JoinMessage is the message template for join events. The
	// placeholder {actor} is replaced with the player name.
	JoinMessage string `conf:"join_message"`

	// LeaveMessage is the message template for leave events
	LeaveMessage string `conf:"leave_message"`

	// Timeout bounds a single delivery. Zero disables the timeout.
	Timeout time.Duration `conf:"timeout"`
}

var DefaultConfig = Config{
	Sender:       "FactorioWatch",
	JoinMessage:  "{actor} joined the Factorio server",
	LeaveMessage: "{actor} left the Factorio server",
	Timeout:      10 * time.Second,
}
