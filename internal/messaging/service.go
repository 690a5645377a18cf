// Package messaging provides the WhatsApp transport abstraction: a
// Service sends texts and surfaces inbound messages and delivery
// receipts as channels, with whatsmeow and Twilio implementations.
package messaging

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/CasaLindaMX/LeadFlow/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer size for receipt and
	// response channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds non-blocking channel sends; events
	// that cannot be delivered in time are dropped.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned by sends after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex strips everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service is the pluggable message transport.
type Service interface {
	// ValidateAndCanonicalizeRecipient normalizes a recipient phone
	// number to bare digits, or returns an error when it cannot be one.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins background processing such as event polling.
	Start(ctx context.Context) error

	// Stop ends background processing and closes the event channels.
	Stop() error

	// Receipts returns delivery status events (sent, delivered, read).
	Receipts() <-chan models.Receipt

	// Responses returns inbound messages.
	Responses() <-chan models.Response
}

// canonicalizePhone reduces a recipient identifier to digits and
// validates the result. Shared by all transports.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", errors.New("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", errors.New("invalid phone number: no digits found")
	}
	if len(canonical) < 6 {
		return "", errors.New("invalid phone number: too short")
	}
	return canonical, nil
}
