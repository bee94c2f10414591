package secondary

import "context"

// Notifier defines the secondary port for notification delivery.
// Delivery channel and transport are the adapter's concern.
type Notifier interface {
	// Notify delivers one notification.
	Notify(ctx context.Context, n Notification) error
}

// Notification is a message for one recipient with structured context.
type Notification struct {
	RecipientID string
	Message     string
	Context     map[string]string
}
