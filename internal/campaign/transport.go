package campaign

import "context"

// Message is a fully rendered email ready for delivery.
type Message struct {
	FromName  string
	FromEmail string
	To        string
	Subject   string
	HTML      string
}

// Transport delivers a single rendered message. One attempt per message;
// the dispatcher treats any error as a terminal failure for that
// recipient.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
}
