package ports

import "context"

// Delivery reports a message handed to the chat transport.
type Delivery struct {
	ID     string
	SentAt int64 // unix milliseconds
}

// Transport is the external chat capability. The protocol client
// itself lives outside this repository.
type Transport interface {
	SendMessage(ctx context.Context, recipientID, content string) (Delivery, error)
}

// Inventory exposes the stock operations the order handler needs.
// Reserve must not be called twice for one order id; the handler's
// reservation ledger enforces that across retries.
type Inventory interface {
	Available(ctx context.Context, productID string) (int, error)
	Reserve(ctx context.Context, orderID, productID string, quantity int) error
}
