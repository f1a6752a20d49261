package core

// Client is one live connection as seen by the fan-out layer.
// Identity is empty for anonymous connections; those are counted for
// liveness but never become a broadcast target.
type Client struct {
	ID       string
	Identity string
	send     chan []byte
}

// NewClient constructs a client with a buffered outbound queue.
func NewClient(id, identity string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{
		ID:       id,
		Identity: identity,
		send:     make(chan []byte, buffer),
	}
}

// Enqueue places pre-encoded bytes on the outbound queue without blocking.
// Returns false when the queue is full (slow consumer); the payload is dropped.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Outbox is drained by the connection's write pump.
func (c *Client) Outbox() <-chan []byte {
	return c.send
}
