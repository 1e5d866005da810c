package dispatcher

import "sync"

// MemTransport is an in-process Transport: Publish fans out to every
// locally registered Subscribe channel. It stands in for the real p2p
// transport library (connection management, gossip, peer discovery),
// which is out of scope here — this is the trivial implementation a
// single-process deployment (or a test) plugs into the same Transport
// interface a real libp2p-backed adapter would satisfy.
type MemTransport struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

// NewMemTransport returns an empty in-process transport.
func NewMemTransport() *MemTransport {
	return &MemTransport{subs: make(map[string][]chan []byte)}
}

// Publish delivers data to every channel currently subscribed to topic,
// dropping it for any subscriber whose buffer is full rather than
// blocking the publisher.
func (t *MemTransport) Publish(topic string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs[topic] {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of raw messages published to topic.
func (t *MemTransport) Subscribe(topic string) (<-chan []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan []byte, 64)
	t.subs[topic] = append(t.subs[topic], ch)
	return ch, nil
}
