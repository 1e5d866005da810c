// Package dispatcher implements the p2p dispatcher: wire message
// encode/decode, routing inbound events into the graph and
// ledger, and non-blocking outbound publish. The transport library itself
// (connection management, gossip, peer discovery) is out of scope, so
// this package depends only on a small injected Transport interface
// rather than vendoring a real libp2p host.
package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"graphledger/core"
)

// MessageKind discriminates the two gossip message shapes.
type MessageKind string

const (
	KindBlock        MessageKind = "BLOCK"
	KindNodeAnnounce MessageKind = "NODE_ANNOUNCE"
)

// Envelope is the outer `{"kind":..., "payload":...}` wire shape.
type Envelope struct {
	ID      string          `json:"id"`
	Kind    MessageKind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// NodeAnnounce is the optional NODE_ANNOUNCE payload: a newly created
// node, broadcast so peers can validate EdgeData blocks referring to it.
type NodeAnnounce struct {
	NodeID   string `json:"node_id"`
	TypeName string `json:"type_name"`
}

// Transport is the injected publish/subscribe boundary the ledger and
// dispatcher consume: {publish(block), subscribe(block)}. Its concrete
// implementation (connection management, gossip, peer discovery) is an
// out-of-scope external collaborator; graphledger only depends on this
// interface.
type Transport interface {
	Publish(topic string, data []byte) error
	Subscribe(topic string) (<-chan []byte, error)
}

// Dispatcher routes inbound gossip messages to the engine and relays
// locally-produced blocks back out, matching network.go's
// Broadcast/Subscribe pairing but scoped to graphledger's two message
// kinds instead of a generic byte-message bus.
type Dispatcher struct {
	engine    *core.Engine
	transport Transport
	topic     string
	log       *logrus.Logger

	outbox chan []byte
}

// New returns a Dispatcher wired to engine over transport's topic.
func New(engine *core.Engine, transport Transport, topic string, log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	d := &Dispatcher{
		engine:    engine,
		transport: transport,
		topic:     topic,
		log:       log,
		outbox:    make(chan []byte, 256),
	}
	engine.SetPublisher(d.publishBlock)
	engine.SetAnnouncer(d.announceNode)
	return d
}

// publishBlock is wired as the engine's outbound hook: it enqueues a
// BLOCK envelope without blocking the caller — outbound calls never wait
// on the transport.
func (d *Dispatcher) publishBlock(b *core.Block) {
	payload, err := json.Marshal(b)
	if err != nil {
		d.log.WithError(err).Error("encode outbound block")
		return
	}
	env := Envelope{ID: uuid.NewString(), Kind: KindBlock, Payload: payload}
	data, err := json.Marshal(env)
	if err != nil {
		d.log.WithError(err).Error("encode outbound envelope")
		return
	}
	select {
	case d.outbox <- data:
	default:
		d.log.Warn("outbound queue full, dropping block broadcast")
	}
}

// announceNode enqueues a NODE_ANNOUNCE message for a newly created node.
func (d *Dispatcher) announceNode(nodeID, typeName string) {
	payload, err := json.Marshal(NodeAnnounce{NodeID: nodeID, TypeName: typeName})
	if err != nil {
		d.log.WithError(err).Error("encode node announce")
		return
	}
	env := Envelope{ID: uuid.NewString(), Kind: KindNodeAnnounce, Payload: payload}
	data, err := json.Marshal(env)
	if err != nil {
		d.log.WithError(err).Error("encode outbound envelope")
		return
	}
	select {
	case d.outbox <- data:
	default:
		d.log.Warn("outbound queue full, dropping node announce")
	}
}

// Run drains the outbound queue to the transport and the transport's
// inbound subscription into the engine until stop is closed. Both loops
// are the dispatcher's only suspension points besides the transport
// calls themselves.
func (d *Dispatcher) Run(stop <-chan struct{}) error {
	inbound, err := d.transport.Subscribe(d.topic)
	if err != nil {
		return &core.TransportError{Detail: fmt.Sprintf("subscribe: %v", err)}
	}

	for {
		select {
		case <-stop:
			return nil
		case data := <-d.outbox:
			if err := d.transport.Publish(d.topic, data); err != nil {
				d.log.WithError(err).Warn("publish failed")
			}
		case raw, ok := <-inbound:
			if !ok {
				return nil
			}
			d.handleInbound(raw)
		}
	}
}

// handleInbound deserializes, classifies, and synchronously hands an
// inbound message to the engine.
func (d *Dispatcher) handleInbound(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.log.WithError(err).Warn("dropping malformed envelope")
		return
	}

	switch env.Kind {
	case KindBlock:
		var b core.Block
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			d.log.WithError(err).Warn("dropping malformed block payload")
			return
		}
		if err := d.engine.ReceiveBlock(&b); err != nil {
			d.log.WithError(err).WithField("block_id", b.ID).Warn("block rejected")
		}
	case KindNodeAnnounce:
		var ann NodeAnnounce
		if err := json.Unmarshal(env.Payload, &ann); err != nil {
			d.log.WithError(err).Warn("dropping malformed node announce")
			return
		}
		d.log.WithFields(logrus.Fields{"node_id": ann.NodeID, "type": ann.TypeName}).Debug("peer announced node")
	default:
		d.log.WithField("kind", env.Kind).Warn("dropping envelope of unknown kind")
	}
}
