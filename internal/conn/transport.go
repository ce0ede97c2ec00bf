package conn

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/Melenium2/dht/internal/node"
	"github.com/Melenium2/dht/internal/rpc"
	"github.com/Melenium2/dht/pkg/logger"

	"github.com/google/uuid"
)

// MaxMessageSize is the biggest datagram Transport sends or reads.
const MaxMessageSize = 8192

type UDPConn interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	WriteToUDP(b []byte, addr *net.UDPAddr) (n int, err error)
	Close() error
	LocalAddr() net.Addr
}

type reply struct {
	packet *Packet
	err    error
}

// call is a request waiting for the answer.
type call struct {
	to     node.Node
	addr   string
	expect MessageType
	resCh  chan reply
}

// Transport is structure for providing access to UDP network. Transport
// implements rpc.Client and passes incoming requests to rpc.Handler.
type Transport struct {
	// Established udp connection.
	conn  UDPConn
	codec Codec
	self  node.Node
	log   logger.Logger

	mu sync.Mutex
	// Map with requests already sent.
	pendingCalls map[uuid.UUID]*call
}

// NewTransport create instance of Transport. Address of the local node is
// the local address of conn.
func NewTransport(conn UDPConn, id node.ID, codec Codec) *Transport {
	if codec == nil {
		codec = JSONCodec{}
	}

	return &Transport{
		conn:         conn,
		codec:        codec,
		self:         node.New(id, conn.LocalAddr().String()),
		log:          logger.GetLogger().Named("transport"),
		pendingCalls: make(map[uuid.UUID]*call),
	}
}

// Self returns the local node as other nodes see it.
func (t *Transport) Self() node.Node {
	return t.self
}

// Loop is main read cycle. Requests are passed to handler, responses
// complete pending calls. Handler may be nil, then requests are ignored.
//
// Loop closes the connection when ctx is done.
func (t *Transport) Loop(ctx context.Context, handler rpc.Handler) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = t.conn.Close()
		case <-done:
		}
	}()

	buf := make([]byte, MaxMessageSize)

	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			t.log.Errorf("UDP read error, closing read network cycle, reason %s", err)

			return fmt.Errorf("read from udp: %w", err)
		}

		packet, err := t.codec.Unmarshal(buf[:n])
		if err != nil {
			t.log.Warnf("can not unmarshal packet from %s, reason %s", addr, err)

			continue
		}

		if packet.Type.IsRequest() {
			go t.handleRequest(packet, addr, handler)

			continue
		}

		t.handleResponse(packet, addr)
	}
}

// handleResponse validates answer and passes it to the waiting call.
func (t *Transport) handleResponse(packet *Packet, addr *net.UDPAddr) {
	t.mu.Lock()
	c, ok := t.pendingCalls[packet.ReqID]
	t.mu.Unlock()

	if !ok {
		t.log.Debugf("got %s from %s for unknown request %s", packet.Type, addr, packet.ReqID)

		return
	}

	if c.addr != addr.String() {
		t.log.Warnf("got %s for request %s from %s, expected %s", packet.Type, packet.ReqID, addr, c.addr)

		return
	}

	var err error

	switch {
	case packet.Type == ErrorMessage:
		err = fmt.Errorf("%w, remote error: %s", rpc.ErrProtocol, packet.Error)
	case packet.Type != c.expect:
		err = fmt.Errorf("%w, expected %s, got %s", rpc.ErrProtocol, c.expect, packet.Type)
	case !answeredBy(packet.Sender, c.to):
		err = fmt.Errorf("%w, node %s answered with id %s", rpc.ErrProtocol, c.to, packet.Sender.ID)
	}

	select {
	case c.resCh <- reply{packet: packet, err: err}:
	default:
		t.log.Debugf("duplicate answer for request %s", packet.ReqID)
	}
}

// answeredBy reports whether sender carries identifier of n.
func answeredBy(sender Peer, n node.Node) bool {
	id, err := node.ParseID(sender.ID, n.ID.Bits())

	return err == nil && id == n.ID
}

func (t *Transport) handleRequest(packet *Packet, addr *net.UDPAddr, handler rpc.Handler) {
	if handler == nil {
		return
	}

	resp, err := t.serve(packet, addr, handler)
	if err != nil {
		resp = &Packet{Type: ErrorMessage, Error: err.Error()}
	}

	resp.ReqID = packet.ReqID
	resp.Sender = toPeer(t.self)

	if err = t.send(resp, addr); err != nil {
		t.log.Errorf("can not answer %s request %s, reason %s", packet.Type, packet.ReqID, err)
	}
}

// serve passes request to handler. Sender address is taken from the
// datagram, not from the packet body.
func (t *Transport) serve(packet *Packet, addr *net.UDPAddr, handler rpc.Handler) (*Packet, error) {
	bits := t.self.ID.Bits()

	from, err := fromPeer(Peer{ID: packet.Sender.ID, Address: addr.String()}, bits)
	if err != nil {
		return nil, err
	}

	resp := &Packet{Type: packet.Type.Response()}

	if packet.Type == PingMessage {
		return resp, handler.HandlePing(from)
	}

	target, err := node.ParseID(packet.Target, bits)
	if err != nil {
		return nil, err
	}

	switch packet.Type {
	case FindNodeMessage:
		nodes, err := handler.HandleFindNode(from, target)
		resp.Nodes = toPeers(nodes)

		return resp, err
	case FindValueMessage:
		res, err := handler.HandleFindValue(from, target)
		resp.Value, resp.Found, resp.Nodes = res.Value, res.Found, toPeers(res.Nodes)

		return resp, err
	case StoreMessage:
		return resp, handler.HandleStore(from, target, packet.Value)
	default:
		return nil, fmt.Errorf("%w, %s", ErrWrongMessageType, packet.Type)
	}
}

// send convert provided packet to raw bytes and send by the UDP connection to provided
// address.
func (t *Transport) send(packet *Packet, addr *net.UDPAddr) error {
	body, err := t.codec.Marshal(packet)
	if err != nil {
		return err
	}

	if len(body) > MaxMessageSize {
		return fmt.Errorf("%w, %d bytes", ErrMessageTooLarge, len(body))
	}

	if _, err = t.conn.WriteToUDP(body, addr); err != nil {
		t.log.Warnf("can not send body: \n%s to udp socket %s", hex.Dump(body), addr.String())

		return err
	}

	return nil
}

// request sends packet to the node and waits for the answer of expected
// type. Passed deadline of ctx is reported as rpc.ErrTimeout.
func (t *Transport) request(ctx context.Context, to node.Node, packet *Packet) (*Packet, error) {
	addr, err := net.ResolveUDPAddr("udp", to.Address)
	if err != nil {
		return nil, fmt.Errorf("%w, bad address of node %s: %s", rpc.ErrProtocol, to, err)
	}

	packet.ReqID = uuid.New()
	packet.Sender = toPeer(t.self)

	c := &call{
		to:     to,
		addr:   addr.String(),
		expect: packet.Type.Response(),
		resCh:  make(chan reply, 1),
	}

	t.mu.Lock()
	t.pendingCalls[packet.ReqID] = c
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pendingCalls, packet.ReqID)
		t.mu.Unlock()
	}()

	if err = t.send(packet, addr); err != nil {
		return nil, err
	}

	select {
	case r := <-c.resCh:
		return r.packet, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w, %s did not answer %s", rpc.ErrTimeout, to, packet.Type)
		}

		return nil, ctx.Err()
	}
}

// Ping sends ping request to the node.
func (t *Transport) Ping(ctx context.Context, to node.Node) error {
	_, err := t.request(ctx, to, &Packet{Type: PingMessage})

	return err
}

// FindNode asks node for the closest nodes to target.
func (t *Transport) FindNode(ctx context.Context, to node.Node, target node.ID) ([]node.Node, error) {
	resp, err := t.request(ctx, to, &Packet{Type: FindNodeMessage, Target: target.String()})
	if err != nil {
		return nil, err
	}

	return t.consumeNodes(resp)
}

// FindValue asks node for the value stored under key.
func (t *Transport) FindValue(ctx context.Context, to node.Node, key node.ID) (rpc.FindValueResult, error) {
	resp, err := t.request(ctx, to, &Packet{Type: FindValueMessage, Target: key.String()})
	if err != nil {
		return rpc.FindValueResult{}, err
	}

	if resp.Found {
		return rpc.FindValueResult{Value: resp.Value, Found: true}, nil
	}

	nodes, err := t.consumeNodes(resp)
	if err != nil {
		return rpc.FindValueResult{}, err
	}

	return rpc.FindValueResult{Nodes: nodes}, nil
}

// Store asks node to keep the value.
func (t *Transport) Store(ctx context.Context, to node.Node, key node.ID, value []byte) error {
	_, err := t.request(ctx, to, &Packet{Type: StoreMessage, Target: key.String(), Value: value})

	return err
}

// consumeNodes decodes nodes of the answer. Duplicates are skipped,
// undecodable identifiers make the whole answer invalid.
func (t *Transport) consumeNodes(resp *Packet) ([]node.Node, error) {
	nodes, err := fromPeers(resp.Nodes, t.self.ID.Bits())
	if err != nil {
		return nil, fmt.Errorf("%w, %s", rpc.ErrProtocol, err)
	}

	var (
		seen   = make(map[node.ID]struct{}, len(nodes))
		unique = nodes[:0]
	)

	for _, n := range nodes {
		if _, ok := seen[n.ID]; ok {
			t.log.Warnf("got duplicate record with ID %s from %s", n.ID, resp.Sender.Address)

			continue
		}

		seen[n.ID] = struct{}{}
		unique = append(unique, n)
	}

	return unique, nil
}
