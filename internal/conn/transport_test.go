package conn_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Melenium2/dht/internal/conn"
	"github.com/Melenium2/dht/internal/node"
	"github.com/Melenium2/dht/internal/rpc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	mu     sync.Mutex
	seen   []node.Node
	nodes  []node.Node
	values map[node.ID][]byte
	err    error
}

func (h *fakeHandler) remember(from node.Node) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seen = append(h.seen, from)
}

func (h *fakeHandler) Seen() []node.Node {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]node.Node(nil), h.seen...)
}

func (h *fakeHandler) HandlePing(from node.Node) error {
	h.remember(from)

	return h.err
}

func (h *fakeHandler) HandleFindNode(from node.Node, _ node.ID) ([]node.Node, error) {
	h.remember(from)

	return h.nodes, h.err
}

func (h *fakeHandler) HandleFindValue(from node.Node, key node.ID) (rpc.FindValueResult, error) {
	h.remember(from)

	h.mu.Lock()
	defer h.mu.Unlock()

	if value, ok := h.values[key]; ok {
		return rpc.FindValueResult{Value: value, Found: true}, h.err
	}

	return rpc.FindValueResult{Nodes: h.nodes}, h.err
}

func (h *fakeHandler) HandleStore(from node.Node, key node.ID, value []byte) error {
	h.remember(from)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.values[key] = value

	return h.err
}

func listen(t *testing.T) *net.UDPConn {
	t.Helper()

	udp, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	return udp
}

// startTransport runs transport with handler until the test ends.
func startTransport(t *testing.T, codec conn.Codec, handler rpc.Handler) *conn.Transport {
	t.Helper()

	self, err := node.Generate("", node.DefaultBits)
	require.NoError(t, err)

	transport := conn.NewTransport(listen(t), self.ID, codec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- transport.Loop(ctx, handler)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return transport
}

func TestTransport_Should_serve_all_requests(t *testing.T) {
	codecs := map[string]conn.Codec{
		"json":    conn.JSONCodec{},
		"msgpack": conn.MsgpackCodec{},
	}

	for name, codec := range codecs {
		codec := codec

		t.Run(name, func(t *testing.T) {
			known, err := node.Generate("10.0.0.1:5222", node.DefaultBits)
			require.NoError(t, err)

			var (
				handler = &fakeHandler{nodes: []node.Node{known, known}, values: make(map[node.ID][]byte)}
				server  = startTransport(t, codec, handler)
				client  = startTransport(t, codec, nil)
				ctx     = context.Background()
				key     = known.ID
			)

			require.NoError(t, client.Ping(ctx, server.Self()))

			nodes, err := client.FindNode(ctx, server.Self(), key)
			require.NoError(t, err)
			assert.Equal(t, []node.Node{known}, nodes)

			res, err := client.FindValue(ctx, server.Self(), key)
			require.NoError(t, err)
			assert.False(t, res.Found)
			assert.Equal(t, []node.Node{known}, res.Nodes)

			require.NoError(t, client.Store(ctx, server.Self(), key, []byte("value")))

			res, err = client.FindValue(ctx, server.Self(), key)
			require.NoError(t, err)
			assert.True(t, res.Found)
			assert.Equal(t, []byte("value"), res.Value)

			seen := handler.Seen()
			require.Len(t, seen, 5)

			for _, from := range seen {
				assert.Equal(t, client.Self(), from)
			}
		})
	}
}

func TestTransport_Should_report_handler_error_as_protocol_error(t *testing.T) {
	var (
		handler = &fakeHandler{err: errors.New("boom")}
		server  = startTransport(t, conn.JSONCodec{}, handler)
		client  = startTransport(t, conn.JSONCodec{}, nil)
	)

	err := client.Ping(context.Background(), server.Self())
	assert.ErrorIs(t, err, rpc.ErrProtocol)
	assert.Contains(t, err.Error(), "boom")
}

func TestTransport_Should_return_timeout_if_nobody_answers(t *testing.T) {
	var (
		silent = listen(t)
		client = startTransport(t, conn.JSONCodec{}, nil)
	)

	defer silent.Close()

	target, err := node.Generate(silent.LocalAddr().String(), node.DefaultBits)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = client.Ping(ctx, target)
	assert.ErrorIs(t, err, rpc.ErrTimeout)
}

func TestTransport_Should_reject_answer_of_wrong_type(t *testing.T) {
	var (
		remote = listen(t)
		codec  = conn.JSONCodec{}
		client = startTransport(t, codec, nil)
	)

	defer remote.Close()

	target, err := node.Generate(remote.LocalAddr().String(), node.DefaultBits)
	require.NoError(t, err)

	go func() {
		buf := make([]byte, conn.MaxMessageSize)

		n, addr, err := remote.ReadFromUDP(buf)
		if err != nil {
			return
		}

		req, err := codec.Unmarshal(buf[:n])
		if err != nil {
			return
		}

		raw, _ := codec.Marshal(&conn.Packet{
			Type:   conn.StoredMessage,
			ReqID:  req.ReqID,
			Sender: conn.Peer{ID: target.ID.String(), Address: target.Address},
		})

		_, _ = remote.WriteToUDP(raw, addr)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = client.Ping(ctx, target)
	assert.ErrorIs(t, err, rpc.ErrProtocol)
}

func TestTransport_Should_reject_answer_from_node_with_other_id(t *testing.T) {
	var (
		handler = &fakeHandler{}
		server  = startTransport(t, conn.JSONCodec{}, handler)
		client  = startTransport(t, conn.JSONCodec{}, nil)
	)

	impostor, err := node.Generate(server.Self().Address, node.DefaultBits)
	require.NoError(t, err)

	err = client.Ping(context.Background(), impostor)
	assert.ErrorIs(t, err, rpc.ErrProtocol)
}

func TestTransport_Should_accept_answer_with_uppercase_id(t *testing.T) {
	var (
		remote = listen(t)
		codec  = conn.JSONCodec{}
		client = startTransport(t, codec, nil)
	)

	defer remote.Close()

	target, err := node.Generate(remote.LocalAddr().String(), node.DefaultBits)
	require.NoError(t, err)

	go func() {
		buf := make([]byte, conn.MaxMessageSize)

		n, addr, err := remote.ReadFromUDP(buf)
		if err != nil {
			return
		}

		req, err := codec.Unmarshal(buf[:n])
		if err != nil {
			return
		}

		raw, _ := codec.Marshal(&conn.Packet{
			Type:   conn.PongMessage,
			ReqID:  req.ReqID,
			Sender: conn.Peer{ID: strings.ToUpper(target.ID.String()), Address: target.Address},
		})

		_, _ = remote.WriteToUDP(raw, addr)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, client.Ping(ctx, target))
}

func TestTransport_Loop_Should_stop_when_context_is_canceled(t *testing.T) {
	self, err := node.Generate("", node.DefaultBits)
	require.NoError(t, err)

	transport := conn.NewTransport(listen(t), self.ID, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- transport.Loop(ctx, nil)
	}()

	cancel()

	select {
	case err = <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
