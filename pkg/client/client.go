// Package client provides a WebSocket client for the resolver daemon:
// agents use it to register themselves and to discover other agents by
// trust root and capability path.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	cbor "github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentries/agent-uri-go/internal/protocol"
	"github.com/agentries/agent-uri-go/pkg/dht"
	"github.com/agentries/agent-uri-go/pkg/uri"
)

// DefaultRequestTimeout bounds how long a call waits for the resolver's
// response.
const DefaultRequestTimeout = 10 * time.Second

// Client is a resolver client over a single WebSocket connection. It is
// safe for concurrent use; responses are matched to requests by
// correlation ID.
type Client struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *protocol.Message

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a resolver at a ws:// or wss:// URL (e.g.
// "ws://localhost:8472/ws").
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial resolver: %w", err)
	}
	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]chan *protocol.Message),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close tears down the connection; in-flight calls fail.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Register stores a registration at the resolver. A zero ttl keeps the
// resolver's default.
func (c *Client) Register(ctx context.Context, reg dht.Registration, ttl time.Duration) error {
	raw, err := reg.MarshalCBOR()
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}
	req := protocol.RegisterRequest{Registration: raw}
	if ttl > 0 {
		req.TTLSeconds = uint64(ttl / time.Second)
	}
	_, err = c.call(ctx, protocol.MessageTypeRegister, req, protocol.MessageTypeAck)
	return err
}

// UpdateEndpoints migrates a registered agent to new endpoints.
func (c *Client) UpdateEndpoints(ctx context.Context, agentURI uri.AgentURI, endpoints []dht.Endpoint) error {
	raw, err := cbor.Marshal(endpoints)
	if err != nil {
		return fmt.Errorf("encode endpoints: %w", err)
	}
	_, err = c.call(ctx, protocol.MessageTypeUpdateEndpoints, protocol.UpdateEndpointsRequest{
		AgentURI:  agentURI.String(),
		Endpoints: raw,
	}, protocol.MessageTypeAck)
	return err
}

// Deregister removes a registration.
func (c *Client) Deregister(ctx context.Context, agentURI uri.AgentURI) error {
	_, err := c.call(ctx, protocol.MessageTypeDeregister, protocol.DeregisterRequest{
		AgentURI: agentURI.String(),
	}, protocol.MessageTypeAck)
	return err
}

// Lookup returns registrations at exactly the given capability path.
func (c *Client) Lookup(ctx context.Context, root uri.TrustRoot, path uri.CapabilityPath) ([]dht.Registration, error) {
	return c.lookup(ctx, protocol.MessageTypeLookup, root, path)
}

// LookupPrefix returns registrations at the given path and below.
func (c *Client) LookupPrefix(ctx context.Context, root uri.TrustRoot, path uri.CapabilityPath) ([]dht.Registration, error) {
	return c.lookup(ctx, protocol.MessageTypeLookupPrefix, root, path)
}

// Ping checks liveness.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, protocol.MessageTypePing, nil, protocol.MessageTypePong)
	return err
}

func (c *Client) lookup(ctx context.Context, msgType protocol.MessageType, root uri.TrustRoot, path uri.CapabilityPath) ([]dht.Registration, error) {
	resp, err := c.call(ctx, msgType, protocol.LookupRequest{
		TrustRoot:      root.String(),
		CapabilityPath: path.String(),
	}, protocol.MessageTypeResult)
	if err != nil {
		return nil, err
	}

	var result protocol.ResultPayload
	if err := resp.DecodePayload(&result); err != nil {
		return nil, fmt.Errorf("decode lookup result: %w", err)
	}
	regs := make([]dht.Registration, 0, len(result.Registrations))
	for _, raw := range result.Registrations {
		var reg dht.Registration
		if err := cbor.Unmarshal(raw, &reg); err != nil {
			c.logger.Warn("skipping undecodable registration", zap.Error(err))
			continue
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// call sends a request and waits for its correlated response.
func (c *Client) call(ctx context.Context, msgType protocol.MessageType, payload interface{}, want protocol.MessageType) (*protocol.Message, error) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ch := make(chan *protocol.Message, 1)
	key := msg.IDHex()
	c.pendingMu.Lock()
	c.pending[key] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, key)
		c.pendingMu.Unlock()
	}()

	data, err := msg.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.BinaryMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRequestTimeout)
		defer cancel()
	}

	select {
	case resp := <-ch:
		if resp.Type == protocol.MessageTypeError {
			var wireErr protocol.WireError
			if err := resp.DecodePayload(&wireErr); err != nil {
				return nil, fmt.Errorf("resolver error (undecodable payload): %w", err)
			}
			return nil, &wireErr
		}
		if resp.Type != want {
			return nil, fmt.Errorf("unexpected response type 0x%02x", uint8(resp.Type))
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("client closed")
	}
}

// readLoop dispatches responses to waiting calls.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("resolver connection read failed", zap.Error(err))
				c.Close()
			}
			return
		}

		msg := &protocol.Message{}
		if err := msg.Unmarshal(data); err != nil {
			c.logger.Warn("undecodable message from resolver", zap.Error(err))
			continue
		}
		if len(msg.CorrelationID) == 0 {
			c.logger.Debug("uncorrelated message from resolver",
				zap.Uint8("type", uint8(msg.Type)))
			continue
		}

		key := fmt.Sprintf("%x", msg.CorrelationID)
		c.pendingMu.Lock()
		ch, ok := c.pending[key]
		c.pendingMu.Unlock()
		if !ok {
			continue
		}
		select {
		case ch <- msg:
		default:
		}
	}
}
