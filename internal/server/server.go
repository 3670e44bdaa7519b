// Package server implements the resolver daemon: a WebSocket service
// exposing the registry's register/lookup contract to agents.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cbor "github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/agentries/agent-uri-go/internal/protocol"
	"github.com/agentries/agent-uri-go/internal/storage"
	"github.com/agentries/agent-uri-go/internal/transport"
	"github.com/agentries/agent-uri-go/pkg/attestation"
	"github.com/agentries/agent-uri-go/pkg/dht"
	"github.com/agentries/agent-uri-go/pkg/uri"
)

// Config holds resolver server configuration.
type Config struct {
	// Network configuration
	ListenAddr     string
	AllowedOrigins []string
	MaxPayloadSize int64

	// Registry backing the server
	Registry *dht.MemoryDHT

	// Store persists registrations across restarts
	Store storage.Store

	// DefaultTTL is applied to registrations without an explicit TTL
	DefaultTTL time.Duration

	// SweepInterval is the period between expiry sweeps
	SweepInterval time.Duration

	// Verifier, when set, requires registrations to carry a valid
	// attestation covering their capability path
	Verifier *attestation.Verifier
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":8472",
		AllowedOrigins: []string{"*"},
		MaxPayloadSize: 64 * 1024,
		Registry:       dht.NewMemoryDHT(),
		Store:          storage.NoopStore{},
		DefaultTTL:     time.Hour,
		SweepInterval:  time.Minute,
	}
}

// ResolverServer serves the resolver protocol over WebSocket.
type ResolverServer struct {
	config   *Config
	logger   *zap.Logger
	wsServer *transport.WebSocketServer
	registry *dht.MemoryDHT
	store    storage.Store

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewResolverServer creates a resolver server instance.
func NewResolverServer(config *Config, logger *zap.Logger) *ResolverServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &ResolverServer{
		config:   config,
		logger:   logger,
		registry: config.Registry,
		store:    config.Store,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start restores the snapshot, starts the transport, and begins the
// sweep loop.
func (s *ResolverServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server already running")
	}

	if err := s.restoreSnapshot(); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	s.wsServer = transport.NewWebSocketServer(s.config.ListenAddr, transport.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		MaxMessageSize: s.config.MaxPayloadSize,
	}, s.logger)
	s.wsServer.SetMessageHandler(s.handleMessage)

	if err := s.wsServer.Start(); err != nil {
		return fmt.Errorf("failed to start websocket server: %w", err)
	}

	s.running = true

	s.wg.Add(1)
	go s.sweepLoop()

	s.logger.Info("resolver server started", zap.String("addr", s.config.ListenAddr))
	return nil
}

// Stop gracefully stops the server, persisting a final snapshot.
func (s *ResolverServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	s.logger.Info("stopping resolver server")

	s.cancel()

	if s.wsServer != nil {
		if err := s.wsServer.Stop(); err != nil {
			s.logger.Warn("error stopping websocket server", zap.Error(err))
		}
	}

	s.wg.Wait()

	if err := s.store.SaveSnapshot(s.registry.Snapshot()); err != nil {
		s.logger.Warn("final snapshot failed", zap.Error(err))
	}

	s.running = false
	s.logger.Info("resolver server stopped")
	return nil
}

// Stats returns a snapshot of server state.
func (s *ResolverServer) Stats() dht.Stats {
	return s.registry.Stats()
}

// restoreSnapshot reloads persisted registrations, dropping the expired.
func (s *ResolverServer) restoreSnapshot() error {
	regs, err := s.store.LoadSnapshot()
	if err != nil {
		return err
	}
	restored := 0
	for _, reg := range regs {
		if reg.IsExpired(time.Now()) {
			continue
		}
		if err := s.registry.Register(reg); err != nil {
			s.logger.Warn("skipping snapshot registration",
				zap.String("agent", reg.AgentURI.String()), zap.Error(err))
			continue
		}
		restored++
	}
	if restored > 0 {
		s.logger.Info("restored registrations", zap.Int("count", restored))
	}
	return nil
}

// handleMessage processes one incoming protocol message.
func (s *ResolverServer) handleMessage(clientID string, data []byte) error {
	msg := &protocol.Message{}
	if err := msg.Unmarshal(data); err != nil {
		s.logger.Warn("failed to decode message",
			zap.String("client", clientID), zap.Error(err))
		return fmt.Errorf("invalid message format: %w", err)
	}

	switch msg.Type {
	case protocol.MessageTypePing:
		return s.reply(clientID, msg.ID, protocol.MessageTypePong, nil)
	case protocol.MessageTypeRegister:
		return s.handleRegister(clientID, msg)
	case protocol.MessageTypeUpdateEndpoints:
		return s.handleUpdateEndpoints(clientID, msg)
	case protocol.MessageTypeDeregister:
		return s.handleDeregister(clientID, msg)
	case protocol.MessageTypeLookup:
		return s.handleLookup(clientID, msg, false)
	case protocol.MessageTypeLookupPrefix:
		return s.handleLookup(clientID, msg, true)
	default:
		s.logger.Warn("unsupported message type",
			zap.String("client", clientID), zap.Uint8("type", uint8(msg.Type)))
		return s.sendError(clientID, msg.ID,
			protocol.NewWireError(protocol.CodeTransportError,
				fmt.Sprintf("unsupported message type 0x%02x", uint8(msg.Type))))
	}
}

// handleRegister stores a new registration.
func (s *ResolverServer) handleRegister(clientID string, msg *protocol.Message) error {
	var req protocol.RegisterRequest
	if err := msg.DecodePayload(&req); err != nil {
		return s.sendError(clientID, msg.ID,
			protocol.NewWireError(protocol.CodeTransportError, "malformed register payload"))
	}

	var reg dht.Registration
	if err := cbor.Unmarshal(req.Registration, &reg); err != nil {
		return s.sendError(clientID, msg.ID,
			protocol.NewWireError(protocol.CodeInvalidURI, err.Error()))
	}

	ttl := s.config.DefaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	reg = reg.WithTTL(ttl)

	if s.config.Verifier != nil {
		if reg.Attestation == "" {
			return s.sendError(clientID, msg.ID,
				protocol.NewWireError(protocol.CodeAttestationInvalid, "attestation required"))
		}
		_, err := s.config.Verifier.Verify(reg.Attestation, reg.AgentURI, reg.AgentURI.CapabilityPath())
		if err != nil {
			s.logger.Warn("attestation rejected",
				zap.String("agent", reg.AgentURI.String()), zap.Error(err))
			return s.sendError(clientID, msg.ID,
				protocol.NewWireError(protocol.CodeAttestationInvalid, err.Error()))
		}
	}

	if err := s.registry.Register(reg); err != nil {
		return s.sendError(clientID, msg.ID, wireErrorFor(err))
	}

	s.logger.Info("agent registered",
		zap.String("agent", reg.AgentURI.String()),
		zap.Int("endpoints", len(reg.Endpoints)))
	return s.reply(clientID, msg.ID, protocol.MessageTypeAck, nil)
}

// handleUpdateEndpoints migrates a registration to new endpoints.
func (s *ResolverServer) handleUpdateEndpoints(clientID string, msg *protocol.Message) error {
	var req protocol.UpdateEndpointsRequest
	if err := msg.DecodePayload(&req); err != nil {
		return s.sendError(clientID, msg.ID,
			protocol.NewWireError(protocol.CodeTransportError, "malformed update payload"))
	}

	agentURI, err := uri.Parse(req.AgentURI)
	if err != nil {
		return s.sendError(clientID, msg.ID,
			protocol.NewWireError(protocol.CodeInvalidURI, err.Error()))
	}
	var endpoints []dht.Endpoint
	if err := cbor.Unmarshal(req.Endpoints, &endpoints); err != nil {
		return s.sendError(clientID, msg.ID,
			protocol.NewWireError(protocol.CodeTransportError, "malformed endpoints"))
	}

	if err := s.registry.UpdateEndpoints(agentURI, endpoints); err != nil {
		return s.sendError(clientID, msg.ID, wireErrorFor(err))
	}

	s.logger.Info("agent migrated",
		zap.String("agent", agentURI.String()), zap.Int("endpoints", len(endpoints)))
	return s.reply(clientID, msg.ID, protocol.MessageTypeAck, nil)
}

// handleDeregister removes a registration.
func (s *ResolverServer) handleDeregister(clientID string, msg *protocol.Message) error {
	var req protocol.DeregisterRequest
	if err := msg.DecodePayload(&req); err != nil {
		return s.sendError(clientID, msg.ID,
			protocol.NewWireError(protocol.CodeTransportError, "malformed deregister payload"))
	}

	agentURI, err := uri.Parse(req.AgentURI)
	if err != nil {
		return s.sendError(clientID, msg.ID,
			protocol.NewWireError(protocol.CodeInvalidURI, err.Error()))
	}

	if err := s.registry.Deregister(agentURI); err != nil {
		return s.sendError(clientID, msg.ID, wireErrorFor(err))
	}

	s.logger.Info("agent deregistered", zap.String("agent", agentURI.String()))
	return s.reply(clientID, msg.ID, protocol.MessageTypeAck, nil)
}

// handleLookup answers exact and prefix lookups.
func (s *ResolverServer) handleLookup(clientID string, msg *protocol.Message, prefix bool) error {
	var req protocol.LookupRequest
	if err := msg.DecodePayload(&req); err != nil {
		return s.sendError(clientID, msg.ID,
			protocol.NewWireError(protocol.CodeTransportError, "malformed lookup payload"))
	}

	root, err := uri.ParseTrustRoot(req.TrustRoot)
	if err != nil {
		return s.sendError(clientID, msg.ID,
			protocol.NewWireError(protocol.CodeInvalidURI, err.Error()))
	}
	path, err := uri.ParseCapabilityPath(req.CapabilityPath)
	if err != nil {
		return s.sendError(clientID, msg.ID,
			protocol.NewWireError(protocol.CodeInvalidURI, err.Error()))
	}

	var regs []dht.Registration
	if prefix {
		regs, err = s.registry.LookupPrefix(root, path)
	} else {
		regs, err = s.registry.Lookup(root, path)
	}
	if err != nil {
		return s.sendError(clientID, msg.ID, wireErrorFor(err))
	}

	result := protocol.ResultPayload{}
	for _, reg := range regs {
		raw, err := reg.MarshalCBOR()
		if err != nil {
			s.logger.Error("failed to encode registration", zap.Error(err))
			continue
		}
		result.Registrations = append(result.Registrations, raw)
	}

	return s.reply(clientID, msg.ID, protocol.MessageTypeResult, result)
}

// reply sends a response message correlated to requestID.
func (s *ResolverServer) reply(clientID string, requestID []byte, msgType protocol.MessageType, payload interface{}) error {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	msg.CorrelationID = requestID

	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if !s.wsServer.SendToClient(clientID, data) {
		return fmt.Errorf("failed to send to client %s", clientID)
	}
	return nil
}

// sendError sends a wire error correlated to requestID.
func (s *ResolverServer) sendError(clientID string, requestID []byte, wireErr *protocol.WireError) error {
	msg, err := wireErr.ToMessage(requestID)
	if err != nil {
		return err
	}
	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	if !s.wsServer.SendToClient(clientID, data) {
		return fmt.Errorf("failed to send error to client %s", clientID)
	}
	return nil
}

// wireErrorFor maps registry errors to wire errors.
func wireErrorFor(err error) *protocol.WireError {
	switch {
	case errors.Is(err, dht.ErrNotFound), errors.Is(err, dht.ErrExpired):
		return protocol.NewWireError(protocol.CodeAgentNotFound, err.Error())
	case errors.Is(err, dht.ErrAlreadyRegistered):
		return protocol.NewWireError(protocol.CodeAlreadyRegistered, err.Error())
	case errors.Is(err, dht.ErrKeyCapacity):
		return protocol.NewWireError(protocol.CodeRegistrationFull, err.Error())
	case errors.Is(err, dht.ErrNoEndpoints):
		return protocol.NewWireError(protocol.CodeNoEndpoints, err.Error())
	default:
		return protocol.NewWireError(protocol.CodeInternalError, err.Error())
	}
}

// sweepLoop periodically drops expired registrations and snapshots the
// registry.
func (s *ResolverServer) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.ExpireStale(); n > 0 {
				s.logger.Info("expired registrations", zap.Int("count", n))
			}
			if err := s.store.SaveSnapshot(s.registry.Snapshot()); err != nil {
				s.logger.Warn("snapshot failed", zap.Error(err))
			}
		}
	}
}
