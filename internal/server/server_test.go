package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/agentries/agent-uri-go/internal/protocol"
	"github.com/agentries/agent-uri-go/internal/storage"
	"github.com/agentries/agent-uri-go/pkg/client"
	"github.com/agentries/agent-uri-go/pkg/dht"
	"github.com/agentries/agent-uri-go/pkg/uri"
)

// freePort reserves an ephemeral port and releases it for the server.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// startTestServer starts a resolver on an ephemeral port and returns a
// connected client.
func startTestServer(t *testing.T, cfg *Config) *client.Client {
	t.Helper()

	port := freePort(t)
	cfg.ListenAddr = fmt.Sprintf("127.0.0.1:%d", port)

	logger := zaptest.NewLogger(t)
	srv := NewResolverServer(cfg, logger)
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	url := fmt.Sprintf("ws://127.0.0.1:%d/ws", port)
	var c *client.Client
	var err error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		c, err = client.Dial(ctx, url, logger)
		cancel()
		if err == nil {
			t.Cleanup(func() { c.Close() })
			return c
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("dial resolver: %v", err)
	return nil
}

func testRegistration(t *testing.T, uriStr string) dht.Registration {
	t.Helper()
	u, err := uri.Parse(uriStr)
	if err != nil {
		t.Fatalf("parse uri: %v", err)
	}
	return dht.NewRegistration(u, []dht.Endpoint{dht.HTTPS("agent.example.com:443")})
}

func TestResolver_RegisterLookupDeregister(t *testing.T) {
	c := startTestServer(t, DefaultConfig())
	ctx := context.Background()

	reg := testRegistration(t, "agent://anthropic.com/assistant/chat/llm_01h455vb4pex5vsknk084sn02q")
	if err := c.Register(ctx, reg, 0); err != nil {
		t.Fatalf("register: %v", err)
	}

	root, _ := uri.ParseTrustRoot("anthropic.com")
	path, _ := uri.ParseCapabilityPath("assistant/chat")

	found, err := c.Lookup(ctx, root, path)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 registration, got %d", len(found))
	}
	if found[0].AgentURI.String() != reg.AgentURI.String() {
		t.Errorf("uri mismatch: %q", found[0].AgentURI.String())
	}

	if err := c.Deregister(ctx, reg.AgentURI); err != nil {
		t.Fatalf("deregister: %v", err)
	}

	found, err = c.Lookup(ctx, root, path)
	if err != nil {
		t.Fatalf("lookup after deregister: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected no registrations, got %d", len(found))
	}
}

func TestResolver_LookupPrefix(t *testing.T) {
	c := startTestServer(t, DefaultConfig())
	ctx := context.Background()

	uris := []string{
		"agent://anthropic.com/workflow/approval/llm_01h455vb4pex5vsknk084sn02q",
		"agent://anthropic.com/workflow/approval/invoice/rule_01h455vb4pex5vsknk084sn02r",
		"agent://anthropic.com/assistant/chat/llm_01h455vb4pex5vsknk084sn02s",
	}
	for _, s := range uris {
		if err := c.Register(ctx, testRegistration(t, s), 0); err != nil {
			t.Fatalf("register %s: %v", s, err)
		}
	}

	root, _ := uri.ParseTrustRoot("anthropic.com")
	path, _ := uri.ParseCapabilityPath("workflow")

	found, err := c.LookupPrefix(ctx, root, path)
	if err != nil {
		t.Fatalf("lookup prefix: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("expected 2 registrations under workflow, got %d", len(found))
	}
}

func TestResolver_UpdateEndpoints(t *testing.T) {
	c := startTestServer(t, DefaultConfig())
	ctx := context.Background()

	reg := testRegistration(t, "agent://anthropic.com/chat/llm_01h455vb4pex5vsknk084sn02q")
	if err := c.Register(ctx, reg, 0); err != nil {
		t.Fatalf("register: %v", err)
	}

	migrated := []dht.Endpoint{dht.GRPC("eu.agent.example.com:9000")}
	if err := c.UpdateEndpoints(ctx, reg.AgentURI, migrated); err != nil {
		t.Fatalf("update endpoints: %v", err)
	}

	found, err := c.Lookup(ctx, reg.AgentURI.TrustRoot(), reg.AgentURI.CapabilityPath())
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(found) != 1 || found[0].Endpoints[0].Protocol != "grpc" {
		t.Errorf("migration not visible: %+v", found)
	}
}

func TestResolver_DuplicateRegistrationError(t *testing.T) {
	c := startTestServer(t, DefaultConfig())
	ctx := context.Background()

	reg := testRegistration(t, "agent://anthropic.com/chat/llm_01h455vb4pex5vsknk084sn02q")
	if err := c.Register(ctx, reg, 0); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := c.Register(ctx, reg, 0)
	var wireErr *protocol.WireError
	if !errors.As(err, &wireErr) {
		t.Fatalf("expected *protocol.WireError, got %v", err)
	}
	if wireErr.Code != protocol.CodeAlreadyRegistered {
		t.Errorf("code %d, want %d", wireErr.Code, protocol.CodeAlreadyRegistered)
	}
}

func TestResolver_DeregisterUnknownError(t *testing.T) {
	c := startTestServer(t, DefaultConfig())
	ctx := context.Background()

	u, _ := uri.Parse("agent://anthropic.com/chat/llm_01h455vb4pex5vsknk084sn02q")
	err := c.Deregister(ctx, u)
	var wireErr *protocol.WireError
	if !errors.As(err, &wireErr) {
		t.Fatalf("expected *protocol.WireError, got %v", err)
	}
	if wireErr.Code != protocol.CodeAgentNotFound {
		t.Errorf("code %d, want %d", wireErr.Code, protocol.CodeAgentNotFound)
	}
}

func TestResolver_Ping(t *testing.T) {
	c := startTestServer(t, DefaultConfig())
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestResolver_SnapshotPersistence(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir + "/snapshot.cbor")
	if err != nil {
		t.Fatal(err)
	}

	// First server takes a registration; its registry is snapshotted to
	// the store.
	cfg := DefaultConfig()
	cfg.Store = store
	c := startTestServer(t, cfg)

	reg := testRegistration(t, "agent://anthropic.com/chat/llm_01h455vb4pex5vsknk084sn02q")
	if err := c.Register(context.Background(), reg, 0); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := store.SaveSnapshot(cfg.Registry.Snapshot()); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// A second server restores it.
	cfg2 := DefaultConfig()
	cfg2.Store = store
	c2 := startTestServer(t, cfg2)

	root, _ := uri.ParseTrustRoot("anthropic.com")
	path, _ := uri.ParseCapabilityPath("chat")
	found, err := c2.Lookup(context.Background(), root, path)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("expected restored registration, got %d", len(found))
	}
}

func TestWireErrorFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{dht.ErrNotFound, protocol.CodeAgentNotFound},
		{dht.ErrExpired, protocol.CodeAgentNotFound},
		{dht.ErrAlreadyRegistered, protocol.CodeAlreadyRegistered},
		{dht.ErrKeyCapacity, protocol.CodeRegistrationFull},
		{dht.ErrNoEndpoints, protocol.CodeNoEndpoints},
		{errors.New("other"), protocol.CodeInternalError},
	}
	for _, tt := range tests {
		if got := wireErrorFor(tt.err); got.Code != tt.code {
			t.Errorf("wireErrorFor(%v) = %d, want %d", tt.err, got.Code, tt.code)
		}
	}
}
