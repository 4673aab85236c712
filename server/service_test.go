package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/blowhai/cache"
	"github.com/chazu/blowhai/compiler"
	"github.com/chazu/blowhai/host"
)

func bg() context.Context {
	return context.Background()
}

func newTestServer(t *testing.T, options ...ServerOption) (*CompileServer, *httptest.Server) {
	t.Helper()
	s := New(compiler.DefaultOptions(), options...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return s, ts
}

// ---------------------------------------------------------------------------
// Service methods, called directly
// ---------------------------------------------------------------------------

func TestCompileService_Compile(t *testing.T) {
	rt := host.NewRuntime(bg())
	defer rt.Close(bg())
	svc := NewCompileService(compiler.DefaultOptions(), nil, rt)

	resp, err := svc.Compile(bg(), connect.NewRequest(wrapperspb.String("(3 + 4);")))
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	want, _ := compiler.Compile("(3 + 4);", compiler.DefaultOptions())
	if !bytes.Equal(resp.Msg.GetValue(), want) {
		t.Error("service module differs from compiler.Compile")
	}
	if resp.Header().Get(RequestIDHeader) == "" {
		t.Error("response should carry a request id")
	}
}

func TestCompileService_CompileError(t *testing.T) {
	rt := host.NewRuntime(bg())
	defer rt.Close(bg())
	svc := NewCompileService(compiler.DefaultOptions(), nil, rt)

	_, err := svc.Compile(bg(), connect.NewRequest(wrapperspb.String("(3 + ;)")))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("code = %v, want invalid_argument (err %v)", connect.CodeOf(err), err)
	}
	var ce *connect.Error
	if !errors.As(err, &ce) || ce.Meta().Get(RequestIDHeader) == "" {
		t.Error("error should carry a request id")
	}
}

func TestCompileService_RunTrap(t *testing.T) {
	rt := host.NewRuntime(bg())
	defer rt.Close(bg())
	svc := NewCompileService(compiler.DefaultOptions(), nil, rt)

	_, err := svc.Run(bg(), connect.NewRequest(wrapperspb.String("1 / 0;")))
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("code = %v, want failed_precondition (err %v)", connect.CodeOf(err), err)
	}
}

func TestCompileService_SourceLimit(t *testing.T) {
	rt := host.NewRuntime(bg())
	defer rt.Close(bg())
	svc := NewCompileService(compiler.DefaultOptions(), nil, rt)

	huge := strings.Repeat("1;", maxSourceBytes)
	_, err := svc.Compile(bg(), connect.NewRequest(wrapperspb.String(huge)))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want invalid_argument", connect.CodeOf(err))
	}
}

// ---------------------------------------------------------------------------
// Over HTTP
// ---------------------------------------------------------------------------

func TestClient_ConnectProtocol(t *testing.T) {
	_, ts := newTestServer(t)
	client := NewClient(http.DefaultClient, ts.URL)

	got, err := client.Run(bg(), "var x = 6; (x * 7);")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 42 {
		t.Errorf("Run = %d, want 42", got)
	}

	module, err := client.Compile(bg(), "42;")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if v, err := host.Run(bg(), module, compiler.DefaultExportName); err != nil || v != 42 {
		t.Errorf("running fetched module: %d, %v", v, err)
	}

	_, err = client.Compile(bg(), "(x + 1);")
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want invalid_argument", connect.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "unknown symbol") {
		t.Errorf("error should describe the failure: %v", err)
	}
}

func TestClient_WithCache(t *testing.T) {
	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, ts := newTestServer(t, WithCache(c))
	client := NewClient(http.DefaultClient, ts.URL)

	for i := 0; i < 3; i++ {
		if _, err := client.Compile(bg(), "(1 + 2);"); err != nil {
			t.Fatal(err)
		}
	}
	if s := c.Stats(); s.Misses != 1 || s.Hits != 2 {
		t.Errorf("cache stats = %+v, want 1 miss 2 hits", s)
	}
}

func TestClient_GRPCOverTLS(t *testing.T) {
	s := New(compiler.DefaultOptions())
	defer s.Stop()
	ts := httptest.NewUnstartedServer(s.Handler())
	ts.EnableHTTP2 = true
	ts.StartTLS()
	defer ts.Close()

	client := NewClient(ts.Client(), ts.URL, connect.WithGRPC())
	got, err := client.Run(bg(), "(3 * (4 - 1));")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 9 {
		t.Errorf("Run = %d, want 9", got)
	}
}

func TestGRPCClient_Cleartext(t *testing.T) {
	_, ts := newTestServer(t)
	addr := strings.TrimPrefix(ts.URL, "http://")

	conn, err := grpc.NewClient("passthrough:///"+addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	out := &wrapperspb.Int32Value{}
	if err := conn.Invoke(bg(), RunProcedure, wrapperspb.String("(10 - 3);"), out); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.GetValue() != 7 {
		t.Errorf("Run = %d, want 7", out.GetValue())
	}

	err = conn.Invoke(bg(), CompileProcedure, wrapperspb.String("var a; var a;"), &wrapperspb.BytesValue{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", status.Code(err))
	}
}
