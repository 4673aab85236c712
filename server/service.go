package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/blowhai/cache"
	"github.com/chazu/blowhai/compiler"
	"github.com/chazu/blowhai/host"
)

// Procedure paths of the compiler service. Requests and responses are
// protobuf well-known wrapper messages, so no generated code is needed.
const (
	CompilerServiceName = "blowhai.v1.CompilerService"
	CompileProcedure    = "/" + CompilerServiceName + "/Compile"
	RunProcedure        = "/" + CompilerServiceName + "/Run"
	RequestIDHeader     = "Blowhai-Request-Id"
	maxSourceBytes      = 1 << 20
)

// CompileService compiles and runs blowhai programs on behalf of remote
// callers.
type CompileService struct {
	opts    compiler.Options
	cache   *cache.Cache // optional
	runtime *host.Runtime
}

// NewCompileService creates a CompileService. c may be nil.
func NewCompileService(opts compiler.Options, c *cache.Cache, rt *host.Runtime) *CompileService {
	return &CompileService{opts: opts, cache: c, runtime: rt}
}

// Compile translates source into a binary module.
func (s *CompileService) Compile(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.BytesValue], error) {
	id := uuid.NewString()
	module, err := s.compile(id, req.Msg.GetValue())
	if err != nil {
		return nil, err
	}

	resp := connect.NewResponse(wrapperspb.Bytes(module))
	resp.Header().Set(RequestIDHeader, id)
	return resp, nil
}

// Run compiles source and returns the value of its entry function.
func (s *CompileService) Run(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.Int32Value], error) {
	id := uuid.NewString()
	module, err := s.compile(id, req.Msg.GetValue())
	if err != nil {
		return nil, err
	}

	value, err := s.runtime.Run(ctx, module, s.opts.ExportName)
	if err != nil {
		log.Infof("[%s] run failed: %s", id, err)
		var trap *host.TrapError
		if errors.As(err, &trap) {
			return nil, withRequestID(connect.NewError(connect.CodeFailedPrecondition, err), id)
		}
		if ctx.Err() != nil {
			return nil, withRequestID(connect.NewError(connect.CodeCanceled, err), id)
		}
		return nil, withRequestID(connect.NewError(connect.CodeInternal, err), id)
	}

	resp := connect.NewResponse(wrapperspb.Int32(value))
	resp.Header().Set(RequestIDHeader, id)
	return resp, nil
}

func (s *CompileService) compile(id, source string) ([]byte, error) {
	if len(source) > maxSourceBytes {
		return nil, withRequestID(connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("source is %d bytes, limit is %d", len(source), maxSourceBytes)), id)
	}

	var (
		module []byte
		hit    bool
		err    error
	)
	if s.cache != nil {
		module, hit, err = s.cache.Compile(source, s.opts)
	} else {
		module, err = compiler.Compile(source, s.opts)
	}
	if err != nil {
		log.Debugf("[%s] compile failed: %s", id, err)
		return nil, withRequestID(connect.NewError(connect.CodeInvalidArgument, err), id)
	}
	log.Debugf("[%s] compiled %d bytes of source to %d bytes (cached: %t)", id, len(source), len(module), hit)
	return module, nil
}

func withRequestID(err *connect.Error, id string) *connect.Error {
	err.Meta().Set(RequestIDHeader, id)
	return err
}
