// Package host executes compiled modules with the wazero runtime.
package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("blowhai.host")

// TrapError reports a module that trapped while running, for example on
// integer division by zero.
type TrapError struct {
	Export string
	Err    error
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("%s trapped: %v", e.Export, e.Err)
}

func (e *TrapError) Unwrap() error { return e.Err }

// Runtime wraps a wazero runtime. Modules are compiled and instantiated per
// call, so one Runtime can serve concurrent callers.
type Runtime struct {
	rt wazero.Runtime
}

// NewRuntime creates a runtime. Close releases it.
func NewRuntime(ctx context.Context) *Runtime {
	return &Runtime{rt: wazero.NewRuntime(ctx)}
}

// Close releases the runtime and every module still instantiated in it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

// Validate compiles the module without running it.
func (r *Runtime) Validate(ctx context.Context, module []byte) error {
	compiled, err := r.rt.CompileModule(ctx, module)
	if err != nil {
		return fmt.Errorf("invalid module: %w", err)
	}
	return compiled.Close(ctx)
}

// Run instantiates module and calls export, which must take no parameters
// and return one i32. Start functions are disabled so export runs exactly
// once.
func (r *Runtime) Run(ctx context.Context, module []byte, export string) (int32, error) {
	compiled, err := r.rt.CompileModule(ctx, module)
	if err != nil {
		return 0, fmt.Errorf("invalid module: %w", err)
	}
	defer compiled.Close(ctx)

	// Anonymous instances so repeated runs do not collide on the module name.
	mod, err := r.rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return 0, fmt.Errorf("instantiate: %w", err)
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(export)
	if fn == nil {
		return 0, fmt.Errorf("module has no exported function %q", export)
	}
	if def := fn.Definition(); len(def.ParamTypes()) != 0 || len(def.ResultTypes()) != 1 || def.ResultTypes()[0] != api.ValueTypeI32 {
		return 0, fmt.Errorf("export %q has signature %v -> %v, want () -> i32", export, def.ParamTypes(), def.ResultTypes())
	}

	results, err := fn.Call(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return 0, ctxErr
		}
		log.Debugf("%s trapped: %s", export, err)
		return 0, &TrapError{Export: export, Err: err}
	}
	return api.DecodeI32(results[0]), nil
}

// Run executes module once in a fresh runtime.
func Run(ctx context.Context, module []byte, export string) (int32, error) {
	r := NewRuntime(ctx)
	defer r.Close(ctx)
	return r.Run(ctx, module, export)
}
