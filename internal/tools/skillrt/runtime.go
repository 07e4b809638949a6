// Package skillrt hosts WASM skills: each skill is a main.wasm module
// invoked with a JSON-encoded tool call and expected to return a JSON tool
// result, sandboxed by wazero under WASI with bounded memory, a fuel
// budget, and a wall-clock watchdog.
package skillrt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/agentbridge/agentbridge/internal/errs"
	"github.com/agentbridge/agentbridge/pkg/models"
)

const (
	memoryLimitPages = 1024             // 64 MiB, in 64 KiB wasm pages
	maxFuelUnits     = 50_000_000       // guest function-call budget
	pipeCapacity     = 256 << 10        // 256 KiB per stdout/stderr pipe
	mainModuleName   = "main.wasm"
)

// Runtime loads and executes skills/<name>/main.wasm modules under a
// workspace root.
type Runtime struct {
	workspaceRoot string
	rt            wazero.Runtime
}

// New creates a skill runtime rooted at workspaceRoot. skills are resolved
// at workspaceRoot/skills/<name>/main.wasm.
func New(ctx context.Context, workspaceRoot string) (*Runtime, error) {
	cfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(memoryLimitPages).
		WithCloseOnContextDone(true) // ctx cancellation interrupts a running module, our epoch-interruption watchdog.

	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, errs.Tool("instantiate WASI", err)
	}
	return &Runtime{workspaceRoot: workspaceRoot, rt: rt}, nil
}

// Close releases the underlying wazero runtime.
func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

// Run invokes the named skill's run export with call, waiting at most
// timeout before interrupting the module.
func (r *Runtime) Run(ctx context.Context, name string, call models.ToolCall, timeout time.Duration) (models.ToolResult, error) {
	wasmPath := filepath.Join(r.workspaceRoot, "skills", name, mainModuleName)
	code, err := os.ReadFile(wasmPath)
	if err != nil {
		return models.ToolResult{}, errs.Tool(fmt.Sprintf("read skill module %s", name), err)
	}

	compiled, err := r.rt.CompileModule(ctx, code)
	if err != nil {
		return models.ToolResult{}, errs.Tool(fmt.Sprintf("compile skill module %s", name), err)
	}
	defer compiled.Close(ctx)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var fuelUsed int64
	fuelCtx := experimental.WithFunctionListenerFactory(runCtx, fuelListenerFactory(&fuelUsed))

	var stdout, stderr boundedBuffer
	moduleCfg := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(filepath.Join(r.workspaceRoot), "/workspace")).
		WithName(name)

	mod, err := r.rt.InstantiateModule(fuelCtx, compiled, moduleCfg)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return errorResult("skill execution interrupted: wall-clock timeout exceeded"), nil
		}
		return models.ToolResult{}, errs.Tool(fmt.Sprintf("instantiate skill module %s", name), err)
	}
	defer mod.Close(context.Background())

	result, err := invoke(fuelCtx, mod, call)
	if atomic.LoadInt64(&fuelUsed) > maxFuelUnits {
		return errorResult("skill exhausted its fuel budget"), nil
	}
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return errorResult("skill execution interrupted: wall-clock timeout exceeded"), nil
		}
		return models.ToolResult{}, errs.Tool(fmt.Sprintf("run skill %s", name), err)
	}

	if out := stdout.String(); out != "" {
		result.Output += "\n" + out
	}
	if errOut := stderr.String(); errOut != "" {
		result.Output += "\n" + errOut
	}
	return result, nil
}

func errorResult(message string) models.ToolResult {
	return models.ToolResult{Output: message, IsError: true}
}

// invoke writes call as JSON into the module's memory via alloc, calls run,
// and decodes the packed (pointer<<32)|length handle into a ToolResult read
// back from guest memory.
func invoke(ctx context.Context, mod api.Module, call models.ToolCall) (models.ToolResult, error) {
	alloc := mod.ExportedFunction("alloc")
	run := mod.ExportedFunction("run")
	if alloc == nil || run == nil {
		return models.ToolResult{}, fmt.Errorf("module does not export alloc/run")
	}
	mem := mod.Memory()
	if mem == nil {
		return models.ToolResult{}, fmt.Errorf("module does not export memory")
	}

	payload, err := json.Marshal(call)
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("marshal tool call: %w", err)
	}

	allocRes, err := alloc.Call(ctx, uint64(len(payload)))
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("alloc: %w", err)
	}
	ptr := uint32(allocRes[0])

	if !mem.Write(ptr, payload) {
		return models.ToolResult{}, fmt.Errorf("write tool call into guest memory: out of bounds growth failure")
	}

	runRes, err := run.Call(ctx, uint64(ptr), uint64(len(payload)))
	if err != nil {
		return models.ToolResult{}, fmt.Errorf("run: %w", err)
	}
	handle := runRes[0]
	outPtr := uint32(handle >> 32)
	outLen := uint32(handle & 0xFFFFFFFF)

	data, ok := mem.Read(outPtr, outLen)
	if !ok {
		return models.ToolResult{}, fmt.Errorf("read tool result from guest memory: out of bounds")
	}

	var result models.ToolResult
	if err := json.Unmarshal(data, &result); err != nil {
		return models.ToolResult{}, fmt.Errorf("unmarshal tool result: %w", err)
	}

	if dealloc := mod.ExportedFunction("dealloc"); dealloc != nil {
		_, _ = dealloc.Call(ctx, uint64(outPtr), uint64(outLen))
	}
	return result, nil
}

// boundedBuffer caps writes at pipeCapacity bytes, silently dropping
// anything beyond the cap rather than growing without bound.
type boundedBuffer struct {
	data []byte
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := pipeCapacity - len(b.data)
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		p = p[:remaining]
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	return string(b.data)
}

// fuelListenerFactory approximates wasmtime-style fuel metering (not
// natively exposed by wazero) by counting guest function invocations via
// the experimental FunctionListener hook.
func fuelListenerFactory(counter *int64) experimental.FunctionListenerFactory {
	return fuelListenerFactoryImpl{counter: counter}
}

type fuelListenerFactoryImpl struct {
	counter *int64
}

func (f fuelListenerFactoryImpl) NewListener(def api.FunctionDefinition) experimental.FunctionListener {
	return fuelListener{counter: f.counter}
}

type fuelListener struct {
	counter *int64
}

func (f fuelListener) Before(ctx context.Context, mod api.Module, def api.FunctionDefinition, params []uint64, stack experimental.StackIterator) context.Context {
	atomic.AddInt64(f.counter, 1)
	return ctx
}

func (f fuelListener) After(ctx context.Context, mod api.Module, def api.FunctionDefinition, results []uint64) {}
