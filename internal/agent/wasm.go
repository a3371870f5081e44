package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// memoryLimitPages caps a single module invocation at 10MB (160 pages of
// 64KB each), matching the sandboxing posture the corpus applies to
// untrusted guest code.
const memoryLimitPages = 160

// wasmInvokeTimeout bounds a single invocation's wall-clock time; the
// runtime is configured to tear the module down when ctx is done.
const wasmInvokeTimeout = 30 * time.Second

// WASMScript is a sandboxed agent: the task prompt is a base64-encoded WASM
// binary (a compiled wasi_snapshot_preview1 module). Its stdout becomes the
// task's summary. This is the concrete realization of running untrusted,
// user-supplied task logic without embedding a language runtime in-process.
type WASMScript struct{}

// NewWASMScript returns the wasm_script reference agent.
func NewWASMScript() *WASMScript { return &WASMScript{} }

func (w *WASMScript) Type() string { return "wasm_script" }

func (w *WASMScript) Run(ctx context.Context, in Input, log LogSink) (Result, error) {
	wasmBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(in.Prompt))
	if err != nil {
		return Result{}, Permanent(fmt.Errorf("wasm_script: decode prompt as base64 module: %w", err))
	}

	invokeCtx, cancel := context.WithTimeout(ctx, wasmInvokeTimeout)
	defer cancel()

	runtimeCfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(memoryLimitPages).
		WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(invokeCtx, runtimeCfg)
	defer runtime.Close(invokeCtx)

	if _, err := wasi_snapshot_preview1.Instantiate(invokeCtx, runtime); err != nil {
		return Result{}, fmt.Errorf("wasm_script: instantiate wasi: %w", err)
	}

	compiled, err := runtime.CompileModule(invokeCtx, wasmBytes)
	if err != nil {
		return Result{}, Permanent(fmt.Errorf("wasm_script: compile module: %w", err))
	}

	var stdout bytes.Buffer
	modCfg := wazero.NewModuleConfig().WithStdout(&stdout).WithName("task")

	if log != nil {
		log(LogLine{Level: "info", Message: "instantiating wasm module"})
	}

	_, err = runtime.InstantiateModule(invokeCtx, compiled, modCfg)
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			return Result{Summary: stdout.String()}, nil
		}
		if errors.Is(invokeCtx.Err(), context.DeadlineExceeded) {
			return Result{}, Transient(fmt.Errorf("wasm_script: timed out: %w", err))
		}
		return Result{}, Permanent(fmt.Errorf("wasm_script: execution fault: %w", err))
	}

	return Result{Summary: stdout.String()}, nil
}
