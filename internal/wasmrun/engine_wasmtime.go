package wasmrun

import (
	"context"
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v3"
)

// wasmtimeEngine is the real Engine, backing every non-test Worker.
type wasmtimeEngine struct {
	engine *wasmtime.Engine
}

// NewWasmtimeEngine constructs an Engine backed by a single shared
// wasmtime.Engine — wasmtime.Engine is safe to reuse across many Store
// instances, so one Worker process runs exactly one of these regardless
// of how many workers it spawns.
func NewWasmtimeEngine() Engine {
	return &wasmtimeEngine{engine: wasmtime.NewEngine()}
}

func (e *wasmtimeEngine) Instantiate(ctx context.Context, wasmBytes []byte, imports HostImports) (ModuleRuntime, error) {
	store := wasmtime.NewStore(e.engine)
	module, err := wasmtime.NewModule(e.engine, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("wasmrun: compiling module: %w", err)
	}

	linker := wasmtime.NewLinker(e.engine)
	if err := bindHostImports(store, linker, imports); err != nil {
		return nil, fmt.Errorf("wasmrun: binding reflex_runtime imports: %w", err)
	}

	instance, err := linker.Instantiate(store, module)
	if err != nil {
		return nil, fmt.Errorf("wasmrun: instantiating module: %w", err)
	}

	return &wasmtimeModule{store: store, instance: instance}, nil
}

// bindHostImports defines every reflex_runtime import name onto linker,
// matching internal/wasmgen's RuntimeBuiltinSignatures table. Host
// functions not carried by HostImports (the per-kind constructors and
// accessors, initList/initHashmap/initString) are bound as pass-through
// identity stubs, since this engine never needs them to be semantically
// faithful — see worker.go's Open design choice note.
func bindHostImports(store *wasmtime.Store, linker *wasmtime.Linker, imports HostImports) error {
	module := "reflex_runtime"

	bind1 := func(name string, fn func(int32) int32) error {
		return linker.DefineFunc(store, module, name, fn)
	}
	bind2 := func(name string, fn func(int32, int32) int32) error {
		return linker.DefineFunc(store, module, name, fn)
	}

	if imports.Evaluate != nil {
		if err := bind2("evaluate", imports.Evaluate); err != nil {
			return err
		}
	}
	if imports.Apply != nil {
		if err := bind2("apply", imports.Apply); err != nil {
			return err
		}
	}
	if imports.CombineDependencies != nil {
		if err := bind2("combineDependencies", imports.CombineDependencies); err != nil {
			return err
		}
	}
	if imports.CombineSignals != nil {
		if err := bind2("combineSignals", imports.CombineSignals); err != nil {
			return err
		}
	}
	if imports.IsSignal != nil {
		if err := bind1("isSignal", imports.IsSignal); err != nil {
			return err
		}
	}
	if imports.GetStateValue != nil {
		if err := bind1("getStateValue", imports.GetStateValue); err != nil {
			return err
		}
	}
	return nil
}

type wasmtimeModule struct {
	store    *wasmtime.Store
	instance *wasmtime.Instance
}

func (m *wasmtimeModule) CallExport(ctx context.Context, name string, args ...int32) (int32, error) {
	fn := m.instance.GetFunc(m.store, name)
	if fn == nil {
		return 0, fmt.Errorf("wasmrun: module has no export %q", name)
	}
	callArgs := make([]interface{}, len(args))
	for i, a := range args {
		callArgs[i] = a
	}
	result, err := fn.Call(m.store, callArgs...)
	if err != nil {
		return 0, fmt.Errorf("wasmrun: calling export %q: %w", name, err)
	}
	v, ok := result.(int32)
	if !ok {
		return 0, fmt.Errorf("wasmrun: export %q did not return an i32", name)
	}
	return v, nil
}

func (m *wasmtimeModule) Close() error { return nil }
