package wasmrun

import (
	"github.com/reflexrun/reflex/internal/bytecode"
	"github.com/reflexrun/reflex/internal/wasmgen"
)

func compileToWasm(bm *bytecode.Module) (*wasmgen.Module, error) {
	return wasmgen.Compile(bm)
}

func encodeWasm(wm *wasmgen.Module) ([]byte, error) {
	return wasmgen.Encode(wm)
}
