package wasmgen

import (
	"bytes"
	"testing"

	"github.com/reflexrun/reflex/internal/bytecode"
	"github.com/reflexrun/reflex/internal/expr"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/stretchr/testify/require"
)

func TestLEB128UvarintRoundTrips(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40}
	for _, v := range cases {
		var buf bytes.Buffer
		putUvarint(&buf, v)
		got, n := decodeUvarint(buf.Bytes())
		require.Equal(t, v, got)
		require.Equal(t, buf.Len(), n)
	}
}

func TestEncodeProducesValidHeader(t *testing.T) {
	m := NewModule(1)
	bytes, err := Encode(m)
	require.NoError(t, err)
	require.Equal(t, wasmMagic, bytes[0:4])
	require.Equal(t, wasmVersion, bytes[4:8])
}

func TestEncodeEmitsMemoryAndFunctionSections(t *testing.T) {
	m := NewModule(2)
	fn := Function{Name: "double", Body: []Instr{
		{Op: OpLocalGet, Imm: []uint64{0}},
		{Op: OpLocalGet, Imm: []uint64{0}},
		{Op: OpCall, Imm: []uint64{0}},
	}}
	idx := m.AddImportFunc(RuntimeModuleName, "stdlib_add", FuncType{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}})
	require.Equal(t, uint32(0), idx)
	m.AddFunction(fn, FuncType{Params: []ValType{ValI32}, Results: []ValType{ValI32}})
	m.AddExport("double", ImportFunc, 1)

	out, err := Encode(m)
	require.NoError(t, err)
	require.True(t, len(out) > 8)
	require.True(t, bytes.Contains(out, section(secMemory, encodeMemorySection(m))))
	require.True(t, bytes.Contains(out, section(secFunction, encodeFunctionSection(m))))
}

func TestImportRuntimeBuiltinsRegistersEveryName(t *testing.T) {
	m := NewModule(1)
	indices := ImportRuntimeBuiltins(m)
	_, ok := indices["evaluate"]
	require.True(t, ok)
	_, ok = indices["constructLambda"]
	require.True(t, ok)
	require.Equal(t, len(indices), len(m.Imports))
}

func TestLinkerRejectsBranchTableAndDataDrop(t *testing.T) {
	src := NewModule(0)
	src.AddImportFunc("$", "host_fn", FuncType{Results: []ValType{ValI32}})
	src.Functions = append(src.Functions, Function{
		Name: "tmpl",
		Body: []Instr{{Op: OpBrTable, Imm: []uint64{0, 1}}},
	})
	dest := NewModule(1)
	_, err := ImportTemplateFunction(dest, src, "tmpl", Bindings{Funcs: map[string]uint32{"$.host_fn": 0}})
	require.Error(t, err)

	src2 := NewModule(0)
	src2.Functions = append(src2.Functions, Function{Name: "tmpl2", Body: []Instr{{Op: OpDataDrop}}})
	_, err = ImportTemplateFunction(dest, src2, "tmpl2", Bindings{})
	require.Error(t, err)
}

func TestLinkerRewritesCallTargetsToDestinationBindings(t *testing.T) {
	src := NewModule(0)
	src.AddImportFunc("$", "combine", FuncType{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}})
	src.Functions = append(src.Functions, Function{
		Name: "tmpl",
		Body: []Instr{
			{Op: OpLocalGet, Imm: []uint64{0}},
			{Op: OpLocalGet, Imm: []uint64{1}},
			{Op: OpCall, Imm: []uint64{0}}, // calls src's own import index 0
		},
	})

	dest := NewModule(1)
	realCombine := dest.AddImportFunc(RuntimeModuleName, "combineDependencies", FuncType{Params: []ValType{ValI32, ValI32}, Results: []ValType{ValI32}})

	destIdx, err := ImportTemplateFunction(dest, src, "tmpl", Bindings{
		Funcs: map[string]uint32{"$.combine": realCombine},
	})
	require.NoError(t, err)

	fn := dest.Functions[destIdx-uint32(dest.importFuncCount())]
	lastInstr := fn.Body[len(fn.Body)-1]
	require.Equal(t, OpCall, lastInstr.Op)
	require.Equal(t, uint64(realCombine), lastInstr.Imm[0])
}

// Compiling a small expr term end to end (Normalize -> bytecode.Compile ->
// wasmgen.Compile -> Encode) should succeed and produce a non-empty binary
// with an "entry" export, confirming the whole codegen pipeline is wired.
func TestCompileFullPipelineConstantFolding(t *testing.T) {
	h := heap.New()
	term := expr.Normalize(h, h.Application(h.Builtin(expr.BuiltinAdd), h.List(h.Int(2), h.Int(3))))

	bc := bytecode.NewCompiler(h, bytecode.DefaultCompilerOptions())
	bm, err := bc.Compile(term)
	require.NoError(t, err)

	wm, err := Compile(bm)
	require.NoError(t, err)
	require.NotEmpty(t, wm.Exports)

	out, err := Encode(wm)
	require.NoError(t, err)
	require.Equal(t, wasmMagic, out[0:4])
}

func TestCompileLiftedLambdaSharesOneFunction(t *testing.T) {
	h := heap.New()
	body := h.Application(h.Builtin(expr.BuiltinAdd), h.List(h.Variable(1), h.Variable(0)))
	lambda := h.Lambda(2, body)
	call1 := h.Application(lambda, h.List(h.Int(1), h.Int(2)))
	call2 := h.Application(lambda, h.List(h.Int(3), h.Int(4)))
	term := h.Application(h.Builtin(expr.BuiltinAdd), h.List(call1, call2))

	bc := bytecode.NewCompiler(h, bytecode.DefaultCompilerOptions())
	bm, err := bc.Compile(term)
	require.NoError(t, err)
	require.Len(t, bm.Functions, 1)

	wm, err := Compile(bm)
	require.NoError(t, err)
	require.Equal(t, uint32(1), wm.TableSize)
}
