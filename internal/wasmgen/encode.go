package wasmgen

import (
	"bytes"
	"fmt"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}
var wasmVersion = []byte{0x01, 0x00, 0x00, 0x00}

const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secTable    = 4
	secMemory   = 5
	secExport   = 7
	secCode     = 10
)

// Encode serializes m into a binary WASM module.
func Encode(m *Module) ([]byte, error) {
	var out bytes.Buffer
	out.Write(wasmMagic)
	out.Write(wasmVersion)

	out.Write(section(secType, encodeTypeSection(m)))
	if len(m.Imports) > 0 {
		out.Write(section(secImport, encodeImportSection(m)))
	}
	if len(m.Functions) > 0 {
		out.Write(section(secFunction, encodeFunctionSection(m)))
	}
	if m.TableSize > 0 {
		out.Write(section(secTable, encodeTableSection(m)))
	}
	out.Write(section(secMemory, encodeMemorySection(m)))
	if len(m.Exports) > 0 {
		out.Write(section(secExport, encodeExportSection(m)))
	}
	if len(m.Functions) > 0 {
		code, err := encodeCodeSection(m)
		if err != nil {
			return nil, err
		}
		out.Write(section(secCode, code))
	}
	return out.Bytes(), nil
}

func encodeTypeSection(m *Module) []byte {
	var body bytes.Buffer
	for _, t := range m.Types {
		body.WriteByte(0x60) // functype discriminant
		putVector(&body, len(t.Params), valTypeBytes(t.Params))
		putVector(&body, len(t.Results), valTypeBytes(t.Results))
	}
	var out bytes.Buffer
	putVector(&out, len(m.Types), body.Bytes())
	return out.Bytes()
}

func valTypeBytes(ts []ValType) []byte {
	out := make([]byte, len(ts))
	for i, t := range ts {
		out[i] = byte(t)
	}
	return out
}

func encodeImportSection(m *Module) []byte {
	var body bytes.Buffer
	for _, imp := range m.Imports {
		putName(&body, imp.Module)
		putName(&body, imp.Name)
		switch imp.Kind {
		case ImportFunc:
			body.WriteByte(0x00)
			putUvarint(&body, uint64(imp.TypeIndex))
		case ImportTable:
			body.WriteByte(0x01)
			body.WriteByte(byte(ValFuncRef))
			body.WriteByte(0x00)
			putUvarint(&body, 0)
		case ImportMemory:
			body.WriteByte(0x02)
			body.WriteByte(0x00)
			putUvarint(&body, 0)
		case ImportGlobal:
			body.WriteByte(0x03)
			body.WriteByte(byte(ValI32))
			body.WriteByte(0x00)
		}
	}
	var out bytes.Buffer
	putVector(&out, len(m.Imports), body.Bytes())
	return out.Bytes()
}

func encodeFunctionSection(m *Module) []byte {
	var body bytes.Buffer
	for _, fn := range m.Functions {
		putUvarint(&body, uint64(fn.TypeIndex))
	}
	var out bytes.Buffer
	putVector(&out, len(m.Functions), body.Bytes())
	return out.Bytes()
}

func encodeTableSection(m *Module) []byte {
	var body bytes.Buffer
	putUvarint(&body, 1) // one table
	body.WriteByte(byte(ValFuncRef))
	body.WriteByte(0x00) // flags: min only
	putUvarint(&body, uint64(m.TableSize))
	var out bytes.Buffer
	putVector(&out, 1, body.Bytes())
	return out.Bytes()
}

func encodeMemorySection(m *Module) []byte {
	var body bytes.Buffer
	body.WriteByte(0x00) // flags: min only
	putUvarint(&body, uint64(m.MemoryMin))
	var out bytes.Buffer
	putVector(&out, 1, body.Bytes())
	return out.Bytes()
}

func encodeExportSection(m *Module) []byte {
	var body bytes.Buffer
	for _, ex := range m.Exports {
		putName(&body, ex.Name)
		switch ex.Kind {
		case ImportFunc:
			body.WriteByte(0x00)
		case ImportTable:
			body.WriteByte(0x01)
		case ImportMemory:
			body.WriteByte(0x02)
		case ImportGlobal:
			body.WriteByte(0x03)
		}
		putUvarint(&body, uint64(ex.Index))
	}
	var out bytes.Buffer
	putVector(&out, len(m.Exports), body.Bytes())
	return out.Bytes()
}

func encodeCodeSection(m *Module) ([]byte, error) {
	var out bytes.Buffer
	var bodies bytes.Buffer
	for _, fn := range m.Functions {
		var fb bytes.Buffer
		putVector(&fb, len(fn.Locals), encodeLocalDecls(fn.Locals))
		body, err := encodeInstrs(fn.Body)
		if err != nil {
			return nil, fmt.Errorf("wasmgen: function %q: %w", fn.Name, err)
		}
		fb.Write(body)
		fb.WriteByte(0x0B) // end

		var framed bytes.Buffer
		putUvarint(&framed, uint64(fb.Len()))
		framed.Write(fb.Bytes())
		bodies.Write(framed.Bytes())
	}
	putVector(&out, len(m.Functions), bodies.Bytes())
	return out.Bytes(), nil
}

// encodeLocalDecls groups consecutive identical types into (count, type)
// runs, as the WASM local-declaration vector requires.
func encodeLocalDecls(locals []ValType) []byte {
	var out bytes.Buffer
	runs := 0
	var runBuf bytes.Buffer
	i := 0
	for i < len(locals) {
		j := i
		for j < len(locals) && locals[j] == locals[i] {
			j++
		}
		putUvarint(&runBuf, uint64(j-i))
		runBuf.WriteByte(byte(locals[i]))
		runs++
		i = j
	}
	putUvarint(&out, uint64(runs))
	out.Write(runBuf.Bytes())
	return out.Bytes()
}

func encodeInstrs(code []Instr) ([]byte, error) {
	var out bytes.Buffer
	for _, ins := range code {
		if err := encodeInstr(&out, ins); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

func blockTypeByte(bt []ValType) byte {
	if len(bt) == 0 {
		return 0x40
	}
	return byte(bt[0])
}

func encodeInstr(out *bytes.Buffer, ins Instr) error {
	switch ins.Op {
	case OpUnreachable:
		out.WriteByte(0x00)
	case OpNop:
		out.WriteByte(0x01)
	case OpBlock, OpLoop:
		if ins.Op == OpBlock {
			out.WriteByte(0x02)
		} else {
			out.WriteByte(0x03)
		}
		out.WriteByte(blockTypeByte(ins.BlockType))
		body, err := encodeInstrs(ins.Then)
		if err != nil {
			return err
		}
		out.Write(body)
		out.WriteByte(0x0B)
	case OpIf:
		out.WriteByte(0x04)
		out.WriteByte(blockTypeByte(ins.BlockType))
		thenBody, err := encodeInstrs(ins.Then)
		if err != nil {
			return err
		}
		out.Write(thenBody)
		if len(ins.Else) > 0 {
			out.WriteByte(0x05)
			elseBody, err := encodeInstrs(ins.Else)
			if err != nil {
				return err
			}
			out.Write(elseBody)
		}
		out.WriteByte(0x0B)
	case OpBr:
		out.WriteByte(0x0C)
		putUvarint(out, ins.Imm[0])
	case OpBrIf:
		out.WriteByte(0x0D)
		putUvarint(out, ins.Imm[0])
	case OpBrTable:
		out.WriteByte(0x0E)
		putUvarint(out, uint64(len(ins.Imm)-1))
		for _, target := range ins.Imm {
			putUvarint(out, target)
		}
	case OpReturn:
		out.WriteByte(0x0F)
	case OpCall:
		out.WriteByte(0x10)
		putUvarint(out, ins.Imm[0])
	case OpCallIndirect:
		out.WriteByte(0x11)
		putUvarint(out, ins.Imm[0]) // type index
		putUvarint(out, 0)          // table index
	case OpLocalGet:
		out.WriteByte(0x20)
		putUvarint(out, ins.Imm[0])
	case OpLocalSet:
		out.WriteByte(0x21)
		putUvarint(out, ins.Imm[0])
	case OpLocalTee:
		out.WriteByte(0x22)
		putUvarint(out, ins.Imm[0])
	case OpGlobalGet:
		out.WriteByte(0x23)
		putUvarint(out, ins.Imm[0])
	case OpGlobalSet:
		out.WriteByte(0x24)
		putUvarint(out, ins.Imm[0])
	case OpI32Const:
		out.WriteByte(0x41)
		putVarint(out, int64(int32(ins.Imm[0])))
	case OpI64Const:
		out.WriteByte(0x42)
		putVarint(out, int64(ins.Imm[0]))
	case OpI32Eq:
		out.WriteByte(0x46)
	case OpI32Eqz:
		out.WriteByte(0x45)
	case OpDrop:
		out.WriteByte(0x1A)
	case OpSelect:
		out.WriteByte(0x1B)
	case OpDataDrop:
		return fmt.Errorf("wasmgen: data.drop is not supported by the template linker (spec §4.F.1)")
	default:
		return fmt.Errorf("wasmgen: unknown instruction op %d", ins.Op)
	}
	return nil
}
