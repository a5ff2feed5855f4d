// Package wasmgen emits the single WebAssembly module spec §4.F describes:
// linear memory, an indirect-call function table, the runtime-builtin
// import table, and one function per compiled top-level lambda — plus the
// §4.F.1 template-import link-editor that binds a shipped runtime.wasm's
// imports against a concrete user module.
package wasmgen

import "bytes"

// putUvarint appends v to buf as an unsigned LEB128 varint (the WASM binary
// format's integer encoding — there is no third-party WASM encoder in the
// example corpus, so this and putVarint are hand-rolled against
// encoding/binary's byte-order primitives the way the teacher's own
// internal/jit encodes fixed-width instruction fields by hand).
func putUvarint(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf.WriteByte(b | 0x80)
			continue
		}
		buf.WriteByte(b)
		return
	}
}

// putVarint appends v to buf as a signed LEB128 varint.
func putVarint(buf *bytes.Buffer, v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}

// decodeUvarint reads one LEB128 unsigned varint from the front of b,
// returning its value and the number of bytes consumed. Exists alongside
// the encoder so round-trip tests can check putUvarint without needing a
// full WASM parser.
func decodeUvarint(b []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, c := range b {
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	return v, len(b)
}

// putName appends a WASM "name" (length-prefixed UTF-8 string).
func putName(buf *bytes.Buffer, s string) {
	putUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

// putVector appends a LEB128 element count followed by the caller's
// already-encoded element bytes.
func putVector(buf *bytes.Buffer, count int, body []byte) {
	putUvarint(buf, uint64(count))
	buf.Write(body)
}

// section wraps body with its WASM section id and LEB128 byte-length
// prefix.
func section(id byte, body []byte) []byte {
	var out bytes.Buffer
	out.WriteByte(id)
	putUvarint(&out, uint64(len(body)))
	out.Write(body)
	return out.Bytes()
}
