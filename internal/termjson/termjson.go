// Package termjson decodes/encodes the JSON term grammar reflexd's
// `eval`/`watch` commands accept for query.json/state.json files, and
// render results back to. This is a CLI-boundary term-graph notation,
// not a source-language parser — spec §1 explicitly places "parsing of
// source languages" out of scope, and this package never tokenizes or
// parses free-form syntax, only decodes an already-structured JSON
// document into heap.Node constructor calls.
package termjson

import (
	"encoding/json"
	"fmt"

	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/expr"
	"github.com/reflexrun/reflex/internal/heap"
)

// term is the wire shape one JSON term node decodes from.
type term struct {
	Kind   string          `json:"kind"`
	Value  json.RawMessage `json:"value,omitempty"`
	Items  []term          `json:"items,omitempty"`
	Keys   []string        `json:"keys,omitempty"`
	Values []term          `json:"values,omitempty"`
	Depth  *uint32         `json:"depth,omitempty"`
	Arity  *uint32         `json:"arity,omitempty"`
	Body   *term           `json:"body,omitempty"`
	Init   *term           `json:"init,omitempty"`
	Target *term           `json:"target,omitempty"`
	Args   []term          `json:"args,omitempty"`
	Name   string          `json:"name,omitempty"`
}

// Decode parses raw (a JSON document matching the term grammar) into a
// term allocated on h, returning the resulting pointer.
func Decode(h *heap.Heap, raw []byte) (arena.Pointer, error) {
	var t term
	if err := json.Unmarshal(raw, &t); err != nil {
		return arena.NullPointer, fmt.Errorf("termjson: %w", err)
	}
	return decodeTerm(h, t)
}

func decodeTerm(h *heap.Heap, t term) (arena.Pointer, error) {
	switch t.Kind {
	case "nil":
		return h.Nil(), nil
	case "bool", "boolean":
		var v bool
		if err := json.Unmarshal(t.Value, &v); err != nil {
			return arena.NullPointer, fmt.Errorf("termjson: bool value: %w", err)
		}
		return h.Boolean(v), nil
	case "int":
		var v int64
		if err := json.Unmarshal(t.Value, &v); err != nil {
			return arena.NullPointer, fmt.Errorf("termjson: int value: %w", err)
		}
		return h.Int(v), nil
	case "float":
		var v float64
		if err := json.Unmarshal(t.Value, &v); err != nil {
			return arena.NullPointer, fmt.Errorf("termjson: float value: %w", err)
		}
		return h.Float(v), nil
	case "string":
		var v string
		if err := json.Unmarshal(t.Value, &v); err != nil {
			return arena.NullPointer, fmt.Errorf("termjson: string value: %w", err)
		}
		return h.String(v), nil
	case "list":
		items, err := decodeAll(h, t.Items)
		if err != nil {
			return arena.NullPointer, err
		}
		return h.List(items...), nil
	case "record":
		if len(t.Keys) != len(t.Values) {
			return arena.NullPointer, fmt.Errorf("termjson: record keys/values length mismatch (%d vs %d)", len(t.Keys), len(t.Values))
		}
		keyPtrs := make([]arena.Pointer, len(t.Keys))
		for i, k := range t.Keys {
			keyPtrs[i] = h.String(k)
		}
		valuePtrs, err := decodeAll(h, t.Values)
		if err != nil {
			return arena.NullPointer, err
		}
		return h.Record(h.List(keyPtrs...), h.List(valuePtrs...)), nil
	case "variable":
		if t.Depth == nil {
			return arena.NullPointer, fmt.Errorf("termjson: variable requires depth")
		}
		return h.Variable(*t.Depth), nil
	case "lambda":
		if t.Arity == nil || t.Body == nil {
			return arena.NullPointer, fmt.Errorf("termjson: lambda requires arity and body")
		}
		bodyPtr, err := decodeTerm(h, *t.Body)
		if err != nil {
			return arena.NullPointer, err
		}
		return h.Lambda(*t.Arity, bodyPtr), nil
	case "let":
		if t.Init == nil || t.Body == nil {
			return arena.NullPointer, fmt.Errorf("termjson: let requires init and body")
		}
		initPtr, err := decodeTerm(h, *t.Init)
		if err != nil {
			return arena.NullPointer, err
		}
		bodyPtr, err := decodeTerm(h, *t.Body)
		if err != nil {
			return arena.NullPointer, err
		}
		return h.Let(initPtr, bodyPtr), nil
	case "builtin":
		id, ok := expr.BuiltinByName(t.Name)
		if !ok {
			return arena.NullPointer, fmt.Errorf("termjson: unknown builtin %q", t.Name)
		}
		return h.Builtin(id), nil
	case "application":
		if t.Target == nil {
			return arena.NullPointer, fmt.Errorf("termjson: application requires target")
		}
		targetPtr, err := decodeTerm(h, *t.Target)
		if err != nil {
			return arena.NullPointer, err
		}
		argPtrs, err := decodeAll(h, t.Args)
		if err != nil {
			return arena.NullPointer, err
		}
		return h.Application(targetPtr, h.List(argPtrs...)), nil
	default:
		return arena.NullPointer, fmt.Errorf("termjson: unrecognized kind %q", t.Kind)
	}
}

func decodeAll(h *heap.Heap, ts []term) ([]arena.Pointer, error) {
	out := make([]arena.Pointer, len(ts))
	for i, t := range ts {
		p, err := decodeTerm(h, t)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Encode renders any term (including result/signal/condition shapes a
// worker returns, which Decode never needs to parse back in) as a
// JSON-marshalable value for `reflexd eval`'s output and the watch TUI.
func Encode(h *heap.Heap, p arena.Pointer) interface{} {
	n := h.Get(p)
	switch n.Kind {
	case heap.KindNil:
		return map[string]interface{}{"kind": "nil"}
	case heap.KindBoolean:
		return map[string]interface{}{"kind": "bool", "value": n.Bool}
	case heap.KindInt:
		return map[string]interface{}{"kind": "int", "value": n.Int}
	case heap.KindFloat:
		return map[string]interface{}{"kind": "float", "value": n.Float}
	case heap.KindString:
		return map[string]interface{}{"kind": "string", "value": n.Str}
	case heap.KindList:
		items := h.ListItems(p)
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = Encode(h, it)
		}
		return map[string]interface{}{"kind": "list", "items": out}
	case heap.KindRecord:
		keys := h.ListItems(n.Children[0])
		values := h.ListItems(n.Children[1])
		keyStrs := make([]string, len(keys))
		for i, k := range keys {
			keyStrs[i] = h.Get(k).Str
		}
		valOut := make([]interface{}, len(values))
		for i, v := range values {
			valOut[i] = Encode(h, v)
		}
		return map[string]interface{}{"kind": "record", "keys": keyStrs, "values": valOut}
	default:
		children := make([]interface{}, len(n.Children))
		for i, c := range n.Children {
			children[i] = Encode(h, c)
		}
		return map[string]interface{}{"kind": n.Kind.String(), "children": children}
	}
}
