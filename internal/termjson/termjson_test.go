package termjson

import (
	"testing"

	"github.com/reflexrun/reflex/internal/heap"
)

func TestDecodeScalars(t *testing.T) {
	h := heap.New()

	cases := []struct {
		name string
		json string
		want func(n heap.Node) bool
	}{
		{"int", `{"kind":"int","value":3}`, func(n heap.Node) bool { return n.Kind == heap.KindInt && n.Int == 3 }},
		{"float", `{"kind":"float","value":3.5}`, func(n heap.Node) bool { return n.Kind == heap.KindFloat && n.Float == 3.5 }},
		{"bool", `{"kind":"bool","value":true}`, func(n heap.Node) bool { return n.Kind == heap.KindBoolean && n.Bool == true }},
		{"string", `{"kind":"string","value":"hi"}`, func(n heap.Node) bool { return n.Kind == heap.KindString && n.Str == "hi" }},
		{"nil", `{"kind":"nil"}`, func(n heap.Node) bool { return n.Kind == heap.KindNil }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, err := Decode(h, []byte(c.json))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !c.want(h.Get(p)) {
				t.Errorf("unexpected node for %s: %+v", c.name, h.Get(p))
			}
		})
	}
}

func TestDecodeListAndRecord(t *testing.T) {
	h := heap.New()

	p, err := Decode(h, []byte(`{"kind":"list","items":[{"kind":"int","value":1},{"kind":"int","value":2}]}`))
	if err != nil {
		t.Fatalf("Decode list: %v", err)
	}
	items := h.ListItems(p)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if h.Get(items[0]).Int != 1 || h.Get(items[1]).Int != 2 {
		t.Errorf("unexpected list contents: %+v %+v", h.Get(items[0]), h.Get(items[1]))
	}

	rp, err := Decode(h, []byte(`{"kind":"record","keys":["a","b"],"values":[{"kind":"int","value":1},{"kind":"int","value":2}]}`))
	if err != nil {
		t.Fatalf("Decode record: %v", err)
	}
	if h.Get(rp).Kind != heap.KindRecord {
		t.Errorf("expected KindRecord, got %v", h.Get(rp).Kind)
	}
}

func TestDecodeApplicationWithBuiltin(t *testing.T) {
	h := heap.New()

	raw := []byte(`{
		"kind": "application",
		"target": {"kind": "builtin", "name": "add"},
		"args": [{"kind": "int", "value": 1}, {"kind": "int", "value": 2}]
	}`)
	p, err := Decode(h, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	n := h.Get(p)
	if n.Kind != heap.KindApplication {
		t.Fatalf("expected KindApplication, got %v", n.Kind)
	}
	target := h.Get(n.Children[0])
	if target.Kind != heap.KindBuiltin {
		t.Fatalf("expected KindBuiltin target, got %v", target.Kind)
	}
}

func TestDecodeUnknownBuiltinErrors(t *testing.T) {
	h := heap.New()
	_, err := Decode(h, []byte(`{"kind":"builtin","name":"no_such_builtin"}`))
	if err == nil {
		t.Fatal("expected an error for an unknown builtin name")
	}
}

func TestDecodeLambdaAndLet(t *testing.T) {
	h := heap.New()

	p, err := Decode(h, []byte(`{"kind":"lambda","arity":1,"body":{"kind":"variable","depth":0}}`))
	if err != nil {
		t.Fatalf("Decode lambda: %v", err)
	}
	if h.Get(p).Kind != heap.KindLambda {
		t.Errorf("expected KindLambda, got %v", h.Get(p).Kind)
	}

	lp, err := Decode(h, []byte(`{"kind":"let","init":{"kind":"int","value":1},"body":{"kind":"variable","depth":0}}`))
	if err != nil {
		t.Fatalf("Decode let: %v", err)
	}
	if h.Get(lp).Kind != heap.KindLet {
		t.Errorf("expected KindLet, got %v", h.Get(lp).Kind)
	}
}

func TestEncodeRoundTripsScalarsAndLists(t *testing.T) {
	h := heap.New()
	p, err := Decode(h, []byte(`{"kind":"list","items":[{"kind":"int","value":1},{"kind":"string","value":"x"}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out, ok := Encode(h, p).(map[string]interface{})
	if !ok {
		t.Fatalf("expected Encode to return a map, got %T", Encode(h, p))
	}
	if out["kind"] != "list" {
		t.Errorf("expected kind list, got %v", out["kind"])
	}
	items, ok := out["items"].([]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 encoded items, got %v", out["items"])
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	h := heap.New()
	_, err := Decode(h, []byte(`{"kind":"not_a_real_kind"}`))
	if err == nil {
		t.Fatal("expected an error for an unrecognized kind")
	}
}
