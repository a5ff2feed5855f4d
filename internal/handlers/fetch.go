package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/reflexrun/reflex/internal/actorbus"
	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/reflexrun/reflex/internal/metrics"
)

// fetchEntry is the per-effect state spec §4.I.1 names: "operation_id =
// fresh UUID, task_pid, metric_labels".
type fetchEntry struct {
	operationID string
	cancel      context.CancelFunc
	condition   condition.Condition
}

// FetchHandler implements spec §4.I.1's "reflex::fetch" effect handler.
// Each subscribed effect spawns a real HTTP request under the shared
// actorbus.Group; its result arrives back through the handler's own
// mailbox as an internal fetchComplete/fetchConnectionError message so
// that the blocking HTTP call never runs on the handler's own goroutine —
// the teacher's intelligence_gatherer.go fans out sub-tasks the same way.
type FetchHandler struct {
	mu sync.Mutex

	inbox   *actorbus.Mailbox[Message]
	out     *actorbus.Mailbox[Message]
	metrics *metrics.Registry
	group   *actorbus.Group
	client  *http.Client

	entries map[uint64]*fetchEntry
}

// NewFetchHandler constructs a FetchHandler. out is the supervisor's (or
// any EffectEmit-consuming actor's) inbox; group supervises every spawned
// HTTP task's goroutine.
func NewFetchHandler(out *actorbus.Mailbox[Message], reg *metrics.Registry, group *actorbus.Group) *FetchHandler {
	return &FetchHandler{
		inbox:   actorbus.NewMailbox[Message](32),
		out:     out,
		metrics: reg,
		group:   group,
		client:  &http.Client{},
		entries: make(map[uint64]*fetchEntry),
	}
}

func (f *FetchHandler) Inbox() *actorbus.Mailbox[Message] { return f.inbox }

// Run drains the handler's inbox until ctx is done or the mailbox closes.
func (f *FetchHandler) Run(ctx context.Context) error {
	for {
		select {
		case msg, ok := <-f.inbox.Receive():
			if !ok {
				return nil
			}
			f.handle(ctx, msg)
		case <-ctx.Done():
			return nil
		}
	}
}

func (f *FetchHandler) handle(ctx context.Context, msg Message) {
	switch msg.Type {
	case EffectSubscribe:
		for _, cond := range msg.Effects {
			f.subscribe(ctx, cond)
		}
	case EffectUnsubscribe:
		for _, cond := range msg.Effects {
			f.unsubscribe(cond)
		}
	case fetchComplete:
		f.complete(msg)
	case fetchConnectionError:
		f.connectionError(msg)
	}
}

func (f *FetchHandler) subscribe(ctx context.Context, cond condition.Condition) {
	h := cond.Heap
	items := h.ListItems(cond.Payload())
	if len(items) != 4 {
		f.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::fetch", Batch: []Emission{
			emitError(cond, fmt.Sprintf("Invalid reflex::fetch payload: expected 4 elements, received %d", len(items))),
		}})
		return
	}
	url, err := decodeString(h, items[0])
	if err != nil {
		f.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::fetch", Batch: []Emission{emitError(cond, err.Error())}})
		return
	}
	method, err := decodeString(h, items[1])
	if err != nil {
		f.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::fetch", Batch: []Emission{emitError(cond, err.Error())}})
		return
	}
	headerKeys, headerValuePtrs, err := decodeRecord(h, items[2])
	if err != nil {
		f.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::fetch", Batch: []Emission{emitError(cond, err.Error())}})
		return
	}
	var body string
	if s, derr := decodeString(h, items[3]); derr == nil {
		body = s
	}

	operationID := uuid.NewString()
	taskCtx, cancel := context.WithCancel(ctx)

	f.mu.Lock()
	f.entries[cond.Hash()] = &fetchEntry{operationID: operationID, cancel: cancel, condition: cond}
	f.mu.Unlock()

	f.metrics.FetchActiveRequests.Inc()

	f.group.SpawnTolerant(func(context.Context) error {
		f.runRequest(taskCtx, operationID, url, method, headerKeys, headerValuePtrs, body, h)
		return nil
	})

	f.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::fetch", Batch: []Emission{emitPending(cond)}})
}

func (f *FetchHandler) runRequest(ctx context.Context, operationID, url, method string, headerKeys []string, headerValuePtrs []arena.Pointer, body string, h *heap.Heap) {
	req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		f.inbox.Send(ctx, Message{Type: fetchConnectionError, operationID: operationID, errMessage: err.Error()})
		return
	}
	for i, k := range headerKeys {
		if v, verr := decodeString(h, headerValuePtrs[i]); verr == nil {
			req.Header.Set(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.inbox.Send(ctx, Message{Type: fetchConnectionError, operationID: operationID, errMessage: err.Error()})
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		f.inbox.Send(ctx, Message{Type: fetchConnectionError, operationID: operationID, errMessage: err.Error()})
		return
	}
	f.inbox.Send(ctx, Message{Type: fetchComplete, operationID: operationID, status: resp.StatusCode, body: data})
}

func (f *FetchHandler) complete(msg Message) {
	entry := f.takeByOperationID(msg.operationID)
	if entry == nil {
		return
	}
	f.metrics.FetchActiveRequests.Dec()

	cond := entry.condition
	h := cond.Heap
	if !utf8.Valid(msg.body) {
		f.metrics.FetchTotalRequests.WithLabelValues("error").Inc()
		f.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::fetch", Batch: []Emission{
			emitError(cond, "response body is not valid UTF-8"),
		}})
		return
	}
	f.metrics.FetchTotalRequests.WithLabelValues("success").Inc()
	value := h.List(h.Int(int64(msg.status)), h.String(string(msg.body)))
	f.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::fetch", Batch: []Emission{
		{Condition: cond, Value: value, ValueHeap: h},
	}})
}

func (f *FetchHandler) connectionError(msg Message) {
	entry := f.takeByOperationID(msg.operationID)
	if entry == nil {
		return
	}
	f.metrics.FetchActiveRequests.Dec()
	f.metrics.FetchTotalRequests.WithLabelValues("error").Inc()
	f.out.TrySend(Message{Type: EffectEmit, EffectType: "reflex::fetch", Batch: []Emission{
		emitError(entry.condition, msg.errMessage),
	}})
}

func (f *FetchHandler) takeByOperationID(operationID string) *fetchEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, e := range f.entries {
		if e.operationID == operationID {
			delete(f.entries, hash)
			return e
		}
	}
	return nil
}

// unsubscribe implements spec §5's cancellation contract: idempotent,
// kills the spawned task and resets no further emissions occur for cond.
func (f *FetchHandler) unsubscribe(cond condition.Condition) {
	f.mu.Lock()
	entry, ok := f.entries[cond.Hash()]
	if ok {
		delete(f.entries, cond.Hash())
	}
	f.mu.Unlock()
	if !ok {
		return
	}
	entry.cancel()
	f.metrics.FetchActiveRequests.Dec()
}
