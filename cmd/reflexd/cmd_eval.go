package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/reflexrun/reflex/internal/logging"
	"github.com/reflexrun/reflex/internal/metrics"
	"github.com/reflexrun/reflex/internal/termjson"
	"github.com/reflexrun/reflex/internal/wasmrun"
)

var evalStatePath string

var evalCmd = &cobra.Command{
	Use:   "eval <query.json>",
	Short: "compile and evaluate a query once against a state snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalStatePath, "state", "", "path to a state.json snapshot of resolved effect updates")
}

// stateEntry is one resolved-effect record in a --state snapshot: the
// Custom condition (effectType/payload/token) it answers, paired with
// the value to resolve it to.
type stateEntry struct {
	EffectType string          `json:"effect_type"`
	Payload    json.RawMessage `json:"payload"`
	Token      json.RawMessage `json:"token"`
	Value      json.RawMessage `json:"value"`
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	queryPath := args[0]

	queryRaw, err := os.ReadFile(queryPath)
	if err != nil {
		return fmt.Errorf("reflexd eval: read query: %w", err)
	}

	hostHeap := heap.New()
	queryHeap := heap.New()
	queryPtr, err := termjson.Decode(queryHeap, queryRaw)
	if err != nil {
		return fmt.Errorf("reflexd eval: decode query: %w", err)
	}

	updates, err := loadStateUpdates(evalStatePath)
	if err != nil {
		return err
	}

	reg := metrics.New()
	label := queryPath
	pid := uuid.NewString()

	engine := wasmrun.NewWasmtimeEngine()
	worker := wasmrun.NewWorker(engine, reg, label, pid, hostHeap)

	if err := worker.Init(ctx, queryPtr, queryHeap); err != nil {
		return fmt.Errorf("reflexd eval: init worker: %w", err)
	}
	logging.AuditFor(pid, label).WorkerEvaluate(0, true, "init")

	result, err := worker.Evaluate(ctx, nil, updates)
	if err != nil {
		return fmt.Errorf("reflexd eval: evaluate: %w", err)
	}

	out := map[string]interface{}{
		"value": termjson.Encode(hostHeap, result.Value),
		"statistics": map[string]interface{}{
			"dependency_count":  result.Statistics.DependencyCount,
			"cache_entry_count": result.Statistics.CacheEntryCount,
			"cache_deep_size":   result.Statistics.CacheDeepSize,
		},
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// loadStateUpdates reads a --state snapshot (if path is non-empty) and
// converts each entry into a wasmrun.Update resolving a Custom
// condition to a decoded value, all allocated on a private heap per
// entry (spec §4.G's BytecodeInterpreterUpdate carries its own
// ValueHeap per update).
func loadStateUpdates(path string) ([]wasmrun.Update, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reflexd eval: read state: %w", err)
	}
	var entries []stateEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("reflexd eval: decode state: %w", err)
	}

	updates := make([]wasmrun.Update, 0, len(entries))
	for _, e := range entries {
		condHeap := heap.New()
		var payloadPtr, tokenPtr = condHeap.Nil(), condHeap.Nil()
		if len(e.Payload) > 0 {
			payloadPtr, err = termjson.Decode(condHeap, e.Payload)
			if err != nil {
				return nil, fmt.Errorf("reflexd eval: state payload: %w", err)
			}
		}
		if len(e.Token) > 0 {
			tokenPtr, err = termjson.Decode(condHeap, e.Token)
			if err != nil {
				return nil, fmt.Errorf("reflexd eval: state token: %w", err)
			}
		}
		cond := condition.Custom(condHeap, e.EffectType, payloadPtr, tokenPtr)

		valueHeap := heap.New()
		valuePtr, err := termjson.Decode(valueHeap, e.Value)
		if err != nil {
			return nil, fmt.Errorf("reflexd eval: state value: %w", err)
		}

		updates = append(updates, wasmrun.Update{
			Condition: cond,
			Value:     valuePtr,
			ValueHeap: valueHeap,
		})
	}
	return updates, nil
}
