package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/reflexrun/reflex/internal/actorbus"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/reflexrun/reflex/internal/logging"
	"github.com/reflexrun/reflex/internal/metrics"
	"github.com/reflexrun/reflex/internal/supervisor"
	"github.com/reflexrun/reflex/internal/termjson"
	"github.com/reflexrun/reflex/internal/wasmrun"
	"github.com/reflexrun/reflex/internal/watchtui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <query.json>",
	Short: "subscribe a query through the supervisor and re-render on every result",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

const watchKey = "watch"

func runWatch(cmd *cobra.Command, args []string) error {
	queryPath := args[0]
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, groupCtx := actorbus.NewGroup(ctx)
	resultMailbox := actorbus.NewMailbox[supervisor.Message](32)
	reg := metrics.New()
	engine := wasmrun.NewWasmtimeEngine()
	sup := supervisor.NewSupervisor(engine, reg, resultMailbox, group)

	group.Spawn(sup.Run)

	if err := loadAndStart(groupCtx, sup, queryPath); err != nil {
		cancel()
		return fmt.Errorf("reflexd watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return fmt.Errorf("reflexd watch: fsnotify: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(queryPath); err != nil {
		cancel()
		return fmt.Errorf("reflexd watch: watch query file: %w", err)
	}

	program := tea.NewProgram(watchtui.NewModel(queryPath))

	group.SpawnTolerant(func(ctx context.Context) error {
		forwardResults(ctx, resultMailbox, sup.HostHeap(), program)
		return nil
	})
	debounce := cfg.Watch.GetDebounceInterval()
	group.SpawnTolerant(func(ctx context.Context) error {
		watchQueryFile(ctx, watcher, sup, queryPath, program, debounce)
		return nil
	})

	_, runErr := program.Run()

	cancel()
	sup.Inbox().TrySend(supervisor.Message{Type: supervisor.EvaluateStop, Key: watchKey})
	group.Wait()
	return runErr
}

// loadAndStart decodes the query file and sends an EvaluateStart
// message through sup's inbox, establishing the watched worker.
func loadAndStart(ctx context.Context, sup *supervisor.Supervisor, queryPath string) error {
	raw, err := os.ReadFile(queryPath)
	if err != nil {
		return fmt.Errorf("read query: %w", err)
	}
	queryHeap := heap.New()
	queryPtr, err := termjson.Decode(queryHeap, raw)
	if err != nil {
		return fmt.Errorf("decode query: %w", err)
	}
	logging.AuditFor(uuid.NewString(), queryPath).ActorSpawn("watch-worker")
	return sup.Inbox().Send(ctx, supervisor.Message{
		Type:                 supervisor.EvaluateStart,
		Key:                  watchKey,
		Label:                queryPath,
		Query:                queryPtr,
		QueryHeap:            queryHeap,
		InvalidationStrategy: supervisor.CombineUpdateBatches,
	})
}

// forwardResults drains the supervisor's result mailbox and relays each
// EvaluateResult into the bubbletea program as a watchtui.ResultMsg.
func forwardResults(ctx context.Context, mailbox *actorbus.Mailbox[supervisor.Message], hostHeap *heap.Heap, program *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-mailbox.Receive():
			if !ok {
				return
			}
			if msg.Type != supervisor.EvaluateResult {
				continue
			}
			program.Send(watchtui.ResultMsg{
				Value: termjson.Encode(hostHeap, msg.Result.Value),
				Statistics: map[string]interface{}{
					"dependency_count":  msg.Result.Statistics.DependencyCount,
					"cache_entry_count": msg.Result.Statistics.CacheEntryCount,
					"cache_deep_size":   msg.Result.Statistics.CacheDeepSize,
				},
				At: time.Now(),
			})
		}
	}
}

// watchQueryFile debounces fsnotify Write events on queryPath (grounded
// on the teacher's MangleWatcher debounce-ticker idiom) and re-sends
// EvaluateStop/EvaluateStart to hot-recompile the query.
func watchQueryFile(ctx context.Context, watcher *fsnotify.Watcher, sup *supervisor.Supervisor, queryPath string, program *tea.Program, debounce time.Duration) {
	var pending bool
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	recompile := func() {
		sup.Inbox().TrySend(supervisor.Message{Type: supervisor.EvaluateStop, Key: watchKey})
		err := loadAndStart(ctx, sup, queryPath)
		program.Send(watchtui.RecompileMsg{Err: err, At: time.Now()})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = true
			timer.Reset(debounce)
		case <-timer.C:
			if pending {
				pending = false
				recompile()
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
