// Package logging provides config-driven categorized logging for
// reflexd: a go.uber.org/zap logger per subsystem category, each
// writing its own file under a logs directory, plus a structured audit
// trail for actor lifecycle events. Grounded on the teacher's own
// internal/logging package (same Category-keyed per-file-logger shape,
// same Boot/BootDebug/BootError convenience functions), adapted to
// route through zap instead of a hand-rolled log.Logger + file, per
// SPEC_FULL.md's ambient-stack section.
package logging

// Category represents a log category/subsystem.
type Category string

const (
	// CategoryBoot covers process startup/shutdown and config loading.
	CategoryBoot Category = "boot"

	// CategoryActorBus covers internal/actorbus: mailbox send/receive,
	// group spawn/cancel.
	CategoryActorBus Category = "actorbus"

	// CategorySupervisor covers internal/supervisor: worker lifecycle,
	// queue dispatch, GC decisions, label-group quantile publication.
	CategorySupervisor Category = "supervisor"

	// CategoryHandlers covers internal/handlers: fetch/loader/scan/
	// variable effect handler subscribe/emit/unsubscribe traffic.
	CategoryHandlers Category = "handlers"

	// CategoryWasmRun covers internal/wasmrun: worker instantiation,
	// Evaluate/Gc calls, host-heap projection.
	CategoryWasmRun Category = "wasmrun"

	// CategoryWasmGen covers internal/wasmgen: codegen and linking.
	CategoryWasmGen Category = "wasmgen"

	// CategoryBytecode covers internal/bytecode: compiler and
	// interpreter diagnostics.
	CategoryBytecode Category = "bytecode"

	// CategoryExpr covers internal/expr: expression evaluation and
	// dependency tracking.
	CategoryExpr Category = "expr"

	// CategoryHeap covers internal/heap and internal/arena: allocation,
	// GC sweeps, cross-heap copies.
	CategoryHeap Category = "heap"

	// CategoryCLI covers cmd/reflexd: command dispatch, watch-loop
	// recompiles.
	CategoryCLI Category = "cli"

	// CategoryAudit is the structured actor-lifecycle audit trail's own
	// category (see audit.go); kept separate from the free-text
	// per-subsystem categories above so it can be JSON-formatted
	// independently of LoggingConfig.Format.
	CategoryAudit Category = "audit"
)
