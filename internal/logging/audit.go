// Audit logging: a structured, JSON-line trail of actor lifecycle
// events (spawn/stop/panic-recover, worker evaluate/GC cycles,
// supervisor GC decisions, effect handler emissions), always JSON
// regardless of LoggingConfig.Format so it stays machine-parseable.
// Grounded on the teacher's own audit.go (same AuditEventType enum +
// AuditLogger{}.Log(event) + typed convenience-method shape), adapted
// to Reflex's actor domain and to zap's structured fields instead of
// the teacher's hand-rolled JSON marshal + Mangle-fact string.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

// AuditEventType identifies the kind of actor-lifecycle event recorded.
type AuditEventType string

const (
	AuditActorSpawn          AuditEventType = "actor_spawn"
	AuditActorStop           AuditEventType = "actor_stop"
	AuditActorPanicRecovered AuditEventType = "actor_panic_recovered"

	AuditWorkerEvaluate AuditEventType = "worker_evaluate"
	AuditWorkerGC       AuditEventType = "worker_gc"

	AuditSupervisorGCDecision AuditEventType = "supervisor_gc_decision"

	AuditEffectSubscribe   AuditEventType = "effect_subscribe"
	AuditEffectEmit        AuditEventType = "effect_emit"
	AuditEffectUnsubscribe AuditEventType = "effect_unsubscribe"
)

var (
	auditMu     sync.Mutex
	auditLogger *Logger
)

// auditSink lazily builds the always-JSON audit logger, independent of
// LoggingConfig.Format.
func auditSink() *Logger {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditLogger != nil {
		return auditLogger
	}
	mu.RLock()
	enabled := cfg.IsCategoryEnabled(string(CategoryAudit))
	dir := logsDir
	mu.RUnlock()
	if !enabled {
		auditLogger = &Logger{category: CategoryAudit, sugar: zap.NewNop().Sugar()}
		return auditLogger
	}
	mu.RLock()
	lvl := level
	mu.RUnlock()
	auditLogger = newFileLogger(CategoryAudit, dir, lvl, "json")
	return auditLogger
}

// AuditLogger scopes audit events to a particular actor (PID) and
// query label, analogous to the teacher's session/shard-scoped
// AuditLogger.
type AuditLogger struct {
	pid   string
	label string
}

// Audit returns an unscoped AuditLogger.
func Audit() *AuditLogger { return &AuditLogger{} }

// AuditFor scopes an AuditLogger to one worker actor.
func AuditFor(pid, label string) *AuditLogger { return &AuditLogger{pid: pid, label: label} }

// Log writes one structured audit entry.
func (a *AuditLogger) Log(event AuditEventType, success bool, durationMs int64, detail string) {
	sink := auditSink()
	fields := []interface{}{
		"event", string(event),
		"pid", a.pid,
		"label", a.label,
		"success", success,
		"dur_ms", durationMs,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	sink.With(fields...).Info(string(event))
}

func (a *AuditLogger) ActorSpawn(kind string)              { a.Log(AuditActorSpawn, true, 0, kind) }
func (a *AuditLogger) ActorStop(reason string)              { a.Log(AuditActorStop, true, 0, reason) }
func (a *AuditLogger) ActorPanicRecovered(recovered string) { a.Log(AuditActorPanicRecovered, false, 0, recovered) }

func (a *AuditLogger) WorkerEvaluate(durationMs int64, success bool, errMsg string) {
	a.Log(AuditWorkerEvaluate, success, durationMs, errMsg)
}

func (a *AuditLogger) WorkerGC(durationMs int64) { a.Log(AuditWorkerGC, true, durationMs, "") }

func (a *AuditLogger) SupervisorGCDecision(willGC bool, updatesSinceGC int) {
	detail := ""
	if willGC {
		detail = "gc triggered"
	}
	a.Log(AuditSupervisorGCDecision, true, int64(updatesSinceGC), detail)
}

func (a *AuditLogger) EffectSubscribe(effectType string) {
	a.Log(AuditEffectSubscribe, true, 0, effectType)
}

func (a *AuditLogger) EffectEmit(effectType string, success bool) {
	a.Log(AuditEffectEmit, success, 0, effectType)
}

func (a *AuditLogger) EffectUnsubscribe(effectType string) {
	a.Log(AuditEffectUnsubscribe, true, 0, effectType)
}
