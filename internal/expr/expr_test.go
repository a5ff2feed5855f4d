package expr

import (
	"testing"

	"github.com/reflexrun/reflex/internal/arena"
	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scenario 1: constant folding. add(2, mul(3, 4)) normalizes to Int(14).
func TestNormalizeConstantFolds(t *testing.T) {
	h := heap.New()
	expr := h.Application(h.Builtin(BuiltinAdd), h.List(
		h.Int(2),
		h.Application(h.Builtin(BuiltinMul), h.List(h.Int(3), h.Int(4))),
	))

	result := Normalize(h, expr)
	n := h.Get(result)
	require.Equal(t, heap.KindInt, n.Kind)
	require.Equal(t, int64(14), n.Int)
}

// scenario 2: an Effect whose condition is unbound in the state snapshot
// evaluates to a Signal carrying that condition, and is recorded as a
// dependency.
func TestEvaluateUnresolvedEffect(t *testing.T) {
	h := heap.New()
	cond := condition.Custom(h, "reflex::fetch", h.String("https://example.test"), h.Nil())
	term := h.Effect(cond.Ptr)

	result, deps := Evaluate(h, term, State{})

	conds, isSignal := asSignal(h, result)
	require.True(t, isSignal)
	require.Len(t, conds, 1)
	require.Equal(t, cond.Hash(), conds[0].Hash())
	require.Equal(t, 1, deps.Len())
	require.True(t, deps.Contains(cond))
}

// scenario 3: once state binds the condition, the same term evaluates to
// the bound value instead of a Signal.
func TestEvaluateResolvedEffect(t *testing.T) {
	h := heap.New()
	cond := condition.Custom(h, "reflex::fetch", h.String("https://example.test"), h.Nil())
	term := h.Effect(cond.Ptr)
	bound := h.String(`{"status":200}`)

	result, deps := Evaluate(h, term, State{cond.Hash(): bound})

	require.Equal(t, bound, result)
	require.Equal(t, 1, deps.Len())
}

// scenario 4a: if's condition is strict (always a dependency) and its
// branches are eager — only the taken branch is evaluated, so an Effect in
// the untaken branch never blocks the result nor appears in deps.
func TestEvaluateIfShortCircuitsLazyBranch(t *testing.T) {
	h := heap.New()
	cond := condition.Pending(h)
	untaken := h.Effect(cond.Ptr)

	term := h.Application(h.Builtin(BuiltinIf), h.List(
		h.Boolean(true),
		h.Int(42),
		untaken,
	))

	result, deps := Evaluate(h, term, State{})

	n := h.Get(result)
	require.Equal(t, heap.KindInt, n.Kind)
	require.Equal(t, int64(42), n.Int)
	require.Equal(t, 0, deps.Len())
}

func TestEvaluateIfTakesOtherBranch(t *testing.T) {
	h := heap.New()
	term := h.Application(h.Builtin(BuiltinIf), h.List(
		h.Boolean(false),
		h.Int(1),
		h.Int(2),
	))
	result, _ := Evaluate(h, term, State{})
	require.Equal(t, int64(2), h.Get(result).Int)
}

func TestDynamicDependenciesRespectsStrictness(t *testing.T) {
	h := heap.New()
	strictCond := condition.Pending(h)
	lazyCond := condition.Custom(h, "lazy", h.Nil(), h.Nil())
	term := h.Application(h.Builtin(BuiltinIf), h.List(
		h.Effect(strictCond.Ptr),
		h.Int(1),
		h.Effect(lazyCond.Ptr),
	))

	shallow := DynamicDependencies(h, term, false)
	require.Len(t, shallow, 1)
	require.Equal(t, strictCond.Ptr, shallow[0])

	deep := DynamicDependencies(h, term, true)
	require.Len(t, deep, 2)
}

// scenario 8: Partial(Lambda(3, v2 - (v1 + v0)), [3, 4, 5]) normalizes fully
// to Lambda(0, Int(-6)).
func TestNormalizePartialFullyApplied(t *testing.T) {
	h := heap.New()
	body := h.Application(h.Builtin(BuiltinSub), h.List(
		h.Variable(2),
		h.Application(h.Builtin(BuiltinAdd), h.List(h.Variable(1), h.Variable(0))),
	))
	lambda := h.Lambda(3, body)
	partial := h.Partial(lambda, h.List(h.Int(3), h.Int(4), h.Int(5)))

	result := Normalize(h, partial)

	n := h.Get(result)
	require.Equal(t, heap.KindLambda, n.Kind)
	require.Equal(t, uint32(0), n.U32)
	inner := h.Get(n.Children[0])
	require.Equal(t, heap.KindInt, inner.Kind)
	require.Equal(t, int64(-6), inner.Int)
}

func TestNormalizePartialUnderApplicationInlinesOneOfTwo(t *testing.T) {
	h := heap.New()
	body := h.Application(h.Builtin(BuiltinAdd), h.List(h.Variable(1), h.Variable(0)))
	lambda := h.Lambda(2, body)
	partial := h.Partial(lambda, h.List(h.Int(10)))

	result := Normalize(h, partial)

	// Only one of two args supplied: args[0]=10 binds the highest
	// remaining index (Variable(1)); Variable(0) stays open. Since that
	// consumes every currently-supplied argument, the result is the
	// reduced Lambda directly (itself still awaiting one more argument),
	// not a Partial wrapper.
	n := h.Get(result)
	require.Equal(t, heap.KindLambda, n.Kind)
	require.Equal(t, uint32(1), n.U32)
}

// A leading argument whose own capture depth exceeds the target's blocks
// inlining entirely (conservative stop-at-first-unsafe-argument rule) —
// the Partial is left structurally unchanged.
func TestNormalizePartialLeavesResidualWhenArgumentUnsafe(t *testing.T) {
	h := heap.New()
	body := h.Application(h.Builtin(BuiltinAdd), h.List(h.Variable(1), h.Variable(0)))
	lambda := h.Lambda(2, body)
	unsafeArg := h.Variable(5) // capture depth 6, exceeds the closed lambda's depth of 0
	partial := h.Partial(lambda, h.List(unsafeArg, h.Int(10)))

	result := Normalize(h, partial)

	n := h.Get(result)
	require.Equal(t, heap.KindPartial, n.Kind)
	target := h.Get(n.Children[0])
	require.Equal(t, heap.KindLambda, target.Kind)
	require.Equal(t, uint32(2), target.U32)
}

func TestNormalizeFlattensNestedPartial(t *testing.T) {
	h := heap.New()
	body := h.Application(h.Builtin(BuiltinAdd), h.List(h.Variable(1), h.Variable(0)))
	lambda := h.Lambda(2, body)
	outer := h.Partial(h.Partial(lambda, h.List(h.Int(1))), h.List(h.Int(2)))

	result := Normalize(h, outer)
	n := h.Get(result)
	require.Equal(t, heap.KindLambda, n.Kind)
	require.Equal(t, int64(3), h.Get(n.Children[0]).Int)
}

func TestApplyUnderArityYieldsPartial(t *testing.T) {
	h := heap.New()
	lambda := h.Lambda(2, h.Int(0))
	result := Apply(h, lambda, []arena.Pointer{h.Int(1)})
	require.Equal(t, heap.KindPartial, h.Get(result).Kind)
}

func TestApplyAtArityYieldsApplication(t *testing.T) {
	h := heap.New()
	lambda := h.Lambda(2, h.Int(0))
	result := Apply(h, lambda, []arena.Pointer{h.Int(1), h.Int(2)})
	require.Equal(t, heap.KindApplication, h.Get(result).Kind)
}

func TestHoistFreeVariablesClosesLambda(t *testing.T) {
	h := heap.New()
	// Lambda(1, Add(Variable(0), Variable(1))) — captures outer index 0.
	body := h.Application(h.Builtin(BuiltinAdd), h.List(h.Variable(0), h.Variable(1)))
	lambda := h.Lambda(1, body)

	closed, capturedArgs := HoistFreeVariables(h, lambda)

	n := h.Get(closed)
	require.Equal(t, heap.KindLambda, n.Kind)
	require.Equal(t, uint32(2), n.U32) // original arity 1 + 1 capture
	require.Len(t, capturedArgs, 1)
	require.Equal(t, heap.KindVariable, h.Get(capturedArgs[0]).Kind)
	require.Equal(t, uint32(0), h.Get(capturedArgs[0]).U32)
	require.Equal(t, 0, len(FreeVariableCounts(h, closed)))
}

func TestSubstituteDynamicReplacesBoundEffectOnly(t *testing.T) {
	h := heap.New()
	bound := condition.Custom(h, "reflex::variable::get", h.Int(1), h.Nil())
	unbound := condition.Pending(h)
	term := h.Application(h.Builtin(BuiltinAdd), h.List(
		h.Effect(bound.Ptr),
		h.Effect(unbound.Ptr),
	))

	state := State{bound.Hash(): h.Int(7)}
	result := SubstituteDynamic(h, term, true, state)

	n := h.Get(result)
	require.Equal(t, heap.KindApplication, n.Kind)
	args := h.ListItems(n.Children[1])
	require.Equal(t, int64(7), h.Get(args[0]).Int)
	require.Equal(t, heap.KindEffect, h.Get(args[1]).Kind)
}

func TestIsStaticFalseUnderEffect(t *testing.T) {
	h := heap.New()
	cond := condition.Pending(h)
	term := h.Application(h.Builtin(BuiltinAdd), h.List(h.Int(1), h.Effect(cond.Ptr)))
	require.False(t, IsStatic(h, term))
	require.True(t, IsStatic(h, h.Int(1)))
}
