package bytecode

import (
	"testing"

	"github.com/reflexrun/reflex/internal/condition"
	"github.com/reflexrun/reflex/internal/expr"
	"github.com/reflexrun/reflex/internal/heap"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scenario 1, through the compiler: add(2, mul(3, 4)) compiles and
// executes to Int(14), matching expr.Normalize.
func TestCompileConstantFolding(t *testing.T) {
	h := heap.New()
	normalized := expr.Normalize(h, h.Application(h.Builtin(expr.BuiltinAdd), h.List(
		h.Int(2),
		h.Application(h.Builtin(expr.BuiltinMul), h.List(h.Int(3), h.Int(4))),
	)))

	c := NewCompiler(h, DefaultCompilerOptions())
	module, err := c.Compile(normalized)
	require.NoError(t, err)

	result, _, err := Exec(h, module, expr.State{})
	require.NoError(t, err)
	n := h.Get(result)
	require.Equal(t, heap.KindInt, n.Kind)
	require.Equal(t, int64(14), n.Int)
}

// scenario 2/3: an Effect compiles to Const+LoadStateValue, agreeing with
// expr.Evaluate both when the condition is unbound (Signal + dependency)
// and when it's bound (the resolved value, no signal).
func TestCompileEffectAgreesWithEvaluate(t *testing.T) {
	h := heap.New()
	cond := condition.Custom(h, "reflex::fetch", h.String("https://example.test"), h.Nil())
	term := h.Effect(cond.Ptr)

	c := NewCompiler(h, DefaultCompilerOptions())
	module, err := c.Compile(term)
	require.NoError(t, err)

	result, deps, err := Exec(h, module, expr.State{})
	require.NoError(t, err)
	wantResult, wantDeps := expr.Evaluate(h, term, expr.State{})
	require.Equal(t, h.Hash(wantResult), h.Hash(result))
	require.Equal(t, wantDeps.Len(), deps.Len())

	bound := h.String(`{"status":200}`)
	state := expr.State{cond.Hash(): bound}
	result2, _, err := Exec(h, module, state)
	require.NoError(t, err)
	require.Equal(t, bound, result2)
}

// scenario 4: If compiles to a guarded OpIf; only the taken branch's
// Effect is ever loaded, matching expr.Evaluate's laziness for the
// untaken branch.
func TestCompileIfShortCircuitsUntakenBranch(t *testing.T) {
	h := heap.New()
	cond := condition.Pending(h)
	untaken := h.Effect(cond.Ptr)
	term := h.Application(h.Builtin(expr.BuiltinIf), h.List(
		h.Boolean(true),
		h.Int(42),
		untaken,
	))

	c := NewCompiler(h, DefaultCompilerOptions())
	module, err := c.Compile(term)
	require.NoError(t, err)

	result, deps, err := Exec(h, module, expr.State{})
	require.NoError(t, err)
	require.Equal(t, int64(42), h.Get(result).Int)
	require.Equal(t, 0, deps.Len())
}

func TestCompileIfTakesOtherBranch(t *testing.T) {
	h := heap.New()
	term := h.Application(h.Builtin(expr.BuiltinIf), h.List(
		h.Boolean(false),
		h.Int(1),
		h.Int(2),
	))

	c := NewCompiler(h, DefaultCompilerOptions())
	module, err := c.Compile(term)
	require.NoError(t, err)

	result, _, err := Exec(h, module, expr.State{})
	require.NoError(t, err)
	require.Equal(t, int64(2), h.Get(result).Int)
}

// And/Or reduce to If under the hood; check both short-circuit directions.
func TestCompileAndOrShortCircuit(t *testing.T) {
	h := heap.New()

	andTerm := h.Application(h.Builtin(expr.BuiltinAnd), h.List(h.Boolean(false), h.Int(1)))
	c := NewCompiler(h, DefaultCompilerOptions())
	mod, err := c.Compile(andTerm)
	require.NoError(t, err)
	result, _, err := Exec(h, mod, expr.State{})
	require.NoError(t, err)
	require.Equal(t, heap.KindBoolean, h.Get(result).Kind)
	require.False(t, h.Get(result).Bool)

	orTerm := h.Application(h.Builtin(expr.BuiltinOr), h.List(h.Boolean(true), h.Int(1)))
	c2 := NewCompiler(h, DefaultCompilerOptions())
	mod2, err := c2.Compile(orTerm)
	require.NoError(t, err)
	result2, _, err := Exec(h, mod2, expr.State{})
	require.NoError(t, err)
	require.True(t, h.Get(result2).Bool)
}

// A saturated Lambda application compiles to a lifted Function invoked via
// CallCompiledFunction; two occurrences of the identical lambda body share
// one Function (spec §4.E lambda lifting).
func TestCompileLambdaApplicationLiftsFunction(t *testing.T) {
	h := heap.New()
	body := h.Application(h.Builtin(expr.BuiltinAdd), h.List(h.Variable(1), h.Variable(0)))
	lambda := h.Lambda(2, body)
	call1 := h.Application(lambda, h.List(h.Int(3), h.Int(4)))
	call2 := h.Application(lambda, h.List(h.Int(10), h.Int(20)))
	sum := h.Application(h.Builtin(expr.BuiltinAdd), h.List(call1, call2))

	c := NewCompiler(h, DefaultCompilerOptions())
	module, err := c.Compile(sum)
	require.NoError(t, err)
	require.Len(t, module.Functions, 1, "both calls share one lifted function")

	result, _, err := Exec(h, module, expr.State{})
	require.NoError(t, err)
	require.Equal(t, int64(37), h.Get(result).Int)
}

// A dynamic call (applying a Variable, i.e. the callee isn't statically a
// Lambda/Builtin) compiles to CallDynamic, which Exec resolves by
// delegating to expr.Evaluate — confirm it still produces the right value
// once the callee is substituted in via an enclosing Lambda application.
func TestCompileDynamicCallViaHigherOrderArgument(t *testing.T) {
	h := heap.New()
	// outer = Lambda(1, apply(Variable(0), [Int(5)])) ; outer(Lambda(1, add(v0,v0)))
	inner := h.Application(h.Variable(0), h.List(h.Int(5)))
	outer := h.Lambda(1, inner)
	double := h.Lambda(1, h.Application(h.Builtin(expr.BuiltinAdd), h.List(h.Variable(0), h.Variable(0))))
	term := h.Application(outer, h.List(double))

	normalized := expr.Normalize(h, term)
	c := NewCompiler(h, DefaultCompilerOptions())
	module, err := c.Compile(normalized)
	require.NoError(t, err)

	result, _, err := Exec(h, module, expr.State{})
	require.NoError(t, err)
	require.Equal(t, int64(10), h.Get(result).Int)
}

// Record/List compilation in Strict mode short-circuits on the first
// blocked field, matching the reference evaluator's Signal propagation.
func TestCompileStrictListShortCircuitsOnSignal(t *testing.T) {
	h := heap.New()
	cond := condition.Pending(h)
	list := h.List(h.Int(1), h.Effect(cond.Ptr), h.Int(3))

	opts := DefaultCompilerOptions()
	opts.LazyListItems = Strict
	c := NewCompiler(h, opts)
	module, err := c.Compile(list)
	require.NoError(t, err)

	result, deps, err := Exec(h, module, expr.State{})
	require.NoError(t, err)
	n := h.Get(result)
	require.Equal(t, heap.KindSignal, n.Kind)
	require.Equal(t, 1, deps.Len())
}

func TestCompileStrictListPassesThroughWhenResolved(t *testing.T) {
	h := heap.New()
	cond := condition.Custom(h, "reflex::fetch", h.String("u"), h.Nil())
	list := h.List(h.Int(1), h.Effect(cond.Ptr), h.Int(3))

	opts := DefaultCompilerOptions()
	opts.LazyListItems = Strict
	c := NewCompiler(h, opts)
	module, err := c.Compile(list)
	require.NoError(t, err)

	result, _, err := Exec(h, module, expr.State{cond.Hash(): h.Int(2)})
	require.NoError(t, err)
	items := h.ListItems(result)
	require.Len(t, items, 3)
	require.Equal(t, int64(2), h.Get(items[1]).Int)
}

func TestCompilerOptionsValidateRejectsUnknownMode(t *testing.T) {
	opts := DefaultCompilerOptions()
	opts.LazyRecordValues = EvalMode(99)
	require.Error(t, opts.Validate())
}
