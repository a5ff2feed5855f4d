package bytecode

// Runtime builtin IDs for CallRuntimeBuiltin (spec §4.F: "A set of runtime
// builtins... evaluate, apply, combineDependencies, combineSignals,
// isSignal, constructors for each term variant, accessors, getStateValue,
// initList/initHashmap/initString"). Only the handful the compiler itself
// emits are enumerated here; the rest appear only in internal/wasmgen's
// import table (RuntimeBuiltinSignatures in builtins.go) and are not needed
// by Exec directly.
const (
	RuntimeBuiltinMakeRecord uint32 = iota
	RuntimeBuiltinMakeList
	RuntimeBuiltinCombineSignals
	RuntimeBuiltinIsSignal
)
