// Package heap implements the term model (spec §3.2, §4.B): a closed set of
// tagged term variants stored in an arena.Arena, content-addressed by
// structural hash so that pointer identity implies semantic equality.
package heap

// Kind discriminates the closed set of term variants recognized by the
// system (spec §3.2).
type Kind uint8

const (
	KindNil Kind = iota
	KindBoolean
	KindInt
	KindFloat
	KindString
	KindSymbol
	KindVariable
	KindEffect
	KindLet
	KindLambda
	KindApplication
	KindPartial
	KindBuiltin
	KindCompiled
	KindRecord
	KindConstructor
	KindList
	KindHashmap
	KindHashset
	KindSignal
	KindTree
	KindCondition
	KindPointer
	KindCell

	// Iterator variants.
	KindEmpty
	KindOnce
	KindRange
	KindIntegers
	KindRepeat
	KindMap
	KindFilter
	KindFlatten
	KindEvaluate
	KindIntersperse
	KindSkip
	KindTake
	KindZip
	KindHashmapKeys
	KindHashmapValues

	kindCount
)

// ConditionKind discriminates the three Condition sub-variants (spec §3.4).
type ConditionKind uint8

const (
	ConditionPending ConditionKind = iota
	ConditionError
	ConditionCustom
)

var kindNames = [kindCount]string{
	KindNil: "Nil", KindBoolean: "Boolean", KindInt: "Int", KindFloat: "Float",
	KindString: "String", KindSymbol: "Symbol", KindVariable: "Variable",
	KindEffect: "Effect", KindLet: "Let", KindLambda: "Lambda",
	KindApplication: "Application", KindPartial: "Partial", KindBuiltin: "Builtin",
	KindCompiled: "Compiled", KindRecord: "Record", KindConstructor: "Constructor",
	KindList: "List", KindHashmap: "Hashmap", KindHashset: "Hashset",
	KindSignal: "Signal", KindTree: "Tree", KindCondition: "Condition",
	KindPointer: "Pointer", KindCell: "Cell",
	KindEmpty: "Empty", KindOnce: "Once", KindRange: "Range", KindIntegers: "Integers",
	KindRepeat: "Repeat", KindMap: "Map", KindFilter: "Filter", KindFlatten: "Flatten",
	KindEvaluate: "Evaluate", KindIntersperse: "Intersperse", KindSkip: "Skip",
	KindTake: "Take", KindZip: "Zip", KindHashmapKeys: "HashmapKeys",
	KindHashmapValues: "HashmapValues",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Unknown"
}

// applicableKinds are variants that Arity/Apply (expr algebra) can reduce.
func (k Kind) IsApplicable() bool {
	switch k {
	case KindLambda, KindPartial, KindBuiltin, KindCompiled, KindConstructor:
		return true
	}
	return false
}

// IsIterator reports whether k is one of the fifteen iterator variants.
func (k Kind) IsIterator() bool {
	return k >= KindEmpty && k <= KindHashmapValues
}
