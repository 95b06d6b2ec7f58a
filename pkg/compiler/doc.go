// Package compiler rewrites circuits into a restricted native gate set and
// verifies the result against a target's predicates.
//
// Rebasing works one operation at a time. Gates already in the target set
// pass through. Other gates are first expanded with the exact rewrite rules
// of package circuit; single-qubit gates that no rule sequence can express
// are resynthesized from their matrix as an Euler decomposition in whichever
// rotation pair the target provides (u, rz+ry, rz+rx or rz+sx). Classically
// controlled gates are rewritten with their condition copied onto every
// replacement.
//
// The rewritten circuit is always checked against the target's predicates,
// in order:
//
//	GateSetPredicate
//	MaxNQubitsPredicate
//	NoClassicalControlPredicate   (unless AllowClassicalControl)
//	NoMidMeasurePredicate         (unless AllowMidMeasure)
//	NoSymbolsPredicate            (unless AllowSymbols)
//
// The first violation is returned as a *CompilationError; a circuit that
// fails a predicate is never returned.
//
//	out, err := compiler.Rebase(c, compiler.IBM())
//	if compiler.IsCompilationError(err) {
//		...
//	}
package compiler
