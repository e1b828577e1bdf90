package resolver

import (
	"go/types"

	"github.com/toyz/tracegen/internal/models"
)

var errorType = types.Universe.Lookup("error").Type()

// Classify maps a signature's results to exactly one shape. The second result
// reports a channel-typed result, a deferred-value form no shape recognises;
// such signatures fall through to ShapeValue.
func Classify(sig *types.Signature) (models.MethodShape, bool) {
	results := sig.Results()
	n := results.Len()
	switch {
	case n == 0:
		return models.ShapeVoid, false
	case types.Identical(results.At(n-1).Type(), errorType):
		if n == 1 {
			return models.ShapeTask, false
		}
		return models.ShapeGenericTask, false
	}

	for i := 0; i < n; i++ {
		if _, ok := results.At(i).Type().Underlying().(*types.Chan); ok {
			return models.ShapeValue, true
		}
	}
	return models.ShapeValue, false
}

// IsContext reports whether t is context.Context
func IsContext(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context"
}
