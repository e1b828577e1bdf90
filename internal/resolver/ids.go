package resolver

import (
	"fmt"
	"go/types"
	"strings"
)

// TypeID returns the canonical identifier of a named type: its import path and
// name, followed by its type arguments when instantiated or by its arity when
// generic. Repo[T] declared in example.com/store is example.com/store.Repo[1];
// its instance Repo[int] is example.com/store.Repo[int].
func TypeID(named *types.Named) string {
	obj := named.Obj()
	base := obj.Name()
	if obj.Pkg() != nil {
		base = obj.Pkg().Path() + "." + base
	}

	if args := named.TypeArgs(); args.Len() > 0 && !onlyTypeParams(args) {
		parts := make([]string, args.Len())
		for i := 0; i < args.Len(); i++ {
			parts[i] = Display(args.At(i))
		}
		return base + "[" + strings.Join(parts, ", ") + "]"
	}
	if arity := named.Origin().TypeParams().Len(); arity > 0 {
		return fmt.Sprintf("%s[%d]", base, arity)
	}
	return base
}

// MemberID returns the canonical identifier of a method, TypeID(receiver).Name.
// Functions without a named receiver fall back to their full name.
func MemberID(fn *types.Func) string {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return fn.FullName()
	}
	if named := receiverNamed(sig.Recv().Type()); named != nil {
		return TypeID(named) + "." + fn.Name()
	}
	return fn.FullName()
}

// receiverNamed strips one pointer and returns the named receiver type
func receiverNamed(t types.Type) *types.Named {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	named, _ := types.Unalias(t).(*types.Named)
	return named
}

// onlyTypeParams reports whether every argument is a type parameter, which is
// how a generic method's receiver refers to its own declaration.
func onlyTypeParams(list *types.TypeList) bool {
	for i := 0; i < list.Len(); i++ {
		if _, ok := list.At(i).(*types.TypeParam); !ok {
			return false
		}
	}
	return true
}
