package proxygen

import (
	"cmp"
	"fmt"
	"go/types"
	"slices"

	"golang.org/x/tools/go/packages"
)

// Introspect loads the Go package in dir and returns the named interfaces
// in the order given.
func Introspect(dir string, names []string) (*PackageModel, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax,
		Dir:  dir,
	}

	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", dir, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found in %s", dir)
	}
	if len(pkgs[0].Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkgs[0].Errors)
	}

	pkg := pkgs[0]
	if pkg.Types == nil {
		return nil, fmt.Errorf("type information not available for %s", dir)
	}
	if pkg.PkgPath == ProxyImportPath {
		return nil, fmt.Errorf("cannot generate wrappers inside %s", ProxyImportPath)
	}

	model := &PackageModel{
		ImportPath: pkg.PkgPath,
		Name:       pkg.Name,
		pkg:        pkg.Types,
	}
	scope := pkg.Types.Scope()
	for _, name := range names {
		obj, ok := scope.Lookup(name).(*types.TypeName)
		if !ok {
			return nil, fmt.Errorf("%s: no type %s", pkg.PkgPath, name)
		}
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			return nil, fmt.Errorf("%s.%s is not an interface", pkg.Name, name)
		}
		model.Interfaces = append(model.Interfaces, extractInterface(name, iface))
	}
	return model, nil
}

func extractInterface(name string, iface *types.Interface) InterfaceModel {
	im := InterfaceModel{Name: name}

	// go/types sorts methods by name; the wrapper keeps source order
	methods := make([]*types.Func, iface.NumMethods())
	for i := range methods {
		methods[i] = iface.Method(i)
	}
	slices.SortFunc(methods, func(a, b *types.Func) int { return cmp.Compare(a.Pos(), b.Pos()) })

	for _, fn := range methods {
		sig := fn.Type().(*types.Signature)
		mm := MethodModel{Name: fn.Name(), Variadic: sig.Variadic()}
		for i := 0; i < sig.Params().Len(); i++ {
			p := sig.Params().At(i)
			mm.Params = append(mm.Params, ParamModel{Name: paramName(p.Name(), i), GoType: p.Type()})
		}
		for i := 0; i < sig.Results().Len(); i++ {
			mm.Results = append(mm.Results, sig.Results().At(i).Type())
		}
		im.Methods = append(im.Methods, mm)
	}
	return im
}

func isErrorType(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

func isProxyType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Name() == "Proxy" && obj.Pkg() != nil && obj.Pkg().Path() == ProxyImportPath
}

func isAny(t types.Type) bool {
	iface, ok := t.Underlying().(*types.Interface)
	return ok && iface.Empty()
}
