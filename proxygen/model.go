// Package proxygen generates typed wrappers over proxy.Proxy from Go
// interface definitions. Each interface method becomes a dynamic call
// whose selector is the method name with its first letter lowered.
package proxygen

import "go/types"

// ProxyImportPath is the package that defines proxy.Proxy.
const ProxyImportPath = "github.com/chazu/blockbridge/proxy"

// PackageModel is the part of a Go package the generator wraps.
type PackageModel struct {
	ImportPath string
	Name       string // short package name (e.g., "port")
	Interfaces []InterfaceModel
	pkg        *types.Package
}

// InterfaceModel represents one interface to wrap.
type InterfaceModel struct {
	Name    string
	Methods []MethodModel // in declaration order
}

// MethodModel represents one interface method.
type MethodModel struct {
	Name     string
	Params   []ParamModel
	Results  []types.Type
	Variadic bool
}

// ParamModel represents a method parameter.
type ParamModel struct {
	Name   string
	GoType types.Type
}
