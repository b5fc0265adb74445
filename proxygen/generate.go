package proxygen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/types"
	"path"
	"slices"
	"strings"
)

// Header starts every generated file.
const Header = "// Code generated by proxygen. DO NOT EDIT.\n"

// Generate renders the wrappers for every interface in model as gofmt'd
// Go source. Methods must return error or (T, error).
func Generate(model *PackageModel) ([]byte, error) {
	g := &generator{model: model, imports: map[string]string{ProxyImportPath: "proxy"}}
	var body bytes.Buffer
	for _, im := range model.Interfaces {
		if err := g.iface(&body, im); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	out.WriteString(Header)
	fmt.Fprintf(&out, "\npackage %s\n\n", model.Name)
	g.writeImports(&out)
	out.Write(body.Bytes())

	src, err := format.Source(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting generated code: %w", err)
	}
	return src, nil
}

type generator struct {
	model   *PackageModel
	imports map[string]string // path → name
}

func (g *generator) qualifier(other *types.Package) string {
	if other == g.model.pkg {
		return ""
	}
	g.imports[other.Path()] = other.Name()
	return other.Name()
}

func (g *generator) typeString(t types.Type) string {
	return types.TypeString(t, g.qualifier)
}

func (g *generator) iface(w *bytes.Buffer, im InterfaceModel) error {
	typ := ProxyTypeName(im.Name)
	fmt.Fprintf(w, "// %s implements %s by dynamic dispatch.\n", typ, im.Name)
	fmt.Fprintf(w, "type %s struct {\n\tp proxy.Proxy\n}\n\n", typ)
	fmt.Fprintf(w, "func %s(p proxy.Proxy) %s {\n\treturn %s{p: p}\n}\n\n", ConstructorName(im.Name), im.Name, typ)
	for _, m := range im.Methods {
		if err := g.method(w, typ, im.Name, m); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) method(w *bytes.Buffer, typ, iface string, m MethodModel) error {
	params := make([]string, len(m.Params))
	args := make([]string, len(m.Params))
	for i, p := range m.Params {
		args[i] = p.Name
		if m.Variadic && i == len(m.Params)-1 {
			elem := p.GoType.(*types.Slice).Elem()
			if !isAny(elem) {
				return fmt.Errorf("%s.%s: variadic parameters must be ...any", iface, m.Name)
			}
			params[i] = p.Name + " ..." + g.typeString(elem)
			continue
		}
		params[i] = p.Name + " " + g.typeString(p.GoType)
	}

	call := fmt.Sprintf("%q", Selector(m.Name))
	switch {
	case m.Variadic && len(args) == 1:
		call += ", " + args[0] + "..."
	case m.Variadic:
		last := len(args) - 1
		call += fmt.Sprintf(", append([]any{%s}, %s...)...", strings.Join(args[:last], ", "), args[last])
	case len(args) > 0:
		call += ", " + strings.Join(args, ", ")
	}

	sig := fmt.Sprintf("func (x %s) %s(%s)", typ, m.Name, strings.Join(params, ", "))
	switch {
	case len(m.Results) == 1 && isErrorType(m.Results[0]):
		fmt.Fprintf(w, "%s error {\n\t_, err := x.p.Call(%s)\n\treturn err\n}\n\n", sig, call)
	case len(m.Results) == 2 && isErrorType(m.Results[1]) && isProxyType(m.Results[0]):
		fmt.Fprintf(w, "%s (proxy.Proxy, error) {\n\treturn x.p.Call(%s)\n}\n\n", sig, call)
	case len(m.Results) == 2 && isErrorType(m.Results[1]):
		t := g.typeString(m.Results[0])
		fmt.Fprintf(w, "%s (%s, error) {\n\treturn proxy.CallAs[%s](x.p, %s)\n}\n\n", sig, t, t, call)
	default:
		return fmt.Errorf("%s.%s: results must be error or (T, error)", iface, m.Name)
	}
	return nil
}

// writeImports groups standard library imports before the rest.
func (g *generator) writeImports(w *bytes.Buffer) {
	spec := func(p string) string {
		if name := g.imports[p]; name != path.Base(p) {
			return name + " " + fmt.Sprintf("%q", p)
		}
		return fmt.Sprintf("%q", p)
	}
	if len(g.imports) == 1 {
		fmt.Fprintf(w, "import %s\n\n", spec(ProxyImportPath))
		return
	}
	var std, other []string
	for p := range g.imports {
		if strings.Contains(strings.SplitN(p, "/", 2)[0], ".") {
			other = append(other, p)
		} else {
			std = append(std, p)
		}
	}
	slices.Sort(std)
	slices.Sort(other)

	w.WriteString("import (\n")
	for _, p := range std {
		fmt.Fprintf(w, "\t%s\n", spec(p))
	}
	if len(std) > 0 && len(other) > 0 {
		w.WriteString("\n")
	}
	for _, p := range other {
		fmt.Fprintf(w, "\t%s\n", spec(p))
	}
	w.WriteString(")\n\n")
}
