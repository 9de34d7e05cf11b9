// Package run implements the stuntgen pipeline: load the package's source
// files, find the requested interface, and emit a dispatch-table double with
// one generated method per interface member.
package run

import (
	"errors"
	"fmt"
	"go/format"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
)

var (
	errInterfaceNotFound = errors.New("interface not found")
	errNoGoFiles         = errors.New("no .go files found")
)

// method is one interface member with its rendered signature pieces.
type method struct {
	name    string
	params  []param
	results []string
}

type param struct {
	name     string
	typ      string
	variadic bool
}

// LoadPackage parses every non-test .go file in dir with dst.
func LoadPackage(dir string) ([]*dst.File, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", dir, err)
	}

	fset := token.NewFileSet()
	dec := decorator.NewDecorator(fset)

	var (
		files   []*dst.File
		pkgName string
	)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}

		file, err := dec.ParseFile(filepath.Join(dir, name), nil, 0)
		if err != nil {
			// Skip files with parse errors
			continue
		}

		files = append(files, file)
		pkgName = file.Name.Name
	}

	if len(files) == 0 {
		return nil, "", fmt.Errorf("%w in %s", errNoGoFiles, dir)
	}

	return files, pkgName, nil
}

// FindInterface locates the named interface declaration in the files.
func FindInterface(files []*dst.File, name string) (*dst.InterfaceType, error) {
	for _, file := range files {
		for _, decl := range file.Decls {
			genDecl, ok := decl.(*dst.GenDecl)
			if !ok || genDecl.Tok != token.TYPE {
				continue
			}

			for _, spec := range genDecl.Specs {
				typeSpec, ok := spec.(*dst.TypeSpec)
				if !ok || typeSpec.Name.Name != name {
					continue
				}

				iface, ok := typeSpec.Type.(*dst.InterfaceType)
				if !ok {
					return nil, fmt.Errorf("%w: %s is not an interface", errInterfaceNotFound, name)
				}

				return iface, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", errInterfaceNotFound, name)
}

// BuildImportMap maps package qualifiers to import paths across the files,
// so generated signatures can re-import what the interface's types use.
func BuildImportMap(files []*dst.File) map[string]string {
	imports := make(map[string]string)

	for _, file := range files {
		for _, imp := range file.Imports {
			path := strings.Trim(imp.Path.Value, `"`)

			qualifier := path
			if i := strings.LastIndex(path, "/"); i >= 0 {
				qualifier = path[i+1:]
			}

			if imp.Name != nil {
				qualifier = imp.Name.Name
			}

			imports[qualifier] = path
		}
	}

	return imports
}

// Generate emits the double for the named interface: a constructor that
// populates the dispatch table with one entry per member, and one typed
// dispatch method per member funneling through the double's recorder.
// imports maps qualifiers to import paths for types the signatures mention.
func Generate(pkgName, ifaceName, doubleName string, iface *dst.InterfaceType, imports map[string]string) (string, error) {
	methods := collectMethods(iface)

	var b strings.Builder

	fmt.Fprintf(&b, "// Code generated by stuntgen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkgName)

	b.WriteString("import (\n")

	for _, path := range usedImports(iface, imports) {
		fmt.Fprintf(&b, "\t%q\n", path)
	}

	b.WriteString("\n\t\"github.com/stuntkit/stunt\"\n)\n\n")

	fmt.Fprintf(&b, "// %s is a generated test double for %s.\n", doubleName, ifaceName)
	fmt.Fprintf(&b, "type %s struct {\n\tD *stunt.Double\n}\n\n", doubleName)

	memberNames := make([]string, 0, len(methods))
	for _, m := range methods {
		memberNames = append(memberNames, fmt.Sprintf("%q", m.name))
	}

	fmt.Fprintf(&b, "// New%s creates the double with its dispatch table.\n", doubleName)
	fmt.Fprintf(&b, "func New%s(sess *stunt.Session) *%s {\n", doubleName, doubleName)
	fmt.Fprintf(&b, "\treturn &%s{D: sess.NewDouble(%q, %s)}\n}\n",
		doubleName, ifaceName, strings.Join(memberNames, ", "))

	for _, m := range methods {
		b.WriteString("\n")
		writeDispatchMethod(&b, doubleName, m)
	}

	formatted, err := format.Source([]byte(b.String()))
	if err != nil {
		return "", fmt.Errorf("error formatting generated code: %w", err)
	}

	return string(formatted), nil
}

// usedImports returns the sorted import paths for every package qualifier
// the interface's signatures mention.
func usedImports(iface *dst.InterfaceType, imports map[string]string) []string {
	qualifiers := make(map[string]bool)

	for _, field := range iface.Methods.List {
		dst.Inspect(field.Type, func(node dst.Node) bool {
			sel, ok := node.(*dst.SelectorExpr)
			if !ok {
				return true
			}

			if ident, ok := sel.X.(*dst.Ident); ok {
				qualifiers[ident.Name] = true
			}

			return true
		})
	}

	var paths []string

	for qualifier := range qualifiers {
		if path, ok := imports[qualifier]; ok {
			paths = append(paths, path)
		}
	}

	sort.Strings(paths)

	return paths
}

func collectMethods(iface *dst.InterfaceType) []method {
	var methods []method

	for _, field := range iface.Methods.List {
		ftype, ok := field.Type.(*dst.FuncType)
		if !ok || len(field.Names) == 0 {
			// Embedded interfaces need the full loader; out of scope here.
			continue
		}

		m := method{name: field.Names[0].Name}

		argIndex := 0

		if ftype.Params != nil {
			for _, p := range ftype.Params.List {
				typ := typeString(p.Type)
				_, variadic := p.Type.(*dst.Ellipsis)

				names := p.Names
				if len(names) == 0 {
					m.params = append(m.params, param{
						name:     fmt.Sprintf("a%d", argIndex),
						typ:      typ,
						variadic: variadic,
					})
					argIndex++

					continue
				}

				for _, n := range names {
					name := n.Name
					if name == "_" {
						name = fmt.Sprintf("a%d", argIndex)
					}

					m.params = append(m.params, param{name: name, typ: typ, variadic: variadic})
					argIndex++
				}
			}
		}

		if ftype.Results != nil {
			for _, r := range ftype.Results.List {
				count := len(r.Names)
				if count == 0 {
					count = 1
				}

				for range count {
					m.results = append(m.results, typeString(r.Type))
				}
			}
		}

		methods = append(methods, m)
	}

	return methods
}

func writeDispatchMethod(b *strings.Builder, doubleName string, m method) {
	decls := make([]string, 0, len(m.params))
	args := make([]string, 0, len(m.params))

	for i, p := range m.params {
		name := p.name
		// The receiver is named d; shadowing params get positional names.
		if name == "d" || name == "vals" {
			name = fmt.Sprintf("a%d", i)
		}

		decls = append(decls, name+" "+p.typ)
		// Variadic args travel as their slice value.
		args = append(args, name)
	}

	signature := fmt.Sprintf("func (d *%s) %s(%s)", doubleName, m.name, strings.Join(decls, ", "))

	switch len(m.results) {
	case 0:
	case 1:
		signature += " " + m.results[0]
	default:
		signature += " (" + strings.Join(m.results, ", ") + ")"
	}

	fmt.Fprintf(b, "%s {\n", signature)

	recordArgs := ""
	if len(args) > 0 {
		recordArgs = ", " + strings.Join(args, ", ")
	}

	if len(m.results) == 0 {
		fmt.Fprintf(b, "\td.D.Record(%q%s)\n}\n", m.name, recordArgs)

		return
	}

	fmt.Fprintf(b, "\tvals := d.D.Record(%q%s)\n", m.name, recordArgs)

	rets := make([]string, 0, len(m.results))
	for i, r := range m.results {
		rets = append(rets, fmt.Sprintf("stunt.Ret[%s](vals, %d)", r, i))
	}

	fmt.Fprintf(b, "\treturn %s\n}\n", strings.Join(rets, ", "))
}

// typeString renders a dst type expression back to source. Covers the type
// shapes interfaces commonly use; anything else falls back to any.
func typeString(expr dst.Expr) string {
	switch t := expr.(type) {
	case *dst.Ident:
		return t.Name
	case *dst.SelectorExpr:
		return typeString(t.X) + "." + t.Sel.Name
	case *dst.StarExpr:
		return "*" + typeString(t.X)
	case *dst.Ellipsis:
		return "..." + typeString(t.Elt)
	case *dst.ArrayType:
		if t.Len == nil {
			return "[]" + typeString(t.Elt)
		}

		return "[" + typeString(t.Len) + "]" + typeString(t.Elt)
	case *dst.BasicLit:
		return t.Value
	case *dst.MapType:
		return "map[" + typeString(t.Key) + "]" + typeString(t.Value)
	case *dst.ChanType:
		switch t.Dir {
		case dst.RECV:
			return "<-chan " + typeString(t.Value)
		case dst.SEND:
			return "chan<- " + typeString(t.Value)
		default:
			return "chan " + typeString(t.Value)
		}
	case *dst.FuncType:
		return funcTypeString(t)
	case *dst.InterfaceType:
		return "any"
	default:
		return "any"
	}
}

func funcTypeString(t *dst.FuncType) string {
	var params, results []string

	if t.Params != nil {
		for _, p := range t.Params.List {
			count := len(p.Names)
			if count == 0 {
				count = 1
			}

			for range count {
				params = append(params, typeString(p.Type))
			}
		}
	}

	if t.Results != nil {
		for _, r := range t.Results.List {
			count := len(r.Names)
			if count == 0 {
				count = 1
			}

			for range count {
				results = append(results, typeString(r.Type))
			}
		}
	}

	out := "func(" + strings.Join(params, ", ") + ")"

	switch len(results) {
	case 0:
	case 1:
		out += " " + results[0]
	default:
		out += " (" + strings.Join(results, ", ") + ")"
	}

	return out
}
