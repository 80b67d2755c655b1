// Package jsast reads the parts of a JavaScript module the repository scan
// needs: what it imports, what it exports, and, for route modules, the route
// table it default-exports. It walks the tree-sitter syntax tree directly.
package jsast

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// Import is one local binding created by an import statement or a require call.
type Import struct {
	// Local is the name the binding has inside the module.
	Local string `json:"local"`
	// Imported is the exported name it refers to: a member name, "default",
	// or "*" for namespace imports and whole-module requires.
	Imported string `json:"imported"`
	// Source is the module specifier as written.
	Source string `json:"source"`
}

type ExportKind string

const (
	ExportFunction ExportKind = "Function"
	ExportField    ExportKind = "Field"
)

// Export is one named member a module exports.
type Export struct {
	Name string     `json:"name"`
	Kind ExportKind `json:"kind"`
	// Source is the declaration text for functions and the value text for fields.
	Source string `json:"source"`
}

// Route is one entry of a route table.
type Route struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	Actions     []string `json:"actions"`
	Validators  string   `json:"validators,omitempty"`
	Description string   `json:"description,omitempty"`
}

// RouteTable is the default export of a route module:
//
//	export default { basePath: '/edge', description: '...', routes: [...] }
type RouteTable struct {
	BasePath    string  `json:"basePath"`
	Description string  `json:"description,omitempty"`
	Routes      []Route `json:"routes"`
}

// Module is the parse result for one file.
type Module struct {
	Imports []Import    `json:"imports"`
	Exports []Export    `json:"exports"`
	Routes  *RouteTable `json:"routes,omitempty"`
	// Description is an exported "description" string, if any.
	Description string `json:"description,omitempty"`
}

// ImportOf returns the import binding named local.
func (m *Module) ImportOf(local string) (Import, bool) {
	for _, imp := range m.Imports {
		if imp.Local == local {
			return imp, true
		}
	}
	return Import{}, false
}

// binding is a top-level declaration: its name, its value node and the
// text to use as source.
type binding struct {
	kind   ExportKind
	value  *sitter.Node
	source string
}

type walker struct {
	src      []byte
	bindings map[string]binding
	module   *Module
	exported map[string]bool
}

// Parse parses content as a JavaScript module. Syntax errors do not fail the
// parse; tree-sitter recovers and whatever is recognisable is returned.
func Parse(ctx context.Context, content []byte) (*Module, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("jsast: content is not valid UTF-8")
	}

	// new parser per call, *sitter.Parser is not safe for concurrent use
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("jsast: tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	w := &walker{
		src:      content,
		bindings: make(map[string]binding),
		module:   &Module{Imports: []Import{}, Exports: []Export{}},
		exported: make(map[string]bool),
	}
	root := tree.RootNode()

	for i := 0; i < int(root.NamedChildCount()); i++ {
		w.declare(root.NamedChild(i))
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case nodeImportStatement:
			w.importStatement(child)
		case nodeLexicalDeclaration, nodeVariableDeclaration:
			w.requires(child)
		case nodeExportStatement:
			w.exportStatement(child)
		case nodeExpressionStatement:
			w.commonJSExport(child)
		}
	}
	return w.module, nil
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

// stringValue returns the content of a string or template literal without quotes.
func (w *walker) stringValue(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == nodeString {
		var b strings.Builder
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() == nodeStringFragment {
				b.WriteString(w.text(c))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return strings.Trim(w.text(n), "\"'`")
}

func kindOf(value *sitter.Node) ExportKind {
	if value != nil && functionNodes[value.Type()] {
		return ExportFunction
	}
	return ExportField
}

// declare records the top-level bindings of a statement, unwrapping exports.
func (w *walker) declare(n *sitter.Node) {
	switch n.Type() {
	case nodeExportStatement:
		if d := n.ChildByFieldName("declaration"); d != nil {
			w.declare(d)
		}
	case nodeFunctionDeclaration, nodeGeneratorDeclaration, nodeClassDeclaration:
		if name := n.ChildByFieldName("name"); name != nil {
			w.bindings[w.text(name)] = binding{kind: ExportFunction, value: n, source: w.text(n)}
		}
	case nodeLexicalDeclaration, nodeVariableDeclaration:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			d := n.NamedChild(i)
			if d.Type() != nodeVariableDeclarator {
				continue
			}
			name := d.ChildByFieldName("name")
			if name == nil || name.Type() != nodeIdentifier {
				continue
			}
			value := d.ChildByFieldName("value")
			b := binding{kind: kindOf(value), value: value, source: w.text(value)}
			if b.kind == ExportFunction {
				b.source = w.text(n)
			}
			w.bindings[w.text(name)] = b
		}
	}
}

func (w *walker) importStatement(n *sitter.Node) {
	source := w.stringValue(n.ChildByFieldName("source"))
	if source == "" {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != nodeImportClause {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			c := clause.NamedChild(j)
			switch c.Type() {
			case nodeIdentifier:
				w.addImport(w.text(c), "default", source)
			case nodeNamespaceImport:
				for k := 0; k < int(c.NamedChildCount()); k++ {
					if id := c.NamedChild(k); id.Type() == nodeIdentifier {
						w.addImport(w.text(id), "*", source)
					}
				}
			case nodeNamedImports:
				for k := 0; k < int(c.NamedChildCount()); k++ {
					spec := c.NamedChild(k)
					if spec.Type() != nodeImportSpecifier {
						continue
					}
					name := w.stringValue(spec.ChildByFieldName("name"))
					local := name
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						local = w.text(alias)
					}
					w.addImport(local, name, source)
				}
			}
		}
	}
}

func (w *walker) addImport(local, imported, source string) {
	w.module.Imports = append(w.module.Imports, Import{Local: local, Imported: imported, Source: source})
}

// requireSource returns the specifier of a require('x') call, or "".
func (w *walker) requireSource(n *sitter.Node) string {
	if n == nil || n.Type() != nodeCallExpression {
		return ""
	}
	fn := n.ChildByFieldName("function")
	if fn == nil || w.text(fn) != "require" {
		return ""
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	first := args.NamedChild(0)
	if first.Type() != nodeString && first.Type() != nodeTemplateString {
		return ""
	}
	return w.stringValue(first)
}

// requires handles const x = require('m') and const { a, b: c } = require('m').
func (w *walker) requires(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != nodeVariableDeclarator {
			continue
		}
		source := w.requireSource(d.ChildByFieldName("value"))
		if source == "" {
			continue
		}
		name := d.ChildByFieldName("name")
		if name == nil {
			continue
		}
		switch name.Type() {
		case nodeIdentifier:
			w.addImport(w.text(name), "*", source)
		case nodeObjectPattern:
			for j := 0; j < int(name.NamedChildCount()); j++ {
				p := name.NamedChild(j)
				switch p.Type() {
				case nodeShorthandPropertyPattern:
					w.addImport(w.text(p), w.text(p), source)
				case nodePairPattern:
					key := w.stringValue(p.ChildByFieldName("key"))
					value := p.ChildByFieldName("value")
					if value != nil && value.Type() == nodeIdentifier {
						w.addImport(w.text(value), key, source)
					}
				}
			}
		}
	}
}

func (w *walker) addExport(name string, b binding) {
	if name == "" || w.exported[name] {
		return
	}
	if name == "description" && b.kind == ExportField && b.value != nil && b.value.Type() == nodeString {
		w.module.Description = w.stringValue(b.value)
	}
	w.exported[name] = true
	w.module.Exports = append(w.module.Exports, Export{Name: name, Kind: b.kind, Source: b.source})
}

// exportName resolves name against the top-level bindings; unknown names are
// re-exports and count as fields.
func (w *walker) exportName(exported, local string) {
	b, ok := w.bindings[local]
	if !ok {
		b = binding{kind: ExportField, source: local}
	}
	w.addExport(exported, b)
}

func (w *walker) exportStatement(n *sitter.Node) {
	if d := n.ChildByFieldName("declaration"); d != nil {
		switch d.Type() {
		case nodeFunctionDeclaration, nodeGeneratorDeclaration, nodeClassDeclaration:
			name := w.text(d.ChildByFieldName("name"))
			w.exportName(name, name)
		case nodeLexicalDeclaration, nodeVariableDeclaration:
			for i := 0; i < int(d.NamedChildCount()); i++ {
				decl := d.NamedChild(i)
				if decl.Type() != nodeVariableDeclarator {
					continue
				}
				if name := decl.ChildByFieldName("name"); name != nil && name.Type() == nodeIdentifier {
					w.exportName(w.text(name), w.text(name))
				}
			}
		}
		return
	}

	if value := n.ChildByFieldName("value"); value != nil {
		w.defaultExport(value)
		return
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != nodeExportClause {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			spec := clause.NamedChild(j)
			if spec.Type() != nodeExportSpecifier {
				continue
			}
			local := w.stringValue(spec.ChildByFieldName("name"))
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = w.stringValue(alias)
			}
			if exported == "default" {
				if b, ok := w.bindings[local]; ok && b.value != nil {
					w.defaultExport(b.value)
				}
				continue
			}
			w.exportName(exported, local)
		}
	}
}

// defaultExport inspects the default-exported value for a route table.
func (w *walker) defaultExport(value *sitter.Node) {
	if value.Type() == nodeIdentifier {
		b, ok := w.bindings[w.text(value)]
		if !ok || b.value == nil {
			return
		}
		value = b.value
	}
	if value.Type() == nodeObject {
		if table := w.routeTable(value); table != nil {
			w.module.Routes = table
		}
	}
}

// commonJSExport handles module.exports = {...} and exports.x = ....
func (w *walker) commonJSExport(n *sitter.Node) {
	if n.NamedChildCount() == 0 {
		return
	}
	assign := n.NamedChild(0)
	if assign.Type() != nodeAssignmentExpression {
		return
	}
	left := assign.ChildByFieldName("left")
	right := assign.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != nodeMemberExpression {
		return
	}

	target := w.text(left)
	switch {
	case target == "module.exports":
		if right.Type() == nodeIdentifier {
			w.defaultExport(right)
			return
		}
		if right.Type() != nodeObject {
			return
		}
		if table := w.routeTable(right); table != nil {
			w.module.Routes = table
			return
		}
		w.objectExports(right)
	case strings.HasPrefix(target, "exports.") || strings.HasPrefix(target, "module.exports."):
		name := w.text(left.ChildByFieldName("property"))
		if right.Type() == nodeIdentifier {
			w.exportName(name, w.text(right))
			return
		}
		b := binding{kind: kindOf(right), value: right, source: w.text(right)}
		if b.kind == ExportFunction {
			b.source = w.text(n)
		}
		w.addExport(name, b)
	}
}

func (w *walker) objectExports(obj *sitter.Node) {
	for i := 0; i < int(obj.NamedChildCount()); i++ {
		p := obj.NamedChild(i)
		switch p.Type() {
		case nodeShorthandProperty:
			w.exportName(w.text(p), w.text(p))
		case nodePair:
			name := w.stringValue(p.ChildByFieldName("key"))
			value := p.ChildByFieldName("value")
			if value == nil {
				continue
			}
			if value.Type() == nodeIdentifier {
				w.exportName(name, w.text(value))
				continue
			}
			w.addExport(name, binding{kind: kindOf(value), value: value, source: w.text(value)})
		case "method_definition":
			w.addExport(w.text(p.ChildByFieldName("name")), binding{kind: ExportFunction, value: p, source: w.text(p)})
		}
	}
}

// properties maps the keys of an object literal to their value nodes.
func (w *walker) properties(obj *sitter.Node) map[string]*sitter.Node {
	props := make(map[string]*sitter.Node)
	for i := 0; i < int(obj.NamedChildCount()); i++ {
		p := obj.NamedChild(i)
		if p.Type() != nodePair {
			continue
		}
		if key := p.ChildByFieldName("key"); key != nil {
			props[w.stringValue(key)] = p.ChildByFieldName("value")
		}
	}
	return props
}

// routeTable returns the route table in obj, or nil when obj has no
// basePath and routes array.
func (w *walker) routeTable(obj *sitter.Node) *RouteTable {
	props := w.properties(obj)
	base, routes := props["basePath"], props["routes"]
	if base == nil || routes == nil || routes.Type() != nodeArray {
		return nil
	}

	table := &RouteTable{
		BasePath: w.stringValue(base),
		Routes:   []Route{},
	}
	if d := props["description"]; d != nil {
		table.Description = w.stringValue(d)
	}
	for i := 0; i < int(routes.NamedChildCount()); i++ {
		r := routes.NamedChild(i)
		if r.Type() != nodeObject {
			continue
		}
		table.Routes = append(table.Routes, w.route(r))
	}
	return table
}

func (w *walker) route(obj *sitter.Node) Route {
	props := w.properties(obj)
	route := Route{
		Method:      w.stringValue(props["method"]),
		Path:        w.stringValue(props["path"]),
		Actions:     []string{},
		Description: w.stringValue(props["description"]),
		Validators:  w.text(props["validators"]),
	}

	action := props["action"]
	switch {
	case action == nil:
	case action.Type() == nodeArray:
		for i := 0; i < int(action.NamedChildCount()); i++ {
			if el := action.NamedChild(i); el.Type() == nodeMemberExpression {
				route.Actions = append(route.Actions, w.text(el))
			}
		}
	case action.Type() == nodeMemberExpression:
		route.Actions = append(route.Actions, w.text(action))
	}
	return route
}
