package samplebuild

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// importRef is one import statement of a source file.
type importRef struct {
	spec  string   // module specifier as written
	names []string // named imports; "default" for a default import
}

// span is a byte range removed when emitting JavaScript.
type span struct{ start, end int }

// sourceFile is everything the builder derives from one source text.
type sourceFile struct {
	path      string
	text      []byte
	version   string
	imports   []importRef
	exports   []string
	strip     []span
	dts       string
	signature string
	syntaxErr int // 1-based line of the first syntax error, 0 if none
}

// typeOnly lists node types removed entirely from JavaScript output.
var typeOnly = map[string]bool{
	"type_annotation":        true,
	"type_parameters":        true,
	"type_arguments":         true,
	"implements_clause":      true,
	"interface_declaration":  true,
	"type_alias_declaration": true,
	"ambient_declaration":    true,
}

func hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// analyze parses a TypeScript source and derives its imports, exports,
// declaration text and the ranges to strip for JavaScript.
func analyze(ctx context.Context, path string, text []byte) (*sourceFile, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(typescript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("parse %s: no syntax tree", path)
	}

	f := &sourceFile{path: path, text: text, version: hash(text)}
	if root.HasError() {
		if n := firstError(root); n != nil {
			f.syntaxErr = int(n.StartPoint().Row) + 1
		} else {
			f.syntaxErr = 1
		}
	}

	var dts []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "import_statement":
			f.addImport(n)
			dts = append(dts, n.Content(text))
		case "export_statement":
			f.addExport(n)
			if line := f.declare(n); line != "" {
				dts = append(dts, line)
			}
		}
	}
	f.collectStrip(root)

	if len(f.exports) == 0 {
		dts = append(dts, "export {};")
	}
	f.dts = strings.Join(dts, "\n") + "\n"
	f.signature = hash([]byte(f.dts))
	return f, nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.HasError() || c.IsError() || c.IsMissing() {
			if found := firstError(c); found != nil {
				return found
			}
		}
	}
	return nil
}

func (f *sourceFile) addImport(n *sitter.Node) {
	src := n.ChildByFieldName("source")
	if src == nil {
		return
	}
	ref := importRef{spec: unquote(src.Content(f.text))}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			c := clause.NamedChild(j)
			switch c.Type() {
			case "identifier":
				ref.names = append(ref.names, "default")
			case "named_imports":
				for k := 0; k < int(c.NamedChildCount()); k++ {
					spec := c.NamedChild(k)
					if spec.Type() != "import_specifier" {
						continue
					}
					if name := spec.ChildByFieldName("name"); name != nil {
						ref.names = append(ref.names, name.Content(f.text))
					}
				}
			}
		}
	}
	f.imports = append(f.imports, ref)
}

func (f *sourceFile) addExport(n *sitter.Node) {
	if decl := n.ChildByFieldName("declaration"); decl != nil {
		f.exports = append(f.exports, declaredNames(decl, f.text)...)
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "default":
			f.exports = append(f.exports, "default")
		case "export_clause":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				name := spec.ChildByFieldName("alias")
				if name == nil {
					name = spec.ChildByFieldName("name")
				}
				if name != nil {
					f.exports = append(f.exports, name.Content(f.text))
				}
			}
		}
	}
}

func declaredNames(decl *sitter.Node, text []byte) []string {
	switch decl.Type() {
	case "lexical_declaration", "variable_declaration":
		var names []string
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			d := decl.NamedChild(i)
			if d.Type() != "variable_declarator" {
				continue
			}
			if name := d.ChildByFieldName("name"); name != nil {
				names = append(names, name.Content(text))
			}
		}
		return names
	default:
		if name := decl.ChildByFieldName("name"); name != nil {
			return []string{name.Content(text)}
		}
	}
	return nil
}

// declare renders the declaration-file text of an export statement.
func (f *sourceFile) declare(n *sitter.Node) string {
	decl := n.ChildByFieldName("declaration")
	if decl == nil {
		return n.Content(f.text)
	}
	switch decl.Type() {
	case "lexical_declaration", "variable_declaration":
		kind := decl.Child(0).Content(f.text)
		var lines []string
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			d := decl.NamedChild(i)
			if d.Type() != "variable_declarator" {
				continue
			}
			name := d.ChildByFieldName("name")
			if name == nil {
				continue
			}
			lines = append(lines, fmt.Sprintf("export declare %s %s%s;", kind, name.Content(f.text), f.inferType(kind, d)))
		}
		return strings.Join(lines, "\n")
	case "function_declaration":
		var b strings.Builder
		b.WriteString("export declare function ")
		if name := decl.ChildByFieldName("name"); name != nil {
			b.WriteString(name.Content(f.text))
		}
		if tp := decl.ChildByFieldName("type_parameters"); tp != nil {
			b.WriteString(tp.Content(f.text))
		}
		if params := decl.ChildByFieldName("parameters"); params != nil {
			b.WriteString(params.Content(f.text))
		} else {
			b.WriteString("()")
		}
		if ret := decl.ChildByFieldName("return_type"); ret != nil {
			b.WriteString(ret.Content(f.text))
		} else {
			b.WriteString(": void")
		}
		b.WriteString(";")
		return b.String()
	case "class_declaration":
		name := ""
		if n := decl.ChildByFieldName("name"); n != nil {
			name = n.Content(f.text)
		}
		return "export declare class " + name + " {\n}"
	default:
		return "export " + decl.Content(f.text)
	}
}

// inferType returns the type suffix of a declarator: its annotation when
// present, a literal initializer for const, or a widened primitive.
func (f *sourceFile) inferType(kind string, d *sitter.Node) string {
	if typ := d.ChildByFieldName("type"); typ != nil {
		return typ.Content(f.text)
	}
	value := d.ChildByFieldName("value")
	if value == nil {
		return ": any"
	}
	literal := kind == "const"
	switch value.Type() {
	case "number", "string", "true", "false":
		if literal {
			return " = " + value.Content(f.text)
		}
	}
	switch value.Type() {
	case "number":
		return ": number"
	case "string", "template_string":
		return ": string"
	case "true", "false":
		return ": boolean"
	default:
		return ": any"
	}
}

// collectStrip records every type-only range for JavaScript emit. An
// exported type-only declaration takes its export keyword with it.
func (f *sourceFile) collectStrip(n *sitter.Node) {
	typ := n.Type()
	switch {
	case typ == "export_statement":
		if decl := n.ChildByFieldName("declaration"); decl != nil && typeOnly[decl.Type()] {
			f.strip = append(f.strip, span{int(n.StartByte()), int(n.EndByte())})
			return
		}
	case typ == "import_statement":
		if n.ChildCount() > 1 && n.Child(1).Type() == "type" {
			f.strip = append(f.strip, span{int(n.StartByte()), int(n.EndByte())})
			return
		}
	case typeOnly[typ]:
		f.strip = append(f.strip, span{int(n.StartByte()), int(n.EndByte())})
		return
	case typ == "as_expression" && n.NamedChildCount() > 0:
		expr := n.NamedChild(0)
		f.strip = append(f.strip, span{int(expr.EndByte()), int(n.EndByte())})
		f.collectStrip(expr)
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		f.collectStrip(n.NamedChild(i))
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'' || s[0] == '`') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func sortedSpans(spans []span) []span {
	out := append([]span(nil), spans...)
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}
