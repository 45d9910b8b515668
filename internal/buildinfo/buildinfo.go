// Package buildinfo reads and writes the incremental build-info record and
// the source maps a build emits. Loosely shaped JSON is validated here and
// turned into typed values; anything that does not fit is rejected with
// ErrMalformedArtifact.
package buildinfo

import (
	"fmt"
	"sort"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// FormatVersion is written into every record produced by Marshal.
const FormatVersion = "1"

// FileState is what the builder remembers about one source file.
type FileState struct {
	// Version is a hash of the file content.
	Version string
	// Signature is a hash of the file's declaration output. Dependents
	// only need rechecking when it changes.
	Signature string
	// Imports lists the resolved paths the file imports, sorted.
	Imports []string
}

// Diagnostic is a diagnostic persisted for a file so that an up-to-date
// build can replay it.
type Diagnostic struct {
	File     string
	Template string
	Args     []string
}

// Info is one build-info record.
type Info struct {
	Version     string
	Options     map[string]string
	Files       map[string]FileState
	Diagnostics []Diagnostic
	// Outputs maps every emitted file to a hash of its content.
	Outputs     map[string]string
	JS          *Bundle
	DTS         *Bundle
}

// OutputPaths returns the recorded outputs, sorted.
func (i *Info) OutputPaths() []string {
	out := make([]string, 0, len(i.Outputs))
	for p := range i.Outputs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

var (
	versionPath     = jp.MustParseString("$.version")
	optionsPath     = jp.MustParseString("$.program.options")
	filesPath       = jp.MustParseString("$.program.files")
	diagnosticsPath = jp.MustParseString("$.program.diagnostics")
	outputsPath     = jp.MustParseString("$.program.outputs")
	jsBundlePath    = jp.MustParseString("$.bundle.js.sections")
	dtsBundlePath   = jp.MustParseString("$.bundle.dts.sections")
)

// Parse decodes and validates a build-info record.
func Parse(data []byte) (*Info, error) {
	root, err := oj.Parse(data)
	if err != nil {
		return nil, malformed("$", "invalid json: %v", err)
	}
	if _, ok := root.(map[string]any); !ok {
		return nil, malformed("$", "record is not an object")
	}

	info := &Info{Options: map[string]string{}, Files: map[string]FileState{}, Outputs: map[string]string{}}
	if info.Version, err = requireString(root, versionPath); err != nil {
		return nil, err
	}

	if v := optionsPath.First(root); v != nil {
		opts, ok := v.(map[string]any)
		if !ok {
			return nil, malformed(optionsPath.String(), "expected object")
		}
		for k, raw := range opts {
			info.Options[k] = fmt.Sprint(raw)
		}
	}

	if v := filesPath.First(root); v != nil {
		files, ok := v.(map[string]any)
		if !ok {
			return nil, malformed(filesPath.String(), "expected object")
		}
		for p, raw := range files {
			st, err := parseFileState(filesPath.String()+"."+p, raw)
			if err != nil {
				return nil, err
			}
			info.Files[p] = st
		}
	}

	if v := diagnosticsPath.First(root); v != nil {
		if info.Diagnostics, err = parseDiagnostics(v); err != nil {
			return nil, err
		}
	}

	if v := outputsPath.First(root); v != nil {
		outputs, ok := v.(map[string]any)
		if !ok {
			return nil, malformed(outputsPath.String(), "expected object")
		}
		for p, raw := range outputs {
			hash, ok := raw.(string)
			if !ok {
				return nil, malformed(outputsPath.String()+"."+p, "expected string")
			}
			info.Outputs[p] = hash
		}
	}

	if info.JS, err = parseBundle(root, jsBundlePath); err != nil {
		return nil, err
	}
	if info.DTS, err = parseBundle(root, dtsBundlePath); err != nil {
		return nil, err
	}
	return info, nil
}

func parseFileState(field string, raw any) (FileState, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return FileState{}, malformed(field, "expected object")
	}
	var st FileState
	var err error
	if st.Version, err = stringField(obj, field, "version", true); err != nil {
		return FileState{}, err
	}
	if st.Signature, err = stringField(obj, field, "signature", false); err != nil {
		return FileState{}, err
	}
	if imports, ok := obj["imports"]; ok {
		if st.Imports, err = stringList(field+".imports", imports); err != nil {
			return FileState{}, err
		}
	}
	return st, nil
}

func parseDiagnostics(v any) ([]Diagnostic, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, malformed(diagnosticsPath.String(), "expected array")
	}
	out := make([]Diagnostic, 0, len(list))
	for i, raw := range list {
		field := fmt.Sprintf("%s[%d]", diagnosticsPath, i)
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, malformed(field, "expected object")
		}
		var d Diagnostic
		var err error
		if d.File, err = stringField(obj, field, "file", false); err != nil {
			return nil, err
		}
		if d.Template, err = stringField(obj, field, "template", true); err != nil {
			return nil, err
		}
		if args, ok := obj["args"]; ok {
			if d.Args, err = stringList(field+".args", args); err != nil {
				return nil, err
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func parseBundle(root any, path jp.Expr) (*Bundle, error) {
	v := path.First(root)
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, malformed(path.String(), "expected array")
	}
	b := &Bundle{Sections: make([]Section, 0, len(list))}
	for i, raw := range list {
		s, err := parseSection(fmt.Sprintf("%s[%d]", path, i), raw)
		if err != nil {
			return nil, err
		}
		b.Sections = append(b.Sections, s)
	}
	if err := b.Validate(path.String()); err != nil {
		return nil, err
	}
	return b, nil
}

func parseSection(field string, raw any) (Section, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Section{}, malformed(field, "expected object")
	}
	kind, err := stringField(obj, field, "kind", true)
	if err != nil {
		return Section{}, err
	}
	s := Section{Kind: SectionKind(kind)}
	if s.Pos, err = intField(obj, field, "pos"); err != nil {
		return Section{}, err
	}
	if s.End, err = intField(obj, field, "end"); err != nil {
		return Section{}, err
	}
	if s.Data, err = stringField(obj, field, "data", false); err != nil {
		return Section{}, err
	}
	if texts, ok := obj["texts"]; ok {
		list, ok := texts.([]any)
		if !ok {
			return Section{}, malformed(field+".texts", "expected array")
		}
		for i, t := range list {
			nested, err := parseSection(fmt.Sprintf("%s.texts[%d]", field, i), t)
			if err != nil {
				return Section{}, err
			}
			s.Texts = append(s.Texts, nested)
		}
	}
	return s, nil
}

func requireString(root any, path jp.Expr) (string, error) {
	s, ok := path.First(root).(string)
	if !ok || s == "" {
		return "", malformed(path.String(), "missing string")
	}
	return s, nil
}

func stringField(obj map[string]any, field, key string, required bool) (string, error) {
	raw, ok := obj[key]
	if !ok {
		if required {
			return "", malformed(field+"."+key, "missing")
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", malformed(field+"."+key, "expected string, got %T", raw)
	}
	return s, nil
}

func intField(obj map[string]any, field, key string) (int, error) {
	raw, ok := obj[key]
	if !ok {
		return 0, malformed(field+"."+key, "missing")
	}
	switch n := raw.(type) {
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, malformed(field+"."+key, "expected integer, got %v", raw)
}

func stringList(field string, raw any) ([]string, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, malformed(field, "expected array")
	}
	out := make([]string, 0, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, malformed(fmt.Sprintf("%s[%d]", field, i), "expected string")
		}
		out = append(out, s)
	}
	return out, nil
}

// Marshal encodes the record as indented JSON with sorted keys, so equal
// records always produce equal bytes.
func (i *Info) Marshal() []byte {
	files := make(map[string]any, len(i.Files))
	for p, st := range i.Files {
		entry := map[string]any{"version": st.Version}
		if st.Signature != "" {
			entry["signature"] = st.Signature
		}
		if len(st.Imports) > 0 {
			entry["imports"] = anyList(st.Imports)
		}
		files[p] = entry
	}

	program := map[string]any{"files": files}
	if len(i.Options) > 0 {
		opts := make(map[string]any, len(i.Options))
		for k, v := range i.Options {
			opts[k] = v
		}
		program["options"] = opts
	}
	if len(i.Diagnostics) > 0 {
		diags := make([]any, 0, len(i.Diagnostics))
		for _, d := range i.Diagnostics {
			entry := map[string]any{"template": d.Template}
			if d.File != "" {
				entry["file"] = d.File
			}
			if len(d.Args) > 0 {
				entry["args"] = anyList(d.Args)
			}
			diags = append(diags, entry)
		}
		program["diagnostics"] = diags
	}
	if len(i.Outputs) > 0 {
		outputs := make(map[string]any, len(i.Outputs))
		for p, h := range i.Outputs {
			outputs[p] = h
		}
		program["outputs"] = outputs
	}

	version := i.Version
	if version == "" {
		version = FormatVersion
	}
	root := map[string]any{"version": version, "program": program}
	bundle := map[string]any{}
	if i.JS != nil {
		bundle["js"] = map[string]any{"sections": sectionList(i.JS.Sections)}
	}
	if i.DTS != nil {
		bundle["dts"] = map[string]any{"sections": sectionList(i.DTS.Sections)}
	}
	if len(bundle) > 0 {
		root["bundle"] = bundle
	}
	return []byte(oj.JSON(root, &ojg.Options{Indent: 2, Sort: true}) + "\n")
}

func sectionList(sections []Section) []any {
	out := make([]any, 0, len(sections))
	for _, s := range sections {
		entry := map[string]any{"kind": string(s.Kind), "pos": int64(s.Pos), "end": int64(s.End)}
		if s.Data != "" {
			entry["data"] = s.Data
		}
		if len(s.Texts) > 0 {
			entry["texts"] = sectionList(s.Texts)
		}
		out = append(out, entry)
	}
	return out
}

func anyList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
