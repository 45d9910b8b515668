package samplebuild

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/buildverify/internal/vfs"
)

// Reference is a dependency on another project.
type Reference struct {
	Path    string // resolved path of the referenced config file
	Prepend bool   // prepend the referenced outFile into this project's outFile
}

// Project is a parsed tsconfig.json.
type Project struct {
	Config       string   // path of the config file
	Files        []string // resolved source paths, in config order
	RootDir      string
	OutDir       string
	OutFile      string
	Declaration  bool
	SourceMap    bool
	AlwaysStrict bool
	References   []Reference
}

var (
	filesPath        = jp.MustParseString("$.files")
	referencesPath   = jp.MustParseString("$.references")
	outDirPath       = jp.MustParseString("$.compilerOptions.outDir")
	outFilePath      = jp.MustParseString("$.compilerOptions.outFile")
	rootDirPath      = jp.MustParseString("$.compilerOptions.rootDir")
	declarationPath  = jp.MustParseString("$.compilerOptions.declaration")
	sourceMapPath    = jp.MustParseString("$.compilerOptions.sourceMap")
	alwaysStrictPath = jp.MustParseString("$.compilerOptions.alwaysStrict")
)

// ParseProject decodes a config file. Relative paths resolve against the
// config's directory.
func ParseProject(configPath string, data []byte) (*Project, error) {
	configPath = vfs.Clean(configPath)
	root, err := oj.Parse(data)
	if err != nil {
		return nil, err
	}
	if _, ok := root.(map[string]any); !ok {
		return nil, fmt.Errorf("config is not an object")
	}
	dir := vfs.Dir(configPath)
	resolve := func(p string) string {
		if strings.HasPrefix(p, "/") {
			return vfs.Clean(p)
		}
		return vfs.Join(dir, p)
	}

	p := &Project{Config: configPath, RootDir: dir}
	if v := filesPath.First(root); v != nil {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("files: expected array")
		}
		for _, f := range list {
			s, ok := f.(string)
			if !ok {
				return nil, fmt.Errorf("files: expected string, got %v", f)
			}
			p.Files = append(p.Files, resolve(s))
		}
	}

	for _, opt := range []struct {
		path jp.Expr
		dst  *string
	}{
		{outDirPath, &p.OutDir},
		{outFilePath, &p.OutFile},
		{rootDirPath, &p.RootDir},
	} {
		if v := opt.path.First(root); v != nil {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%s: expected string", opt.path)
			}
			*opt.dst = resolve(s)
		}
	}
	for _, opt := range []struct {
		path jp.Expr
		dst  *bool
	}{
		{declarationPath, &p.Declaration},
		{sourceMapPath, &p.SourceMap},
		{alwaysStrictPath, &p.AlwaysStrict},
	} {
		if v := opt.path.First(root); v != nil {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("%s: expected boolean", opt.path)
			}
			*opt.dst = b
		}
	}

	if v := referencesPath.First(root); v != nil {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("references: expected array")
		}
		for _, raw := range list {
			obj, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("references: expected object")
			}
			ref, _ := obj["path"].(string)
			if ref == "" {
				return nil, fmt.Errorf("references: missing path")
			}
			ref = resolve(ref)
			if !strings.HasSuffix(ref, ".json") {
				ref = vfs.Join(ref, "tsconfig.json")
			}
			prepend, _ := obj["prepend"].(bool)
			p.References = append(p.References, Reference{Path: ref, Prepend: prepend})
		}
	}
	return p, nil
}

// BuildInfoPath is where the project keeps its build-info record.
func (p *Project) BuildInfoPath() string {
	if p.OutFile != "" {
		return strings.TrimSuffix(p.OutFile, ".js") + ".tsbuildinfo"
	}
	name := strings.TrimSuffix(vfs.Base(p.Config), ".json") + ".tsbuildinfo"
	if p.OutDir != "" {
		return vfs.Join(p.OutDir, name)
	}
	return vfs.Join(vfs.Dir(p.Config), name)
}

// OutputFor returns the emitted path of src with the given extension
// (".js", ".d.ts", ".js.map").
func (p *Project) OutputFor(src, ext string) string {
	base := strings.TrimSuffix(src, vfs.Ext(src))
	if p.OutDir != "" {
		base = vfs.Join(p.OutDir, vfs.Rel(p.RootDir, base))
	}
	return base + ext
}

// DeclarationBundle is the .d.ts companion of OutFile.
func (p *Project) DeclarationBundle() string {
	return strings.TrimSuffix(p.OutFile, ".js") + ".d.ts"
}

// Options returns the options recorded in build info.
func (p *Project) Options() map[string]string {
	opts := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			opts[k] = v
		}
	}
	set("outDir", p.OutDir)
	set("outFile", p.OutFile)
	set("rootDir", p.RootDir)
	if p.Declaration {
		opts["declaration"] = "true"
	}
	if p.SourceMap {
		opts["sourceMap"] = "true"
	}
	if p.AlwaysStrict {
		opts["alwaysStrict"] = "true"
	}
	return opts
}
