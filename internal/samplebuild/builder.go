// Package samplebuild is a small incremental builder for TypeScript-like
// projects. It drives the verification engine in tests and demos: sources
// are parsed with tree-sitter, type syntax is stripped to produce
// JavaScript, and exported declarations become .d.ts files. A build-info
// record next to the outputs lets later builds skip work.
package samplebuild

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/agentic-research/buildverify/api"
	"github.com/agentic-research/buildverify/internal/buildinfo"
	"github.com/agentic-research/buildverify/internal/logging"
	"github.com/agentic-research/buildverify/internal/vfs"
)

// LibPath is the default library declaration file. Every build that
// compiles reads it when present.
const LibPath = "/lib/lib.d.ts"

// Builder implements api.Builder.
type Builder struct {
	log *slog.Logger
}

// New returns a Builder logging under the "samplebuild" component.
func New() *Builder {
	return &Builder{log: logging.Sub("samplebuild")}
}

var _ api.Builder = (*Builder)(nil)

// invocation is the state of one BuildAll call.
type invocation struct {
	ctx      context.Context
	host     api.Host
	opts     api.BuildOptions
	sink     api.Sink
	log      *slog.Logger
	projects map[string]*Project // nil value: config failed to load
	order    []*Project          // dependencies before dependents
}

// BuildAll builds every project reachable from roots, upstream first.
func (b *Builder) BuildAll(ctx context.Context, host api.Host, roots []string, opts api.BuildOptions, sink api.Sink) error {
	inv := &invocation{
		ctx:      ctx,
		host:     host,
		opts:     opts,
		sink:     sink,
		log:      b.log,
		projects: map[string]*Project{},
	}
	for _, root := range roots {
		inv.load(vfs.Clean(root), nil)
	}
	if len(inv.order) == 0 {
		return nil
	}
	if opts.Verbose {
		names := lo.Map(inv.order, func(p *Project, _ int) string { return p.Config })
		inv.report(MsgProjectsInBuild, strings.Join(names, ", "))
	}
	for _, p := range inv.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := inv.build(p); err != nil {
			return fmt.Errorf("build %s: %w", p.Config, err)
		}
	}
	return nil
}

func (inv *invocation) report(template string, args ...string) {
	inv.sink.Report(api.NewDiagnostic(template, args...))
}

// load parses config and its references depth first.
func (inv *invocation) load(config string, stack []string) {
	if i := slices.Index(stack, config); i >= 0 {
		cycle := append(slices.Clone(stack[i:]), config)
		inv.report(MsgCircularReference, strings.Join(cycle, " -> "))
		return
	}
	if _, seen := inv.projects[config]; seen {
		return
	}
	data, err := inv.host.ReadFile(config)
	if err != nil {
		inv.report(MsgConfigNotFound, config)
		inv.projects[config] = nil
		return
	}
	p, err := ParseProject(config, data)
	if err != nil {
		inv.report(MsgConfigInvalid, config, err.Error())
		inv.projects[config] = nil
		return
	}
	stack = append(stack, config)
	for _, ref := range p.References {
		inv.load(ref.Path, stack)
	}
	inv.projects[config] = p
	inv.order = append(inv.order, p)
}

func (inv *invocation) build(p *Project) error {
	old := inv.readBuildInfo(p.BuildInfoPath())
	reason, upToDate := inv.status(p, old)
	if inv.opts.Force {
		reason, upToDate = api.NewDiagnostic(MsgForcedRebuild, p.Config), false
	}
	if inv.opts.Verbose {
		inv.sink.Report(reason)
	}
	inv.log.Debug("status", "project", p.Config, "up_to_date", upToDate, "reason", reason.String())

	switch {
	case upToDate && inv.opts.DryRun:
		inv.report(MsgDryRunUpToDate, p.Config)
		return nil
	case upToDate:
		return nil
	case inv.opts.DryRun:
		inv.report(MsgDryRunBuild, p.Config)
		return nil
	}
	if inv.opts.Verbose {
		inv.report(MsgBuilding, p.Config)
	}
	return inv.compile(p, old)
}

// readBuildInfo returns nil when the record is missing or unusable.
func (inv *invocation) readBuildInfo(path string) *buildinfo.Info {
	data, err := inv.host.ReadFile(path)
	if err != nil {
		return nil
	}
	info, err := buildinfo.Parse(data)
	if err != nil {
		inv.log.Warn("discarding build info", "path", path, "err", err)
		return nil
	}
	return info
}

// status decides whether p is up to date using timestamps only; no source
// is read.
func (inv *invocation) status(p *Project, old *buildinfo.Info) (api.Diagnostic, bool) {
	biPath := p.BuildInfoPath()
	bi, err := inv.host.Stat(biPath)
	if err != nil || old == nil {
		return api.NewDiagnostic(MsgOutOfDateMissingOutput, p.Config, biPath), false
	}
	if len(old.Diagnostics) > 0 {
		return api.NewDiagnostic(MsgOutOfDateErrors, p.Config, biPath), false
	}
	for _, out := range old.OutputPaths() {
		if !inv.host.FileExists(out) {
			return api.NewDiagnostic(MsgOutOfDateMissingOutput, p.Config, out), false
		}
	}
	for _, ref := range p.References {
		rp := inv.projects[ref.Path]
		if rp == nil {
			continue
		}
		if st, err := inv.host.Stat(rp.BuildInfoPath()); err == nil && st.ModTime().After(bi.ModTime()) {
			return api.NewDiagnostic(MsgOutOfDateUpstream, p.Config, rp.Config), false
		}
	}

	var newest string
	var newestTime time.Time
	for _, in := range append(slices.Clone(p.Files), p.Config) {
		st, err := inv.host.Stat(in)
		if err != nil {
			return api.NewDiagnostic(MsgOutOfDateMissingInput, p.Config, in), false
		}
		if newest == "" || st.ModTime().After(newestTime) {
			newest, newestTime = in, st.ModTime()
		}
	}
	if newestTime.After(bi.ModTime()) {
		return api.NewDiagnostic(MsgOutOfDateOlderOutput, p.Config, biPath, newest), false
	}
	return api.NewDiagnostic(MsgUpToDate, p.Config, newest, biPath), true
}

// output is one staged write.
type output struct {
	path string
	data []byte
}

// compilation carries one project's compile from analysis to emit.
type compilation struct {
	p         *Project
	fresh     bool
	prevFiles map[string]buildinfo.FileState
	prevOut   map[string]string
	files     []*sourceFile
	byPath    map[string]*sourceFile
	diags     []buildinfo.Diagnostic
	outputs   map[string]string
	writes    []output
}

func (inv *invocation) compile(p *Project, old *buildinfo.Info) error {
	c := &compilation{
		p:         p,
		fresh:     old == nil || inv.opts.Force || !maps.Equal(old.Options, p.Options()),
		prevFiles: map[string]buildinfo.FileState{},
		prevOut:   map[string]string{},
		byPath:    map[string]*sourceFile{},
		outputs:   map[string]string{},
	}
	var prevDiags []buildinfo.Diagnostic
	if old != nil {
		c.prevOut = old.Outputs
		if !c.fresh {
			c.prevFiles = old.Files
			prevDiags = old.Diagnostics
		}
	}

	if inv.host.FileExists(LibPath) {
		if _, err := inv.host.ReadFile(LibPath); err != nil {
			return fmt.Errorf("read %s: %w", LibPath, err)
		}
	}
	for _, src := range p.Files {
		data, err := inv.host.ReadFile(src)
		if errors.Is(err, fs.ErrNotExist) {
			c.diags = append(c.diags, buildinfo.Diagnostic{File: src, Template: MsgFileNotFound, Args: []string{src}})
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", src, err)
		}
		sf, err := analyze(inv.ctx, src, data)
		if err != nil {
			return err
		}
		c.files = append(c.files, sf)
		c.byPath[src] = sf
	}

	states := make(map[string]buildinfo.FileState, len(c.files))
	for _, sf := range c.files {
		imports := c.resolvedImports(sf)
		states[sf.path] = buildinfo.FileState{Version: sf.version, Signature: sf.signature, Imports: imports}
		if sf.syntaxErr > 0 {
			c.diags = append(c.diags, buildinfo.Diagnostic{
				File:     sf.path,
				Template: MsgSyntaxError,
				Args:     []string{sf.path, strconv.Itoa(sf.syntaxErr)},
			})
		}
		if c.needsCheck(sf, imports) {
			c.diags = append(c.diags, c.check(sf)...)
			continue
		}
		c.diags = append(c.diags, lo.Filter(prevDiags, func(d buildinfo.Diagnostic, _ int) bool {
			return d.File == sf.path && d.Template != MsgSyntaxError && d.Template != MsgFileNotFound
		})...)
	}

	var info *buildinfo.Info
	if p.OutFile != "" {
		info = inv.emitBundle(c)
	} else {
		inv.emitFiles(c)
		info = &buildinfo.Info{}
	}
	info.Version = buildinfo.FormatVersion
	info.Options = p.Options()
	info.Files = states
	info.Diagnostics = c.diags
	info.Outputs = c.outputs

	for _, d := range c.diags {
		inv.report(d.Template, d.Args...)
	}

	stale := lo.Filter(lo.Keys(c.prevOut), func(path string, _ int) bool {
		_, kept := c.outputs[path]
		return !kept && inv.host.FileExists(path)
	})
	slices.Sort(stale)

	record := info.Marshal()
	biPath := p.BuildInfoPath()
	if !c.fresh && len(c.writes) == 0 && len(stale) == 0 && bytes.Equal(record, old.Marshal()) {
		return inv.touchOutputs(p, info)
	}

	for _, w := range c.writes {
		if err := inv.write(w.path, w.data); err != nil {
			return err
		}
	}
	for _, path := range stale {
		if err := inv.host.Remove(path); err != nil {
			return fmt.Errorf("remove stale output %s: %w", path, err)
		}
	}
	inv.log.Debug("emitted", "project", p.Config, "writes", len(c.writes), "removed", len(stale), "diagnostics", len(c.diags))
	return inv.write(biPath, record)
}

// touchOutputs handles a build whose inputs changed only in time.
func (inv *invocation) touchOutputs(p *Project, info *buildinfo.Info) error {
	if inv.opts.Verbose {
		inv.report(MsgUpdatingTimestamps, p.Config)
	}
	now := inv.host.Now()
	for _, path := range append(info.OutputPaths(), p.BuildInfoPath()) {
		if err := inv.host.Touch(path, now); err != nil {
			return fmt.Errorf("touch %s: %w", path, err)
		}
	}
	return nil
}

func (inv *invocation) write(path string, data []byte) error {
	if err := inv.host.MkdirAll(vfs.Dir(path)); err != nil {
		return fmt.Errorf("mkdir %s: %w", vfs.Dir(path), err)
	}
	if err := inv.host.WriteFile(path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// stage records an output and queues a write when it is new, differs from
// the recorded hash, or force is set.
func (inv *invocation) stage(c *compilation, path string, data []byte, force bool) {
	h := hash(data)
	c.outputs[path] = h
	if force || c.prevOut[path] != h || !inv.host.FileExists(path) {
		c.writes = append(c.writes, output{path: path, data: data})
	}
}

func (inv *invocation) emitFiles(c *compilation) {
	for _, sf := range c.files {
		changed := c.fresh || c.prevFiles[sf.path].Version != sf.version
		e := emitJS(sf)
		jsPath := c.p.OutputFor(sf.path, ".js")
		js := e.js
		if c.p.SourceMap {
			mapPath := jsPath + ".map"
			js = withMapURL(js, mapPath)
			inv.stage(c, mapPath, sourceMap(jsPath, sf.path, e).Marshal(), changed)
		}
		inv.stage(c, jsPath, []byte(js), changed)
		if c.p.Declaration {
			inv.stage(c, c.p.OutputFor(sf.path, ".d.ts"), []byte(sf.dts), c.fresh)
		}
	}
}

// emitBundle concatenates every file into OutFile, after the outFiles of
// references marked prepend.
func (inv *invocation) emitBundle(c *compilation) *buildinfo.Info {
	p := c.p
	js, dts := &bundleWriter{}, &bundleWriter{}
	if p.AlwaysStrict {
		js.prologue()
	}
	for _, ref := range p.References {
		rp := inv.projects[ref.Path]
		if !ref.Prepend || rp == nil {
			continue
		}
		if rp.OutFile == "" {
			c.diags = append(c.diags, buildinfo.Diagnostic{File: p.Config, Template: MsgPrependRequiresOutFile, Args: []string{rp.Config}})
			continue
		}
		content, err := inv.host.ReadFile(rp.OutFile)
		if err != nil {
			continue
		}
		upstream := inv.readBuildInfo(rp.BuildInfoPath())
		var upJS, upDTS *buildinfo.Bundle
		if upstream != nil {
			upJS, upDTS = upstream.JS, upstream.DTS
		}
		js.prepend(rp.OutFile, content, upJS)
		if p.Declaration && rp.Declaration {
			if decl, err := inv.host.ReadFile(rp.DeclarationBundle()); err == nil {
				dts.prepend(rp.DeclarationBundle(), decl, upDTS)
			}
		}
	}

	var own, ownDTS strings.Builder
	changed := c.fresh
	for _, sf := range c.files {
		own.WriteString(emitJS(sf).js)
		ownDTS.WriteString(sf.dts)
		changed = changed || c.prevFiles[sf.path].Version != sf.version
	}
	js.add(buildinfo.KindText, own.String())
	dts.add(buildinfo.KindText, ownDTS.String())

	info := &buildinfo.Info{JS: js.bundle()}
	inv.stage(c, p.OutFile, []byte(js.String()), changed)
	if p.Declaration {
		info.DTS = dts.bundle()
		inv.stage(c, p.DeclarationBundle(), []byte(dts.String()), c.fresh)
	}
	return info
}

// resolvedImports returns the project files sf imports, sorted.
func (c *compilation) resolvedImports(sf *sourceFile) []string {
	var out []string
	for _, imp := range sf.imports {
		if target := c.resolve(sf, imp.spec); target != nil {
			out = append(out, target.path)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// resolve maps a relative module specifier to a project file.
func (c *compilation) resolve(from *sourceFile, spec string) *sourceFile {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return nil
	}
	base := vfs.Join(vfs.Dir(from.path), spec)
	for _, candidate := range []string{base, base + ".ts", base + ".d.ts", base + "/index.ts"} {
		if sf, ok := c.byPath[candidate]; ok {
			return sf
		}
	}
	return nil
}

// needsCheck reports whether sf's semantic diagnostics must be recomputed:
// the file itself changed, or something it imports changed its signature.
func (c *compilation) needsCheck(sf *sourceFile, imports []string) bool {
	prev, ok := c.prevFiles[sf.path]
	if c.fresh || !ok || prev.Version != sf.version || !slices.Equal(prev.Imports, imports) {
		return true
	}
	return lo.SomeBy(imports, func(path string) bool {
		return c.prevFiles[path].Signature != c.byPath[path].signature
	})
}

func (c *compilation) check(sf *sourceFile) []buildinfo.Diagnostic {
	var out []buildinfo.Diagnostic
	for _, imp := range sf.imports {
		target := c.resolve(sf, imp.spec)
		if target == nil {
			out = append(out, buildinfo.Diagnostic{File: sf.path, Template: MsgCannotFindModule, Args: []string{imp.spec}})
			continue
		}
		for _, name := range imp.names {
			if !lo.Contains(target.exports, name) {
				out = append(out, buildinfo.Diagnostic{File: sf.path, Template: MsgNoExportedMember, Args: []string{imp.spec, name}})
			}
		}
	}
	return out
}
