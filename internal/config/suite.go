// Package config decodes HCL suite files into runnable scenarios.
//
// A suite declares fixtures (base file trees) and scenarios over them:
//
//	fixture "basic" {
//	  file "/tsconfig.json" { content = "{...}" }
//	  file "/src/a.ts" { content = "export const x = 1;" }
//	}
//
//	scenario "comment edit" {
//	  fixture     = "basic"
//	  roots       = ["/tsconfig.json"]
//	  source_root = "/src"
//
//	  phase "initial" {
//	    expect { reads = { "/src/a.ts" = 1 } }
//	  }
//	  phase "edit" {
//	    edit "replace" {
//	      path = "/src/a.ts"
//	      old  = "x = 1"
//	      text = "x = 1 // comment"
//	    }
//	  }
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/buildverify/api"
	"github.com/agentic-research/buildverify/internal/clock"
	"github.com/agentic-research/buildverify/internal/fixture"
	"github.com/agentic-research/buildverify/internal/instrument"
	"github.com/agentic-research/buildverify/internal/scenario"
	"github.com/agentic-research/buildverify/internal/vfs"
)

// ErrInvalidSuite is returned for suites that decode but do not resolve.
var ErrInvalidSuite = errors.New("invalid suite")

// Suite is the decoded form of a suite file.
type Suite struct {
	// Baselines is the baseline directory, relative to the suite file.
	Baselines string          `hcl:"baselines,optional"`
	Fixtures  []FixtureBlock  `hcl:"fixture,block"`
	Scenarios []ScenarioBlock `hcl:"scenario,block"`

	dir string
}

type FixtureBlock struct {
	Name       string      `hcl:"name,label"`
	Dir        string      `hcl:"dir,optional"`
	IgnoreCase bool        `hcl:"ignore_case,optional"`
	Files      []FileBlock `hcl:"file,block"`
}

type FileBlock struct {
	Path    string `hcl:"path,label"`
	Content string `hcl:"content"`
}

type ScenarioBlock struct {
	Name       string       `hcl:"name,label"`
	Tool       string       `hcl:"tool,optional"`
	Project    string       `hcl:"project,optional"`
	Fixture    string       `hcl:"fixture"`
	Roots      []string     `hcl:"roots"`
	SourceRoot string       `hcl:"source_root"`
	Outputs    []string     `hcl:"outputs,optional"`
	BuildInfo  string       `hcl:"build_info,optional"`
	SourceMaps []string     `hcl:"source_maps,optional"`
	Phases     []PhaseBlock `hcl:"phase,block"`
}

type PhaseBlock struct {
	Name          string            `hcl:"name,label"`
	Edits         []EditBlock       `hcl:"edit,block"`
	Options       *api.BuildOptions `hcl:"options,block"`
	Expect        *ExpectBlock      `hcl:"expect,block"`
	VerifyOutputs bool              `hcl:"verify_outputs,optional"`
}

type EditBlock struct {
	Kind string `hcl:"kind,label"`
	Path string `hcl:"path"`
	Text string `hcl:"text,optional"`
	Old  string `hcl:"old,optional"`
}

type ExpectBlock struct {
	Diagnostics         []api.Diagnostic `hcl:"diagnostic,block"`
	Reads               map[string]int   `hcl:"reads,optional"`
	Unchanged           []string         `hcl:"unchanged,optional"`
	Regenerated         []string         `hcl:"regenerated,optional"`
	CheckReadMinimality bool             `hcl:"check_read_minimality,optional"`
}

// Load decodes the suite file at path.
func Load(path string) (*Suite, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	s, err := Parse(path, src)
	if err != nil {
		return nil, err
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// Parse decodes suite source. filename is used in diagnostics and must
// end in .hcl.
func Parse(filename string, src []byte) (*Suite, error) {
	var s Suite
	if err := hclsimple.Decode(filename, src, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// BaselineDir resolves the baseline directory against the suite file.
func (s *Suite) BaselineDir() string {
	if s.Baselines == "" || filepath.IsAbs(s.Baselines) {
		return s.Baselines
	}
	return filepath.Join(s.dir, s.Baselines)
}

// Resolve builds every scenario against its fixture. All base
// filesystems are stamped by clk, the clock the runner will use.
func (s *Suite) Resolve(clk *clock.Logical) ([]*scenario.Scenario, error) {
	fixtures := make(map[string]*vfs.FS, len(s.Fixtures))
	for _, fb := range s.Fixtures {
		if _, dup := fixtures[fb.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate fixture %q", ErrInvalidSuite, fb.Name)
		}
		f, err := s.loadFixture(fb, clk)
		if err != nil {
			return nil, fmt.Errorf("fixture %q: %w", fb.Name, err)
		}
		f.MakeReadonly()
		fixtures[fb.Name] = f
	}

	out := make([]*scenario.Scenario, 0, len(s.Scenarios))
	for _, sb := range s.Scenarios {
		base, ok := fixtures[sb.Fixture]
		if !ok {
			return nil, fmt.Errorf("%w: scenario %q uses unknown fixture %q", ErrInvalidSuite, sb.Name, sb.Fixture)
		}
		out = append(out, sb.scenario(base.Shadow()))
	}
	return out, nil
}

// Find resolves the scenario called name.
func (s *Suite) Find(clk *clock.Logical, name string) (*scenario.Scenario, error) {
	all, err := s.Resolve(clk)
	if err != nil {
		return nil, err
	}
	for _, sc := range all {
		if sc.Name == name {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("%w: no scenario %q", ErrInvalidSuite, name)
}

func (s *Suite) loadFixture(fb FixtureBlock, clk *clock.Logical) (*vfs.FS, error) {
	f := vfs.New(vfs.Options{Clock: clk, IgnoreCase: fb.IgnoreCase})
	if fb.Dir != "" {
		dir := fb.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(s.dir, dir)
		}
		if err := fixture.LoadDir(dir, f, "/"); err != nil {
			return nil, err
		}
	}
	if len(fb.Files) == 0 {
		return f, nil
	}
	files := make(map[string]string, len(fb.Files))
	for _, file := range fb.Files {
		files[file.Path] = file.Content
	}
	mem, err := fixture.FromMap(files)
	if err != nil {
		return nil, err
	}
	if err := fixture.Load(mem, f, fixture.Options{}); err != nil {
		return nil, err
	}
	return f, nil
}

func (sb ScenarioBlock) scenario(base *vfs.FS) *scenario.Scenario {
	sc := &scenario.Scenario{
		Name:       sb.Name,
		Tool:       sb.Tool,
		Project:    sb.Project,
		Base:       base,
		Roots:      sb.Roots,
		SourceRoot: sb.SourceRoot,
		Outputs:    sb.Outputs,
		BuildInfo:  sb.BuildInfo,
		SourceMaps: sb.SourceMaps,
	}
	for _, pb := range sb.Phases {
		ph := scenario.Phase{Name: pb.Name, VerifyOutputs: pb.VerifyOutputs}
		for _, eb := range pb.Edits {
			ph.Edits = append(ph.Edits, scenario.Edit{
				Kind: scenario.EditKind(eb.Kind),
				Path: eb.Path,
				Text: eb.Text,
				Old:  eb.Old,
			})
		}
		if pb.Options != nil {
			ph.Options = *pb.Options
		}
		if e := pb.Expect; e != nil {
			ph.Expect = scenario.Expectation{
				Diagnostics:         e.Diagnostics,
				Unchanged:           e.Unchanged,
				Regenerated:         e.Regenerated,
				CheckReadMinimality: e.CheckReadMinimality,
			}
			if e.Reads != nil {
				ph.Expect.Reads = instrument.Tally(e.Reads)
			}
		}
		sc.Phases = append(sc.Phases, ph)
	}
	return sc
}
