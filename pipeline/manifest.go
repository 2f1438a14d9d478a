package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/gridmill/gridmill/core/logger"
	"github.com/gridmill/gridmill/core/model"
	"github.com/gridmill/gridmill/core/rules"
)

// Manifest files describe study variants as HCL rule blocks registered on top
// of the built-in pipeline:
//
//	rule "solve_market_relaxed" {
//	  mem_mb = 9000
//	  script = "solve_market_relaxed.sh"
//	  log    = "logs/{day}/solve_market_relaxed_{layout}_{ic}.log"
//
//	  output "dispatch" {
//	    path = "results/{day}/relaxed_dispatch_{layout}_{ic}.csv"
//	  }
//	  input "network" {
//	    path = "networks/{day}/{layout}.nc"
//	  }
//	  input "capacities" {
//	    derived = "iso_week_path"
//	  }
//	}
//
// Overlays add rules; redefining a built-in name or overlapping its output
// patterns is rejected by the registry.
type manifestFile struct {
	Rules []*manifestRule `hcl:"rule,block"`
}

type manifestRule struct {
	Name     string           `hcl:"name,label"`
	MemoryMB int              `hcl:"mem_mb"`
	Script   string           `hcl:"script"`
	Log      string           `hcl:"log,optional"`
	Outputs  []*manifestBlock `hcl:"output,block"`
	Inputs   []*manifestInput `hcl:"input,block"`
}

type manifestBlock struct {
	Name string `hcl:"name,label"`
	Path string `hcl:"path"`
}

type manifestInput struct {
	Name    string `hcl:"name,label"`
	Path    string `hcl:"path,optional"`
	Derived string `hcl:"derived,optional"`
}

// LoadDir parses every .hcl manifest under dir in file-name order and
// registers its rules. Files decode against an EvalContext exposing the
// variant enums (layouts, ic_modes) plus any caller variables, so manifests
// can interpolate e.g. "${vars.scripts_dir}". Returns the number of rules
// added. An empty dir is a no-op.
func LoadDir(reg *rules.Registry, dir string, vars map[string]string, log logger.Logger) (int, error) {
	if dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading rules dir: %w", err)
	}
	ectx := evalContext(vars)
	parser := hclparse.NewParser()
	added := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".hcl") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		n, err := loadFile(reg, parser, path, ectx)
		if err != nil {
			return added, err
		}
		log.Infof("loaded %d rule(s) from manifest %s", n, path)
		added += n
	}
	return added, nil
}

func loadFile(reg *rules.Registry, parser *hclparse.Parser, path string, ectx *hcl.EvalContext) (int, error) {
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return 0, fmt.Errorf("parsing manifest %s: %w", path, diags)
	}
	var mf manifestFile
	if diags := gohcl.DecodeBody(f.Body, ectx, &mf); diags.HasErrors() {
		return 0, fmt.Errorf("decoding manifest %s: %w", path, diags)
	}
	for _, mr := range mf.Rules {
		tpl, err := templateFromManifest(mr)
		if err != nil {
			return 0, fmt.Errorf("manifest %s: %w", path, err)
		}
		if err := reg.Register(tpl); err != nil {
			return 0, fmt.Errorf("manifest %s: %w", path, err)
		}
	}
	return len(mf.Rules), nil
}

func templateFromManifest(mr *manifestRule) (*rules.RuleTemplate, error) {
	tpl := &rules.RuleTemplate{
		Name:     mr.Name,
		MemoryMB: mr.MemoryMB,
		Script:   mr.Script,
	}
	if len(mr.Outputs) == 0 {
		return nil, fmt.Errorf("rule %s declares no outputs", mr.Name)
	}
	for _, out := range mr.Outputs {
		p, err := rules.ParsePattern(out.Path)
		if err != nil {
			return nil, fmt.Errorf("rule %s output %s: %w", mr.Name, out.Name, err)
		}
		tpl.Outputs = append(tpl.Outputs, rules.OutputRef{Name: out.Name, Pattern: p})
	}
	for _, in := range mr.Inputs {
		switch {
		case in.Path != "" && in.Derived != "":
			return nil, fmt.Errorf("rule %s input %s: path and derived are mutually exclusive", mr.Name, in.Name)
		case in.Derived != "":
			tpl.Inputs = append(tpl.Inputs, rules.DerivedInput(in.Name, in.Derived))
		case in.Path != "":
			p, err := rules.ParsePattern(in.Path)
			if err != nil {
				return nil, fmt.Errorf("rule %s input %s: %w", mr.Name, in.Name, err)
			}
			tpl.Inputs = append(tpl.Inputs, rules.InputRef{Name: in.Name, Pattern: p})
		default:
			return nil, fmt.Errorf("rule %s input %s: needs path or derived", mr.Name, in.Name)
		}
	}
	if mr.Log != "" {
		p, err := rules.ParsePattern(mr.Log)
		if err != nil {
			return nil, fmt.Errorf("rule %s log: %w", mr.Name, err)
		}
		tpl.Log = p
	}
	tpl.Validators = manifestValidators(tpl)
	return tpl, nil
}

// manifestValidators attaches the well-known wildcard validators to every
// wildcard the rule's outputs bind, so overlay rules get the same day/layout
// checks as the built-ins.
func manifestValidators(tpl *rules.RuleTemplate) map[string]rules.ValidatorFunc {
	m := make(map[string]rules.ValidatorFunc)
	for _, out := range tpl.Outputs {
		for _, w := range out.Pattern.Wildcards() {
			if fn, ok := wildcardValidators[w]; ok {
				m[w] = fn
			}
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func evalContext(vars map[string]string) *hcl.EvalContext {
	layouts := make([]cty.Value, 0, len(model.Layouts()))
	for _, l := range model.Layouts() {
		layouts = append(layouts, cty.StringVal(l.String()))
	}
	modes := make([]cty.Value, 0, len(model.InterconnectorModes()))
	for _, m := range model.InterconnectorModes() {
		modes = append(modes, cty.StringVal(m.String()))
	}
	userVars := make(map[string]cty.Value, len(vars))
	for k, v := range vars {
		userVars[k] = cty.StringVal(v)
	}
	vals := map[string]cty.Value{
		"layouts":  cty.ListVal(layouts),
		"ic_modes": cty.ListVal(modes),
	}
	if len(userVars) > 0 {
		vals["vars"] = cty.ObjectVal(userVars)
	}
	return &hcl.EvalContext{Variables: vals}
}
