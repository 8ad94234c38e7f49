package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// HCLLoader reads .hcl task files.
type HCLLoader struct{}

type hclVariable struct {
	Name    string    `hcl:"name,label"`
	Default cty.Value `hcl:"default,optional"`
}

// hclVariables is decoded first so that variables are known before the rest
// of the file is evaluated.
type hclVariables struct {
	Variables []*hclVariable `hcl:"variable,block"`
	Remain    hcl.Body       `hcl:",remain"`
}

type hclFile struct {
	Scheduler *rawScheduler `hcl:"scheduler,block"`
	Tasks     []*rawTask    `hcl:"task,block"`
	Requests  []*rawRequest `hcl:"request,block"`
}

// Load implements Loader.
func (l *HCLLoader) Load(ctx context.Context, path string, vars map[string]string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading HCL task file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var declared hclVariables
	if diags := gohcl.DecodeBody(file.Body, nil, &declared); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode variables in %s: %w", path, diags)
	}
	evalCtx, err := newEvalContext(declared.Variables, vars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var root hclFile
	if diags := gohcl.DecodeBody(declared.Remain, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	m, err := toModel(root.Scheduler, root.Tasks, root.Requests)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// newEvalContext exposes variables as var.<name>. Values passed on the
// command line are strings and win over declared defaults.
func newEvalContext(declared []*hclVariable, overrides map[string]string) (*hcl.EvalContext, error) {
	values := make(map[string]cty.Value, len(declared)+len(overrides))
	for _, v := range declared {
		if v.Default.IsNull() {
			if _, ok := overrides[v.Name]; !ok {
				return nil, fmt.Errorf("%w: variable %q has no default and no value was given", ErrInvalidConfig, v.Name)
			}
			continue
		}
		values[v.Name] = v.Default
	}
	for name, raw := range overrides {
		values[name] = cty.StringVal(raw)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(values)},
		Functions: map[string]function.Function{
			"format": stdlib.FormatFunc,
			"join":   stdlib.JoinFunc,
			"upper":  stdlib.UpperFunc,
			"lower":  stdlib.LowerFunc,
			"min":    stdlib.MinFunc,
			"max":    stdlib.MaxFunc,
		},
	}, nil
}
