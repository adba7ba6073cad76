// Package config loads and validates run configurations.
//
// Configs are YAML documents validated against an embedded CUE schema
// before decoding, so malformed configs fail before a run starts rather
// than as a mid-run collaborator fault.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Unknown-custom-entrypoint policies. See the on_unknown_custom field of
// the schema.
const (
	OnUnknownIgnore = "ignore"
	OnUnknownFail   = "fail"
)

// Weights is the generator's relative operation mix.
type Weights struct {
	Propose  int `json:"propose" yaml:"propose"`
	Vote     int `json:"vote" yaml:"vote"`
	Freeze   int `json:"freeze" yaml:"freeze"`
	Transfer int `json:"transfer" yaml:"transfer"`
	Custom   int `json:"custom" yaml:"custom"`
}

// Run is one differential run's configuration. Field semantics are
// documented on the CUE schema, which is the source of truth for bounds
// and defaults.
type Run struct {
	MaxOps          int     `json:"max_ops" yaml:"max_ops"`
	StartLevel      int64   `json:"start_level" yaml:"start_level"`
	PeriodLength    int64   `json:"period_length" yaml:"period_length"`
	Funding         int64   `json:"funding" yaml:"funding"`
	OnUnknownCustom string  `json:"on_unknown_custom" yaml:"on_unknown_custom"`
	Weights         Weights `json:"weights" yaml:"weights"`
}

// Default returns the schema's default configuration.
func Default() Run {
	return Run{
		MaxOps:          64,
		StartLevel:      0,
		PeriodLength:    8,
		Funding:         1,
		OnUnknownCustom: OnUnknownIgnore,
		Weights:         Weights{Propose: 4, Vote: 4, Freeze: 3, Transfer: 2, Custom: 1},
	}
}

// FromMap validates a decoded config document against the CUE schema and
// returns the resulting Run. Missing fields take schema defaults; fields
// outside the schema's bounds or vocabulary are errors.
func FromMap(m map[string]any) (Run, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Run{}, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Run"))
	if err := def.Err(); err != nil {
		return Run{}, fmt.Errorf("lookup #Run: %w", err)
	}

	if m == nil {
		m = map[string]any{}
	}
	v := def.Unify(ctx.Encode(m))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Run{}, fmt.Errorf("invalid run config: %w", err)
	}

	var r Run
	if err := v.Decode(&r); err != nil {
		return Run{}, fmt.Errorf("decode run config: %w", err)
	}
	return r, nil
}

// Load reads a YAML config file and validates it. An empty file yields the
// default configuration.
func Load(path string) (Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Run{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return FromMap(m)
}
