package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/diverge/internal/op"
)

// Scenario is one differential run described declaratively. Either Seed
// drives the domain generator, or Ops lists the sequence verbatim; a
// scenario with both is invalid.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Seed        int64          `yaml:"seed"`
	Config      map[string]any `yaml:"config"`
	Ops         []ScenarioOp   `yaml:"ops"`
	Tamper      *Tamper        `yaml:"tamper"`
	Expect      Expect         `yaml:"expect"`
}

// ScenarioOp is one operation in YAML form. Kind selects which of the
// remaining fields apply.
type ScenarioOp struct {
	Sender     string         `yaml:"sender"`
	Advance    int64          `yaml:"advance"`
	Kind       string         `yaml:"kind"`
	Proposal   string         `yaml:"proposal"`
	Ballot     string         `yaml:"ballot"`
	Amount     int64          `yaml:"amount"`
	To         string         `yaml:"to"`
	Entrypoint string         `yaml:"entrypoint"`
	Args       map[string]any `yaml:"args"`
}

// Tamper injects a fault into the system's reported outcome at one step.
type Tamper struct {
	// Step is the 1-based operation at which to tamper.
	Step int `yaml:"step"`
	// Field selects the mutation: balance, storage, aux_balance,
	// drop_aux, or poison.
	Field  string `yaml:"field"`
	Key    string `yaml:"key"`
	Handle string `yaml:"handle"`
	Delta  int64  `yaml:"delta"`
}

// Expect is the scenario's required verdict.
type Expect struct {
	// Status is completed, diverged, or fatal.
	Status string `yaml:"status"`
	Step   int    `yaml:"step"`
	Field  string `yaml:"field"`
}

// Load reads and validates one scenario file. Unknown YAML fields are
// errors, so a typoed expectation cannot silently pass.
func Load(path string) (Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.validate(); err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// LoadDir loads every .yaml scenario under dir, sorted by file name.
func LoadDir(dir string) ([]Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	scenarios := make([]Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := Load(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func (sc Scenario) validate() error {
	if sc.Name == "" {
		return fmt.Errorf("missing name")
	}
	if sc.Seed != 0 && len(sc.Ops) > 0 {
		return fmt.Errorf("seed and ops are mutually exclusive")
	}
	switch sc.Expect.Status {
	case "completed", "diverged", "fatal":
	default:
		return fmt.Errorf("unknown expected status %q", sc.Expect.Status)
	}
	if sc.Tamper != nil {
		if sc.Tamper.Step <= 0 {
			return fmt.Errorf("tamper step must be positive")
		}
		switch sc.Tamper.Field {
		case "balance", "storage", "aux_balance", "drop_aux", "poison":
		default:
			return fmt.Errorf("unknown tamper field %q", sc.Tamper.Field)
		}
	}
	for i, o := range sc.Ops {
		if _, err := o.toOperation(); err != nil {
			return fmt.Errorf("op %d: %w", i+1, err)
		}
	}
	return nil
}

func (s ScenarioOp) toOperation() (op.Operation, error) {
	o := op.Operation{Sender: op.Sender(s.Sender), Advance: s.Advance}
	switch s.Kind {
	case "propose":
		o.Payload = op.Propose{Proposal: s.Proposal}
	case "vote":
		b, err := op.ParseBallot(s.Ballot)
		if err != nil {
			return op.Operation{}, err
		}
		o.Payload = op.Vote{Proposal: s.Proposal, Ballot: b}
	case "freeze":
		o.Payload = op.Freeze{Amount: s.Amount}
	case "transfer":
		o.Payload = op.Transfer{To: op.Handle(s.To), Amount: s.Amount}
	case "custom":
		o.Payload = op.Custom{Entrypoint: s.Entrypoint, Args: s.Args}
	default:
		return op.Operation{}, fmt.Errorf("unknown operation kind %q", s.Kind)
	}
	return o, nil
}

// Operations converts the scenario's explicit operation list.
func (sc Scenario) Operations() ([]op.Operation, error) {
	ops := make([]op.Operation, 0, len(sc.Ops))
	for i, s := range sc.Ops {
		o, err := s.toOperation()
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i+1, err)
		}
		ops = append(ops, o)
	}
	return ops, nil
}
