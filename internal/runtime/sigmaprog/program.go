// Package sigmaprog compiles a virtual file set of Sigma rule definitions
// into an executable program. Matching rules resolve boolean features and emit
// event labels; a reserved bindings file maps event data fields onto tracked
// entities and their features.
package sigmaprog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"
	"gopkg.in/yaml.v3"

	"eventengine/internal/identity"
	"eventengine/internal/runtime"
	"eventengine/pkg/models"
)

// BindingsFile is the reserved file set entry that declares entity and
// feature bindings instead of a Sigma rule.
const BindingsFile = "bindings.yml"

// FeaturePrefix prefixes the boolean output feature declared by each rule.
const FeaturePrefix = "rule:"

type bindingsSpec struct {
	Entities []entityBinding `yaml:"entities"`
	Features []string        `yaml:"features"`
}

// entityBinding extracts one entity per event: the id comes from Field in the
// event data, and Features names data fields copied onto the entity.
type entityBinding struct {
	Type     string   `yaml:"type"`
	Relation string   `yaml:"relation"`
	Field    string   `yaml:"field"`
	Features []string `yaml:"features"`
}

type compiledRule struct {
	feature   string
	labelType string
	label     string
	cause     string
	eval      *sigmaevaluator.RuleEvaluator
}

// Compiler builds Sigma-backed programs.
type Compiler struct{}

// Compile parses every file set entry as a Sigma rule, except the reserved
// bindings file. Parse diagnostics keep the offending file name.
func (Compiler) Compile(ctx context.Context, files *runtime.FileSet) (runtime.Program, error) {
	prog := &program{version: files.Fingerprint()}

	for _, name := range files.Names() {
		src, _ := files.Source(name)

		if name == BindingsFile {
			if err := yaml.Unmarshal([]byte(src), &prog.bindings); err != nil {
				return nil, fmt.Errorf("compile %s: %w", name, err)
			}
			continue
		}

		rule, err := sigma.ParseRule([]byte(src))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		prog.rules = append(prog.rules, compileRule(rule))
	}

	for _, r := range prog.rules {
		prog.features = append(prog.features, r.feature)
	}
	prog.features = append(prog.features, prog.bindings.Features...)

	return prog, nil
}

func compileRule(rule sigma.Rule) compiledRule {
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		id = strings.TrimSpace(rule.Title)
	}
	level := strings.ToLower(strings.TrimSpace(rule.Level))
	if level == "" {
		level = "medium"
	}
	return compiledRule{
		feature:   FeaturePrefix + id,
		labelType: level,
		label:     strings.TrimSpace(rule.Title),
		cause:     id,
		eval:      sigmaevaluator.ForRule(rule),
	}
}

type program struct {
	version  string
	rules    []compiledRule
	bindings bindingsSpec
	features []string
}

func (p *program) Version() string { return p.version }

func (p *program) Features() []string { return p.features }

func (p *program) Execute(event *models.RawEvent, env runtime.Env) runtime.Execution {
	return &execution{prog: p, event: event, env: env}
}

// execution evaluates all rules and bindings exactly once, on the first
// feature fetch. Sigma evaluation is all-at-once, so every declared feature
// resolves together with the completion signal.
type execution struct {
	prog  *program
	event *models.RawEvent
	env   runtime.Env

	once sync.Once
	err  error
}

func (e *execution) FetchFeature(ctx context.Context, name string) error {
	if name != runtime.CompletionFeature && !e.declared(name) {
		return fmt.Errorf("unknown feature %q", name)
	}
	e.once.Do(func() { e.err = e.run(ctx) })
	return e.err
}

// Finalize is a no-op: this backend requests no deferred side effects.
func (e *execution) Finalize(ctx context.Context) error {
	return nil
}

func (e *execution) declared(name string) bool {
	for _, f := range e.prog.features {
		if f == name {
			return true
		}
	}
	return false
}

func (e *execution) run(ctx context.Context) error {
	eventMap := sigmaEventFrom(e.event)
	sink := e.env.Sink

	for _, rule := range e.prog.rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		rule := rule
		err := e.env.Calls.Do(ctx, func() error {
			res, err := rule.eval.Matches(ctx, eventMap)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", rule.cause, err)
			}
			if res.Match {
				sink.AddEventFeature(rule.feature, true)
				sink.AddEventLabel(rule.labelType, rule.label, rule.cause)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	e.applyBindings(sink)
	return nil
}

func (e *execution) applyBindings(sink runtime.Sink) {
	for _, name := range e.prog.bindings.Features {
		if v, ok := e.event.Data[name]; ok {
			sink.AddEventFeature(name, v)
		}
	}

	for _, b := range e.prog.bindings.Entities {
		id := stringField(e.event.Data, b.Field)
		if id == "" {
			continue
		}
		ref := identity.Format(models.EntityRef{Type: b.Type, Relation: b.Relation, ID: id})
		sink.TrackEntity(ref)
		for _, name := range b.Features {
			if v, ok := e.event.Data[name]; ok {
				sink.AddEntityFeature(ref, name, v)
			}
		}
	}
}

func sigmaEventFrom(event *models.RawEvent) map[string]interface{} {
	buf := make(map[string]interface{}, len(event.Data)+2)
	for k, v := range event.Data {
		buf[k] = v
	}
	buf["EventType"] = event.Type
	buf["EventID"] = event.ID
	return buf
}

func stringField(data map[string]interface{}, name string) string {
	v, ok := data[name]
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%f", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
