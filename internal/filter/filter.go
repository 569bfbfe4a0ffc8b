// Package filter suppresses incidents before they enter the triage pipeline.
// Two mechanisms run in order: namespace exclusion (exact names or regex
// patterns) and CEL suppression expressions evaluated against the incident.
// Evaluation short-circuits on the first match.
package filter

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/aqrpole/kube-ai-sre-agent/internal/config"
	"github.com/aqrpole/kube-ai-sre-agent/internal/model"
)

// celCostLimit caps CEL evaluation cost per expression.
const celCostLimit uint64 = 1000

// Reason identifies why an incident was suppressed. Used as the "reason"
// label on the filtered-incidents metric.
type Reason string

const (
	ReasonNamespace  Reason = "namespace_excluded"
	ReasonExpression Reason = "suppress_expression"
)

// Result is the outcome of filter evaluation for one incident.
type Result struct {
	// Suppressed is true when the incident should be dropped.
	Suppressed bool

	// Reason identifies the matching mechanism. Empty when not suppressed.
	Reason Reason

	// Expression is the CEL source that matched, for ReasonExpression only.
	Expression string
}

// Engine holds the compiled filter rules. All compilation happens at
// construction; an invalid pattern or expression is a startup error, never a
// silent runtime skip. The engine is immutable and safe for concurrent use.
type Engine struct {
	patterns    []*namespacePattern
	expressions []compiledExpression
	logger      *slog.Logger
}

// namespacePattern holds either an exact namespace name or a compiled regex.
type namespacePattern struct {
	raw   string
	exact bool
	re    *regexp.Regexp
}

type compiledExpression struct {
	source  string
	program cel.Program
}

// NewEngine compiles the configured filters.
func NewEngine(cfg config.FiltersConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	patterns, err := compileNamespacePatterns(cfg.ExcludeNamespaces)
	if err != nil {
		return nil, fmt.Errorf("invalid excludeNamespaces pattern: %w", err)
	}

	expressions, err := compileExpressions(cfg.SuppressExpressions)
	if err != nil {
		return nil, fmt.Errorf("invalid suppressExpressions entry: %w", err)
	}

	return &Engine{
		patterns:    patterns,
		expressions: expressions,
		logger:      logger,
	}, nil
}

// Evaluate runs the filter chain against an incident. A CEL expression that
// errors at evaluation time is logged and treated as non-matching, so a bad
// expression can never suppress everything by accident.
func (e *Engine) Evaluate(inc *model.Incident) Result {
	if e.matchesNamespaceExclusion(inc.Pod.Namespace) {
		e.logger.Debug("incident suppressed by namespace exclusion",
			"pod", inc.Pod.Name,
			"namespace", inc.Pod.Namespace,
			"incident_id", inc.ID,
		)
		return Result{Suppressed: true, Reason: ReasonNamespace}
	}

	vars := map[string]any{"incident": incidentVars(inc)}
	for _, expr := range e.expressions {
		out, _, err := expr.program.Eval(vars)
		if err != nil {
			e.logger.Warn("suppress expression evaluation error",
				"expression", expr.source,
				"incident_id", inc.ID,
				"error", err,
			)
			continue
		}
		matched, ok := out.Value().(bool)
		if !ok {
			e.logger.Warn("suppress expression returned non-bool",
				"expression", expr.source,
				"incident_id", inc.ID,
			)
			continue
		}
		if matched {
			e.logger.Debug("incident suppressed by expression",
				"pod", inc.Pod.Name,
				"namespace", inc.Pod.Namespace,
				"expression", expr.source,
				"incident_id", inc.ID,
			)
			return Result{Suppressed: true, Reason: ReasonExpression, Expression: expr.source}
		}
	}

	return Result{}
}

// incidentVars exposes the incident to CEL as a dynamic-typed map, so
// expressions can reference fields without a schema.
func incidentVars(inc *model.Incident) map[string]any {
	var restartCount int64
	container := inc.Pod.ContainerName
	if inc.Container != nil {
		restartCount = int64(inc.Container.RestartCount)
		container = inc.Container.Name
	}

	labels := map[string]string{}
	for k, v := range inc.Pod.Labels {
		labels[k] = v
	}

	return map[string]any{
		"pod":           inc.Pod.Name,
		"namespace":     inc.Pod.Namespace,
		"node":          inc.Pod.Node,
		"phase":         string(inc.Pod.Phase),
		"container":     container,
		"restart_count": restartCount,
		"rule":          inc.Rule,
		"labels":        labels,
	}
}

func (e *Engine) matchesNamespaceExclusion(namespace string) bool {
	for _, p := range e.patterns {
		if p.exact {
			if p.raw == namespace {
				return true
			}
		} else if p.re.MatchString(namespace) {
			return true
		}
	}
	return false
}

// compileExpressions compiles the CEL suppression expressions. Each must
// evaluate to bool over the `incident` variable.
func compileExpressions(sources []string) ([]compiledExpression, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("incident", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	compiled := make([]compiledExpression, 0, len(sources))
	for _, src := range sources {
		if strings.TrimSpace(src) == "" {
			continue
		}
		ast, issues := env.Compile(src)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("expression %q: %w", src, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("expression %q must return bool, got %s", src, ast.OutputType())
		}
		prog, err := env.Program(ast, cel.CostLimit(celCostLimit))
		if err != nil {
			return nil, fmt.Errorf("expression %q: %w", src, err)
		}
		compiled = append(compiled, compiledExpression{source: src, program: prog})
	}
	return compiled, nil
}

// hasRegexMeta reports whether the string contains regex metacharacters,
// indicating it should be treated as a regex rather than an exact match.
func hasRegexMeta(s string) bool {
	for _, ch := range s {
		switch ch {
		case '.', '*', '+', '?', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
			return true
		}
	}
	return false
}

// compileNamespacePatterns compiles the excludeNamespaces list. Strings
// without regex metacharacters match exactly; the rest compile as regex
// anchored to the full namespace name.
func compileNamespacePatterns(patterns []string) ([]*namespacePattern, error) {
	result := make([]*namespacePattern, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		np := &namespacePattern{raw: p}
		if hasRegexMeta(p) {
			anchored := p
			if !strings.HasPrefix(anchored, "^") {
				anchored = "^" + anchored
			}
			if !strings.HasSuffix(anchored, "$") {
				anchored = anchored + "$"
			}
			re, err := regexp.Compile(anchored)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", p, err)
			}
			np.re = re
		} else {
			np.exact = true
		}
		result = append(result, np)
	}
	return result, nil
}
