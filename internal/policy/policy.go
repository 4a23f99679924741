// Package policy guards mutating instance actions with Rego rules.
//
// A policy denies an action by adding a message to data.shotty.deny:
//
//	package shotty
//
//	deny contains msg if {
//		input.action == "stop"
//		input.instance.tags.Protected == "true"
//		msg := sprintf("%s is protected", [input.instance.id])
//	}
package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/shotty/pkg/resource"
)

const denyQuery = "data.shotty.deny"

// Input is the document policies see as `input`.
type Input struct {
	Action   string        `json:"action"`
	Project  string        `json:"project"`
	Instance InstanceInput `json:"instance"`
}

// InstanceInput describes the instance an action targets.
type InstanceInput struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	State            string            `json:"state"`
	AvailabilityZone string            `json:"availability_zone"`
	Tags             map[string]string `json:"tags"`
}

// Decision is the outcome of evaluating every loaded policy.
type Decision struct {
	Allowed bool
	Reasons []string
}

// Engine evaluates loaded Rego modules.
type Engine struct {
	tracer  trace.Tracer
	queries map[string]rego.PreparedEvalQuery
}

// NewEngine creates an engine with no policies; it allows everything.
func NewEngine() *Engine {
	return &Engine{
		tracer:  otel.Tracer("shotty.policy"),
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// Load compiles a Rego module under the given name.
func (e *Engine) Load(ctx context.Context, name, module string) error {
	query := rego.New(
		rego.Query(denyQuery),
		rego.Module(name, module),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("compile policy %s: %w", name, err)
	}

	e.queries[name] = prepared
	log.Debug().Str("policy_name", name).Msg("policy loaded")
	return nil
}

// LoadFile reads and compiles a Rego file.
func (e *Engine) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	return e.Load(ctx, filepath.Base(path), string(data))
}

// Len returns the number of loaded policies.
func (e *Engine) Len() int {
	return len(e.queries)
}

// Check evaluates every policy for an action against an instance.
func (e *Engine) Check(ctx context.Context, action, project string, inst resource.Instance) (Decision, error) {
	ctx, span := e.tracer.Start(ctx, "policy.check",
		trace.WithAttributes(
			attribute.String("action", action),
			attribute.String("instance.id", inst.ID)))
	defer span.End()

	input := Input{
		Action:  action,
		Project: project,
		Instance: InstanceInput{
			ID:               inst.ID,
			Type:             inst.Type,
			State:            inst.State,
			AvailabilityZone: inst.AvailabilityZone,
			Tags:             inst.Tags,
		},
	}

	var reasons []string
	for name, query := range e.queries {
		results, err := query.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			return Decision{}, fmt.Errorf("evaluate policy %s: %w", name, err)
		}
		reasons = append(reasons, denyReasons(results)...)
	}

	sort.Strings(reasons)
	return Decision{Allowed: len(reasons) == 0, Reasons: reasons}, nil
}

func denyReasons(results rego.ResultSet) []string {
	var reasons []string
	for _, res := range results {
		for _, expr := range res.Expressions {
			values, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, v := range values {
				reasons = append(reasons, fmt.Sprint(v))
			}
		}
	}
	return reasons
}
