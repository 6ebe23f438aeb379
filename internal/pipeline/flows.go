package pipeline

import (
	"context"
	"fmt"

	"github.com/jonathan/resume-topics/internal/graph"
	"github.com/jonathan/resume-topics/internal/pipeline/steps"
	"github.com/jonathan/resume-topics/internal/prompts"
	"github.com/jonathan/resume-topics/internal/types"
)

// Flows holds the compiled enhance and topics graphs
type Flows struct {
	enhance *graph.Runnable[State]
	topics  *graph.Runnable[State]
}

// NewFlows compiles both flows from the step registry. hook may be nil.
func NewFlows(stages *Stages, hook graph.NodeHook) (*Flows, error) {
	if err := steps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid step registry: %w", err)
	}
	langs := make([]prompts.Language, len(types.SupportedLangs))
	for i, l := range types.SupportedLangs {
		langs[i] = l
	}
	if err := prompts.Check(langs...); err != nil {
		return nil, err
	}

	fns := map[string]graph.NodeFunc[State]{
		steps.StepArchitect:      stages.Architect,
		steps.StepWriter:         stages.Writer,
		steps.StepSaver:          stages.Saver,
		steps.StepCheck:          stages.Check,
		steps.StepGenerateTopics: stages.GenerateTopics,
		steps.StepUnify:          stages.Unify,
	}

	enhance, err := buildFlow(steps.FlowEnhance, fns, hook)
	if err != nil {
		return nil, err
	}
	topics, err := buildFlow(steps.FlowTopics, fns, hook)
	if err != nil {
		return nil, err
	}
	return &Flows{enhance: enhance, topics: topics}, nil
}

func buildFlow(flow string, fns map[string]graph.NodeFunc[State], hook graph.NodeHook) (*graph.Runnable[State], error) {
	g := graph.New[State](flow, Merge).OnNode(hook)
	for _, def := range steps.FlowSteps(flow) {
		fn, ok := fns[def.Name]
		if !ok {
			return nil, fmt.Errorf("flow %s: no stage function for step %s", flow, def.Name)
		}
		g.AddNode(def.Name, fn)

		if len(def.Dependencies) == 0 {
			g.AddEdge(graph.START, def.Name)
		}
		for _, dep := range def.Dependencies {
			g.AddEdge(dep, def.Name)
		}
		if len(steps.Dependents(def.Name)) == 0 {
			g.AddEdge(def.Name, graph.END)
		}
	}
	return g.Compile()
}

// RunEnhance runs architect, writer and saver against the experience text in initial.
// The returned state carries the terminal status set by the saver.
func (f *Flows) RunEnhance(ctx context.Context, initial State) (State, error) {
	initial.OperationStatus = types.StatusInit
	return f.enhance.Run(ctx, initial)
}

// RunTopics runs check, generate_topics and unify for the career path in initial.
func (f *Flows) RunTopics(ctx context.Context, initial State) (State, error) {
	initial.OperationStatus = types.StatusInit
	return f.topics.Run(ctx, initial)
}

// Schedule returns the node execution order of a flow
func (f *Flows) Schedule(flow string) []string {
	switch flow {
	case steps.FlowEnhance:
		return f.enhance.Schedule()
	case steps.FlowTopics:
		return f.topics.Schedule()
	}
	return nil
}
