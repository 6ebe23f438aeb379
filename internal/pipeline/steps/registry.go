// Package steps provides step definitions and dependency validation
// for the enhance and topics flows.
package steps

import (
	"fmt"
	"sort"
)

// Flow names
const (
	FlowEnhance = "enhance"
	FlowTopics  = "topics"
)

// Step names
const (
	StepArchitect      = "architect"
	StepWriter         = "writer"
	StepSaver          = "saver"
	StepCheck          = "check"
	StepGenerateTopics = "generate_topics"
	StepUnify          = "unify"
)

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name         string
	Flow         string
	Dependencies []string
	// Terminal steps set the flow's operation status
	Terminal bool
}

// StepRegistry holds all step definitions
var StepRegistry = map[string]StepDefinition{
	StepArchitect: {
		Name:         StepArchitect,
		Flow:         FlowEnhance,
		Dependencies: []string{},
	},
	StepWriter: {
		Name:         StepWriter,
		Flow:         FlowEnhance,
		Dependencies: []string{StepArchitect},
	},
	StepSaver: {
		Name:         StepSaver,
		Flow:         FlowEnhance,
		Dependencies: []string{StepWriter},
		Terminal:     true,
	},
	StepCheck: {
		Name:         StepCheck,
		Flow:         FlowTopics,
		Dependencies: []string{},
	},
	StepGenerateTopics: {
		Name:         StepGenerateTopics,
		Flow:         FlowTopics,
		Dependencies: []string{StepCheck},
	},
	StepUnify: {
		Name:         StepUnify,
		Flow:         FlowTopics,
		Dependencies: []string{StepGenerateTopics},
		Terminal:     true,
	},
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s: missing dependencies: %v", e.Step, e.MissingDependencies)
}

// FlowSteps returns the steps of a flow sorted by name
func FlowSteps(flow string) []StepDefinition {
	var defs []StepDefinition
	for _, def := range StepRegistry {
		if def.Flow == flow {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Dependents returns the steps that depend directly on stepName, sorted by name
func Dependents(stepName string) []string {
	var out []string
	for _, def := range StepRegistry {
		for _, dep := range def.Dependencies {
			if dep == stepName {
				out = append(out, def.Name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ValidateDependencies checks that every dependency of a step is a known step of the same flow
func ValidateDependencies(stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		depDef, ok := StepRegistry[dep]
		if !ok || depDef.Flow != def.Flow {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
		}
	}
	return nil
}

// Validate checks the whole registry: dependencies resolve and every flow has exactly one terminal step
func Validate() error {
	terminals := make(map[string]int)
	for name, def := range StepRegistry {
		if name != def.Name {
			return fmt.Errorf("step registered as %s is named %s", name, def.Name)
		}
		if err := ValidateDependencies(name); err != nil {
			return err
		}
		if def.Terminal {
			terminals[def.Flow]++
		}
	}
	for _, flow := range []string{FlowEnhance, FlowTopics} {
		if terminals[flow] != 1 {
			return fmt.Errorf("flow %s has %d terminal steps, want 1", flow, terminals[flow])
		}
	}
	return nil
}

