package strategy

import (
	"fmt"

	"taskdog/internal/allocation"
	"taskdog/internal/task"
)

// Strategy is implemented by each of the nine optimization algorithms.
// Dynamic dispatch is by interface, keyed by name through Factory.
type Strategy interface {
	Name() string
	Optimize(tasks []*task.Task, contextTasks []*task.Task, params allocation.Params) Result
}

// Factory resolves an optimization strategy by its configured name.
// Callers dispatch by name through Factory rather than type-switching
// on concrete strategies.
func Factory(name string) (Strategy, error) {
	switch name {
	case "greedy":
		return &Greedy{}, nil
	case "priority_first":
		return &PriorityFirst{}, nil
	case "earliest_deadline":
		return &EarliestDeadline{}, nil
	case "dependency_aware":
		return &DependencyAware{}, nil
	case "balanced":
		return &Balanced{}, nil
	case "backward":
		return &Backward{}, nil
	case "round_robin":
		return &RoundRobin{}, nil
	case "genetic":
		return &Genetic{}, nil
	case "monte_carlo":
		return &MonteCarlo{}, nil
	default:
		return nil, fmt.Errorf("unknown optimization algorithm: %q", name)
	}
}

// Names returns every registered strategy name, simplest to most
// elaborate.
func Names() []string {
	return []string{
		"greedy", "priority_first", "earliest_deadline", "dependency_aware",
		"balanced", "backward", "round_robin", "genetic", "monte_carlo",
	}
}
