package strategy

import (
	"math/rand"

	"taskdog/internal/allocation"
	"taskdog/internal/logging"
	"taskdog/internal/task"
)

// DefaultMonteCarloTrials is the number of random permutations tried
// when Trials is left at zero.
const DefaultMonteCarloTrials = 200

// MonteCarlo explores the space of task orderings by running N random
// permutations through the shared greedy allocator and keeping the
// best-scoring result.
type MonteCarlo struct {
	// Trials overrides DefaultMonteCarloTrials when positive.
	Trials int
	// Rand overrides the default random source; primarily for tests
	// that want deterministic permutations.
	Rand *rand.Rand
}

func (m *MonteCarlo) Name() string { return "monte_carlo" }

func (m *MonteCarlo) Optimize(tasks []*task.Task, contextTasks []*task.Task, params allocation.Params) Result {
	timer := logging.StartTimer(logging.CategoryScheduler, m.Name())
	defer timer.Stop()

	trials := m.Trials
	if trials <= 0 {
		trials = DefaultMonteCarloTrials
	}
	rng := m.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	var best Result
	var bestScore Score
	haveBest := false

	for i := 0; i < trials; i++ {
		perm := shuffledCopy(tasks, rng)
		result := runForwardOrder(perm, contextTasks, params)
		s := score(result, params)
		if !haveBest || s.Less(bestScore) {
			best = result
			bestScore = s
			haveBest = true
		}
	}

	logging.SchedulerDebug("monte_carlo: %d trials, best scheduled=%d failed=%d", trials, len(best.Tasks), len(best.Failed))
	return best
}

func shuffledCopy(tasks []*task.Task, rng *rand.Rand) []*task.Task {
	out := make([]*task.Task, len(tasks))
	copy(out, tasks)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
