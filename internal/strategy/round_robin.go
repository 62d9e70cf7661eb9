package strategy

import (
	"sort"
	"time"

	"taskdog/internal/allocation"
	"taskdog/internal/logging"
	"taskdog/internal/task"
	"taskdog/internal/timeutil"
)

// maxRoundRobinIterations bounds the day-by-day distribution loop so a
// pathological set of tasks (for example, no capacity left on any day)
// cannot spin forever.
const maxRoundRobinIterations = 10000

// RoundRobin distributes capacity evenly across every still-active
// task each day, making uniform progress on all of them rather than
// finishing tasks one at a time.
type RoundRobin struct{}

func (r *RoundRobin) Name() string { return "round_robin" }

func (r *RoundRobin) Optimize(tasks []*task.Task, contextTasks []*task.Task, params allocation.Params) Result {
	timer := logging.StartTimer(logging.CategoryScheduler, r.Name())
	defer timer.Stop()

	grid := allocation.InitializeAllocations(contextTasks)
	result := Result{DailyAllocations: grid}

	prepared := make(map[int]*task.Task, len(tasks))
	remaining := make(map[int]float64, len(tasks))
	perTaskAlloc := make(map[int]map[time.Time]float64, len(tasks))
	firstStamped := make(map[int]*time.Time, len(tasks))
	lastStamped := make(map[int]*time.Time, len(tasks))
	order := make(map[int]*task.Task, len(tasks))

	var activeIDs []int
	for _, t := range tasks {
		p := allocation.PrepareTaskForAllocation(t)
		if p == nil {
			result.Failed = append(result.Failed, Failure{Task: t, Reason: "task is fixed or missing estimated_duration"})
			continue
		}
		prepared[t.ID] = p
		order[t.ID] = t
		remaining[t.ID] = *p.EstimatedDuration
		perTaskAlloc[t.ID] = make(map[time.Time]float64)
		activeIDs = append(activeIDs, t.ID)
	}

	cursor := params.StartDate
	failedIDs := make(map[int]bool)

	for iterations := 0; len(activeIDs) > 0; iterations++ {
		if iterations >= maxRoundRobinIterations {
			logging.SchedulerWarn("round_robin: hit safety iteration limit with %d tasks still active", len(activeIDs))
			for _, id := range activeIDs {
				failedIDs[id] = true
				result.Failed = append(result.Failed, Failure{Task: order[id], Reason: "round robin iteration limit reached"})
			}
			activeIDs = nil
			break
		}

		if !params.IncludeAllDays && !timeutil.IsWorkday(cursor, params.HolidayChecker) {
			cursor = cursor.AddDate(0, 0, 1)
			continue
		}

		day := timeutil.StartOfDay(cursor)
		fixedOnDay := grid[day]
		share := (params.MaxHoursPerDay - fixedOnDay) / float64(len(activeIDs))

		ordered := make([]int, len(activeIDs))
		copy(ordered, activeIDs)
		sort.SliceStable(ordered, func(i, j int) bool {
			return byPriorityDescIDAsc(order[ordered[i]], order[ordered[j]])
		})

		var stillActive []int
		for _, id := range ordered {
			t := prepared[id]
			if t.Deadline != nil && day.After(timeutil.StartOfDay(*t.Deadline)) {
				rollback(grid, perTaskAlloc[id])
				failedIDs[id] = true
				result.Failed = append(result.Failed, Failure{Task: order[id], Reason: "deadline exceeded"})
				continue
			}

			if share > 0 {
				take := remaining[id]
				if share < take {
					take = share
				}
				if take > 0 {
					grid[day] += take
					perTaskAlloc[id][day] += take
					remaining[id] -= take

					c := day
					if firstStamped[id] == nil {
						firstStamped[id] = &c
					}
					lastStamped[id] = &c
				}
			}

			if remaining[id] > 1e-9 {
				stillActive = append(stillActive, id)
			}
		}
		activeIDs = stillActive
		cursor = cursor.AddDate(0, 0, 1)
	}

	for _, t := range tasks {
		p, ok := prepared[t.ID]
		if !ok || failedIDs[t.ID] {
			continue
		}
		if firstStamped[t.ID] == nil {
			result.Failed = append(result.Failed, Failure{Task: t, Reason: "no capacity available"})
			continue
		}
		allocation.SetPlannedTimes(p, *firstStamped[t.ID], *lastStamped[t.ID], perTaskAlloc[t.ID], params.DefaultStartTime, params.DefaultEndTime)
		result.Tasks = append(result.Tasks, p)
	}

	logging.SchedulerDebug("round_robin: scheduled=%d failed=%d", len(result.Tasks), len(result.Failed))
	return result
}
