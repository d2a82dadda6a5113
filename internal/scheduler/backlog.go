package scheduler

import (
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
)

// item is one backlog entry. seq preserves insertion order among ties so
// equally urgent work runs first-come first-served.
type item struct {
	task domain.ScrapeTask
	seq  uint64
}

// backlog is a priority heap over pending tasks. Higher priority pops first;
// within a priority the earlier scheduled time wins, then insertion order.
type backlog []*item

func (b backlog) Len() int { return len(b) }

func (b backlog) Less(i, j int) bool {
	if b[i].task.Priority != b[j].task.Priority {
		return b[i].task.Priority > b[j].task.Priority
	}
	if !b[i].task.ScheduledTime.Equal(b[j].task.ScheduledTime) {
		return b[i].task.ScheduledTime.Before(b[j].task.ScheduledTime)
	}
	return b[i].seq < b[j].seq
}

func (b backlog) Swap(i, j int) { b[i], b[j] = b[j], b[i] }

func (b *backlog) Push(x any) { *b = append(*b, x.(*item)) }

func (b *backlog) Pop() any {
	old := *b
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*b = old[:n-1]
	return it
}

// nextDue returns the index of the most urgent entry whose scheduled time has
// arrived, or -1 when nothing is due. The heap root can be a high-priority
// task scheduled for later, so due entries anywhere in the heap count.
func (b backlog) nextDue(now time.Time) int {
	best := -1
	for i, it := range b {
		if it.task.ScheduledTime.After(now) {
			continue
		}
		if best == -1 || b.Less(i, best) {
			best = i
		}
	}
	return best
}
