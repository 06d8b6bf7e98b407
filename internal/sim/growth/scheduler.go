package growth

import (
	"container/heap"
	"time"
)

// Task is one suspendable growth process. Step performs exactly one unit of work
// and reports how long to suspend before the next one, or done.
type Task interface {
	Step() (delay time.Duration, done bool)
}

// Scheduler runs tasks cooperatively on virtual time. It is driven by a single
// goroutine calling Advance and is not safe for concurrent use.
type Scheduler struct {
	now    time.Duration
	q      taskQueue
	seq    uint64
	budget int

	nextGroup  uint64
	stepsTotal uint64
}

// NewScheduler creates a scheduler. budget caps the number of steps run per
// Advance call; 0 means unlimited.
func NewScheduler(budget int) *Scheduler {
	if budget < 0 {
		budget = 0
	}
	return &Scheduler{budget: budget}
}

// Group collects the tasks of one owner so they can be cancelled together.
type Group struct {
	id        uint64
	cancelled bool
	pending   map[*entry]struct{}

	started  int
	finished int
	steps    int
}

func (g *Group) ID() uint64      { return g.id }
func (g *Group) Cancelled() bool { return g.cancelled }
func (g *Group) Pending() int    { return len(g.pending) }
func (g *Group) Started() int    { return g.started }
func (g *Group) Finished() int   { return g.finished }
func (g *Group) Steps() int      { return g.steps }

type entry struct {
	at    time.Duration
	seq   uint64
	task  Task
	group *Group
	index int
}

func (s *Scheduler) NewGroup() *Group {
	s.nextGroup++
	return &Group{id: s.nextGroup, pending: map[*entry]struct{}{}}
}

// Now is the virtual time of the step currently running, or of the last Advance.
func (s *Scheduler) Now() time.Duration { return s.now }

// Len is the number of suspended tasks across all groups.
func (s *Scheduler) Len() int { return s.q.Len() }

func (s *Scheduler) StepsTotal() uint64 { return s.stepsTotal }

// Start enqueues t to run its first step at the current virtual time. It is a
// no-op for a cancelled group.
func (s *Scheduler) Start(g *Group, t Task) bool {
	if g == nil || t == nil || g.cancelled {
		return false
	}
	g.started++
	s.push(g, t, s.now)
	return true
}

func (s *Scheduler) push(g *Group, t Task, at time.Duration) {
	s.seq++
	e := &entry{at: at, seq: s.seq, task: t, group: g}
	heap.Push(&s.q, e)
	g.pending[e] = struct{}{}
}

// Advance runs every task whose resume time is at or before to, in resume-time
// order, rescheduling each after the delay it returns. Tasks started during a
// step run in the same call if they are due. Returns the number of steps run.
func (s *Scheduler) Advance(to time.Duration) int {
	ran := 0
	for s.q.Len() > 0 {
		if s.budget > 0 && ran >= s.budget {
			break
		}
		e := s.q[0]
		if e.at > to {
			break
		}
		heap.Pop(&s.q)
		delete(e.group.pending, e)
		if e.group.cancelled {
			continue
		}
		if e.at > s.now {
			s.now = e.at
		}
		delay, done := e.task.Step()
		ran++
		e.group.steps++
		if done {
			e.group.finished++
			continue
		}
		if delay < 0 {
			delay = 0
		}
		s.push(e.group, e.task, s.now+delay)
	}
	if to > s.now {
		s.now = to
	}
	s.stepsTotal += uint64(ran)
	return ran
}

// Cancel stops every suspended task of g. Steps never run again for the group;
// nothing they produced is undone. Cancelling twice, or after all tasks have
// finished, is harmless.
func (s *Scheduler) Cancel(g *Group) int {
	if g == nil {
		return 0
	}
	g.cancelled = true
	n := 0
	for e := range g.pending {
		if e.index >= 0 && e.index < s.q.Len() && s.q[e.index] == e {
			heap.Remove(&s.q, e.index)
			n++
		}
	}
	g.pending = map[*entry]struct{}{}
	return n
}

type taskQueue []*entry

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
