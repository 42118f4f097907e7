// timer/manual.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	if q[i].Execute.Equal(q[j].Execute) {
		return q[i].Id < q[j].Id
	}
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// ManualClock is a virtual clock. Time only moves when Advance is called,
// and callbacks run synchronously on the caller of Advance.
type ManualClock struct {
	queue  TimerQueue
	mutex  sync.Mutex
	now    time.Time
	nextId int64
}

func NewManualClock(start time.Time) *ManualClock {
	c := &ManualClock{
		queue:  make(TimerQueue, 0),
		now:    start,
		nextId: 1,
	}
	heap.Init(&c.queue)
	return c
}

func (c *ManualClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	task := &TimerTask{
		Id:       c.nextId,
		Execute:  c.now.Add(d),
		Callback: f,
	}
	c.nextId++

	heap.Push(&c.queue, task)
	return &manualTimer{clock: c, task: task}
}

// Advance moves the clock forward by d, firing every callback that falls due
// in deadline order. Callbacks may schedule new timers; those fire too if they
// are due before the new time.
func (c *ManualClock) Advance(d time.Duration) {
	c.mutex.Lock()
	target := c.now.Add(d)
	c.mutex.Unlock()

	for {
		c.mutex.Lock()
		if c.queue.Len() == 0 || c.queue[0].Execute.After(target) {
			c.now = target
			c.mutex.Unlock()
			return
		}
		task := heap.Pop(&c.queue).(*TimerTask)
		c.now = task.Execute
		c.mutex.Unlock()

		task.Callback()
	}
}

// Pending returns the number of callbacks waiting to fire.
func (c *ManualClock) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.queue.Len()
}

type manualTimer struct {
	clock *ManualClock
	task  *TimerTask
}

func (t *manualTimer) Stop() bool {
	t.clock.mutex.Lock()
	defer t.clock.mutex.Unlock()

	if t.task.index < 0 {
		return false
	}
	heap.Remove(&t.clock.queue, t.task.index)
	return true
}
