package reminder

import (
	"container/heap"

	"ecocal/internal/model"
)

// taskQueue is a min-heap of pending reminder tasks ordered by SendAt.
type taskQueue struct {
	tasks []*model.ReminderTask
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{tasks: []*model.ReminderTask{}}
	heap.Init(q)
	return q
}

func (q taskQueue) Len() int {
	return len(q.tasks)
}

func (q taskQueue) Less(i, j int) bool {
	return q.tasks[i].SendAt.Before(q.tasks[j].SendAt)
}

func (q taskQueue) Swap(i, j int) {
	q.tasks[j], q.tasks[i] = q.tasks[i], q.tasks[j]
}

func (q *taskQueue) Push(t any) {
	task, ok := t.(*model.ReminderTask)
	if !ok {
		return
	}
	q.tasks = append(q.tasks, task)
}

func (q *taskQueue) Pop() any {
	n := len(q.tasks)
	if n == 0 {
		return nil
	}
	popped := q.tasks[n-1]
	q.tasks = q.tasks[:n-1]
	return popped
}

func (q *taskQueue) Peek() *model.ReminderTask {
	if len(q.tasks) == 0 {
		return nil
	}
	return q.tasks[0]
}
