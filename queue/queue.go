// Package queue runs operations one at a time per key.
//
// Operations sharing a key are executed strictly in submission order, operations
// of different keys run concurrently. Every key owns a lane which is created on
// first use and dropped as soon as it runs empty.
package queue

import (
	"fmt"
	"sync"

	"github.com/Seklfreak/robyul-starboard/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/oleiade/lane.v1"
)

// Operation is a unit of work executed inside the critical section of its key
type Operation func() error

type job struct {
	op   Operation
	done chan error
}

// Queue serializes operations per key
type Queue struct {
	sync.Mutex
	lanes map[string]*lane.Queue
	log   *logrus.Entry
}

// New returns an empty Queue, failed operations are logged to log
func New(log *logrus.Entry) *Queue {
	return &Queue{
		lanes: make(map[string]*lane.Queue),
		log:   log,
	}
}

// Enqueue schedules op behind every operation already queued for key.
// The returned channel receives the result of op once it ran.
func (q *Queue) Enqueue(key string, op Operation) <-chan error {
	j := &job{op: op, done: make(chan error, 1)}

	q.Lock()
	pending, running := q.lanes[key]
	if !running {
		pending = lane.NewQueue()
		q.lanes[key] = pending
	}
	pending.Enqueue(j)
	q.Unlock()

	if !running {
		go q.drain(key, pending)
	}
	return j.done
}

// Do enqueues op and waits for its result
func (q *Queue) Do(key string, op Operation) error {
	return <-q.Enqueue(key, op)
}

// Len returns the number of keys with pending or running operations
func (q *Queue) Len() int {
	q.Lock()
	defer q.Unlock()
	return len(q.lanes)
}

func (q *Queue) drain(key string, pending *lane.Queue) {
	for {
		// the lane is removed under the same lock Enqueue uses to pick it up,
		// a job is either drained here or starts a new lane
		q.Lock()
		item := pending.Dequeue()
		if item == nil {
			delete(q.lanes, key)
			q.Unlock()
			return
		}
		q.Unlock()

		j := item.(*job)
		err := q.run(j.op)
		if err != nil {
			metrics.QueueFailures.Inc()
			q.log.WithField("key", key).Error("queued operation failed: ", err.Error())
		}
		j.done <- err
	}
}

func (q *Queue) run(op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rErr, ok := r.(error); ok {
				err = errors.Wrap(rErr, "queued operation panicked")
				return
			}
			err = errors.New(fmt.Sprintf("queued operation panicked: %#v", r))
		}
	}()

	return op()
}
