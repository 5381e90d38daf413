package fqueue

import (
	"log/slog"
	"sync"
)

type FunctionCall func() error

// FunctionQueue is a queue of function calls (without parameter) where only
// the head and the calls that fit in the buffer behind it are executed.
//
// For example: the same function is submitted 5 times in rapid sequence: f1,
// f2, f3, f4, f5. f1 is executed, f2 and f3 wait in the buffer, f4 and f5 are
// dropped. All 5 callers are notified with the result of the last executed
// call once the queue is empty.
//
// It is used to pull images: when many steps need the same image at the same
// time only one pull is in flight and everyone waits for it.
type FunctionQueue struct {
	Name             string
	CallbackChannels []chan error
	DropCount        int

	queue      chan FunctionCall
	isRunning  bool
	runLock    sync.Mutex
	queueCount int
}

func NewFunctionQueueWithSize(name string, size int) *FunctionQueue {
	return &FunctionQueue{
		Name:             name,
		DropCount:        0,
		queue:            make(chan FunctionCall, size),
		isRunning:        false,
		queueCount:       0,
		CallbackChannels: []chan error{},
	}
}

func NewFunctionQueue(name string) *FunctionQueue {
	return NewFunctionQueueWithSize(name, 1)
}

// RegisterCallback adds a channel notified when the queue drains. The
// channel must be buffered or have a waiting receiver.
func (fq *FunctionQueue) RegisterCallback(callback chan error) {
	fq.runLock.Lock()
	defer fq.runLock.Unlock()

	fq.CallbackChannels = append(fq.CallbackChannels, callback)
}

func (fq *FunctionQueue) Enqueue(fn FunctionCall) {
	fq.runLock.Lock()
	defer fq.runLock.Unlock()

	fq.enqueue(fn)
}

func (fq *FunctionQueue) enqueue(fn FunctionCall) {
	select {
	case fq.queue <- fn:
		// Function added to queue
		fq.queueCount++
		slog.Debug("Added to queue", "queue", fq.Name, "queue_count", fq.queueCount)

	default:
		// Queue is full, function call is dropped
		slog.Debug("Dropped from queue", "queue", fq.Name, "queue_count", fq.queueCount)
		fq.DropCount++
	}
}

// Submit enqueues fn and starts the queue. The returned channel receives the
// result of the call that drains the queue and is then closed.
func (fq *FunctionQueue) Submit(fn FunctionCall) <-chan error {
	callback := make(chan error, 1)

	fq.runLock.Lock()
	fq.CallbackChannels = append(fq.CallbackChannels, callback)
	fq.enqueue(fn)
	fq.runLock.Unlock()

	fq.Execute()
	return callback
}

func (fq *FunctionQueue) Execute() {
	fq.runLock.Lock()
	if fq.isRunning || fq.queueCount == 0 {
		fq.runLock.Unlock()
		return
	}
	fq.isRunning = true
	fq.runLock.Unlock()

	go func() {
		for fn := range fq.queue {
			slog.Debug("Before execute", "queue", fq.Name)
			err := fn() // Execute the function call
			slog.Debug("After execute", "queue", fq.Name)

			fq.runLock.Lock()
			fq.queueCount--

			if fq.queueCount == 0 {
				slog.Debug("No item in the queue .. returning", "queue", fq.Name)

				fq.isRunning = false

				for _, ch := range fq.CallbackChannels {
					ch <- err
					close(ch)
				}
				fq.CallbackChannels = []chan error{}

				fq.runLock.Unlock()

				return
			}
			fq.runLock.Unlock()
		}
	}()
}

// Manager hands out one queue per key.
type Manager struct {
	lock   sync.Mutex
	queues map[string]*FunctionQueue
}

func NewManager() *Manager {
	return &Manager{
		queues: map[string]*FunctionQueue{},
	}
}

func (m *Manager) Get(key string) *FunctionQueue {
	m.lock.Lock()
	defer m.lock.Unlock()

	fq, ok := m.queues[key]
	if !ok {
		fq = NewFunctionQueue(key)
		m.queues[key] = fq
	}
	return fq
}
