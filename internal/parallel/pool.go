// Package parallel provides a small bounded worker pool used to fan
// out independent pieces of work across goroutines with backpressure,
// without each caller having to reimplement scaling and shutdown.
// The fixed-point driver (pkg/fixpoint) uses it to match a single
// antecedent goal against many space atoms concurrently.
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// WorkerPool manages a bounded pool of goroutines that run submitted
// tasks, scaling the worker count between minWorkers and maxWorkers in
// response to queue depth.
type WorkerPool struct {
	maxWorkers     int
	minWorkers     int
	currentWorkers int
	taskChan       chan func()
	workerWg       sync.WaitGroup
	shutdownChan   chan struct{}
	scaleChan      chan int
	once           sync.Once
	mu             sync.RWMutex

	scaleUpThreshold   int
	scaleDownThreshold int
	scaleCheckInterval time.Duration
	lastScaleTime      time.Time
	scaleCooldown      time.Duration

	stats *ExecutionStats
}

// NewWorkerPool creates a new worker pool that starts with one worker
// and scales up to maxWorkers. If maxWorkers is 0 or negative, it
// defaults to the number of CPU cores.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	return NewDynamicWorkerPool(maxWorkers, 1)
}

// NewDynamicWorkerPool creates a new worker pool with dynamic scaling
// between minWorkers and maxWorkers.
func NewDynamicWorkerPool(maxWorkers, minWorkers int) *WorkerPool {
	return NewDynamicWorkerPoolWithConfig(maxWorkers, minWorkers, DynamicConfig{})
}

// DynamicConfig holds configuration for dynamic scaling.
type DynamicConfig struct {
	ScaleUpThreshold   int
	ScaleDownThreshold int
	ScaleCheckInterval time.Duration
	ScaleCooldown      time.Duration
}

// NewDynamicWorkerPoolWithConfig creates a new worker pool with custom
// scaling config.
func NewDynamicWorkerPoolWithConfig(maxWorkers, minWorkers int, config DynamicConfig) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	if minWorkers <= 0 {
		minWorkers = 1
	}
	if minWorkers > maxWorkers {
		minWorkers = maxWorkers
	}

	if config.ScaleUpThreshold <= 0 {
		config.ScaleUpThreshold = maxWorkers * 2
	}
	if config.ScaleDownThreshold <= 0 {
		config.ScaleDownThreshold = maxWorkers / 2
		if config.ScaleDownThreshold <= 0 {
			config.ScaleDownThreshold = 1
		}
	}
	if config.ScaleCheckInterval <= 0 {
		config.ScaleCheckInterval = 100 * time.Millisecond
	}
	if config.ScaleCooldown <= 0 {
		config.ScaleCooldown = 500 * time.Millisecond
	}

	pool := &WorkerPool{
		maxWorkers:         maxWorkers,
		minWorkers:         minWorkers,
		currentWorkers:     minWorkers,
		taskChan:           make(chan func(), maxWorkers*4),
		shutdownChan:       make(chan struct{}),
		scaleChan:          make(chan int, 1),
		scaleUpThreshold:   config.ScaleUpThreshold,
		scaleDownThreshold: config.ScaleDownThreshold,
		scaleCheckInterval: config.ScaleCheckInterval,
		scaleCooldown:      config.ScaleCooldown,
		lastScaleTime:      time.Now(),
		stats:              NewExecutionStats(),
	}

	for i := 0; i < minWorkers; i++ {
		pool.workerWg.Add(1)
		go pool.worker()
	}

	go pool.scalingMonitor()

	return pool
}

// worker is the main worker loop that processes tasks from the channel.
func (wp *WorkerPool) worker() {
	defer wp.workerWg.Done()

	for {
		select {
		case task := <-wp.taskChan:
			if task != nil {
				startTime := time.Now()
				func() {
					defer func() {
						if r := recover(); r != nil {
							if wp.stats != nil {
								wp.stats.RecordTaskFailed(fmt.Errorf("task panicked: %v", r))
							}
						}
					}()
					task()
					if wp.stats != nil {
						wp.stats.RecordTaskCompleted(time.Since(startTime))
					}
				}()
			}
		case <-wp.shutdownChan:
			return
		}
	}
}

// Submit submits a task to the worker pool for execution. If the queue
// is full, this call blocks until a worker becomes available or ctx is
// done.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	if wp.stats != nil {
		wp.stats.RecordTaskSubmitted()
	}

	select {
	case <-wp.shutdownChan:
		if wp.stats != nil {
			wp.stats.RecordTaskCancelled()
		}
		return ErrPoolShutdown
	default:
	}

	select {
	case wp.taskChan <- task:
		if wp.stats != nil {
			wp.stats.RecordQueueDepth(len(wp.taskChan))
			wp.mu.RLock()
			workerCount := wp.currentWorkers
			wp.mu.RUnlock()
			wp.stats.RecordWorkerCount(workerCount)
		}
		return nil
	case <-ctx.Done():
		if wp.stats != nil {
			wp.stats.RecordTaskCancelled()
		}
		return ctx.Err()
	case <-wp.shutdownChan:
		if wp.stats != nil {
			wp.stats.RecordTaskCancelled()
		}
		return ErrPoolShutdown
	}
}

// Shutdown gracefully shuts down the worker pool, waiting for all
// currently executing tasks to complete.
func (wp *WorkerPool) Shutdown() {
	wp.once.Do(func() {
		close(wp.shutdownChan)
		close(wp.taskChan)
		wp.workerWg.Wait()

		if wp.stats != nil {
			wp.stats.Finalize()
		}
	})
}

// scalingMonitor continuously monitors queue depth and adjusts worker count.
func (wp *WorkerPool) scalingMonitor() {
	ticker := time.NewTicker(wp.scaleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			wp.checkScaling()
		case newWorkers := <-wp.scaleChan:
			wp.adjustWorkers(newWorkers)
		case <-wp.shutdownChan:
			return
		}
	}
}

// checkScaling evaluates current queue depth and decides if scaling is needed.
func (wp *WorkerPool) checkScaling() {
	wp.mu.RLock()
	if time.Since(wp.lastScaleTime) < wp.scaleCooldown {
		wp.mu.RUnlock()
		return
	}
	currentWorkers := wp.currentWorkers
	maxWorkers := wp.maxWorkers
	minWorkers := wp.minWorkers
	scaleUpThreshold := wp.scaleUpThreshold
	scaleDownThreshold := wp.scaleDownThreshold
	wp.mu.RUnlock()

	queueDepth := len(wp.taskChan)

	if queueDepth > scaleUpThreshold && currentWorkers < maxWorkers {
		newWorkers := currentWorkers + 1
		if newWorkers > maxWorkers {
			newWorkers = maxWorkers
		}
		select {
		case wp.scaleChan <- newWorkers:
		default:
		}
	} else if queueDepth < scaleDownThreshold && currentWorkers > minWorkers {
		newWorkers := currentWorkers - 1
		if newWorkers < minWorkers {
			newWorkers = minWorkers
		}
		select {
		case wp.scaleChan <- newWorkers:
		default:
		}
	}
}

// adjustWorkers changes the number of active workers.
func (wp *WorkerPool) adjustWorkers(targetWorkers int) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	currentWorkers := wp.currentWorkers
	if targetWorkers == currentWorkers {
		return
	}

	if targetWorkers > currentWorkers {
		for i := currentWorkers; i < targetWorkers; i++ {
			wp.workerWg.Add(1)
			go wp.worker()
		}
		if wp.stats != nil {
			wp.stats.RecordScaleUp()
		}
	} else {
		if wp.stats != nil {
			wp.stats.RecordScaleDown()
		}
	}

	wp.currentWorkers = targetWorkers
	wp.lastScaleTime = time.Now()
}

// GetWorkerCount returns the current number of active workers.
func (wp *WorkerPool) GetWorkerCount() int {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.currentWorkers
}

// GetQueueDepth returns the current number of queued tasks.
func (wp *WorkerPool) GetQueueDepth() int {
	return len(wp.taskChan)
}

// GetMaxWorkers returns the maximum number of workers.
func (wp *WorkerPool) GetMaxWorkers() int {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.maxWorkers
}

// GetStats returns the execution statistics collector.
func (wp *WorkerPool) GetStats() *ExecutionStats {
	return wp.stats
}

// ErrPoolShutdown is returned when trying to submit tasks to a shutdown pool.
var ErrPoolShutdown = fmt.Errorf("worker pool has been shutdown")

// ExecutionStats accumulates counters describing a pool's activity,
// useful for diagnostics and tests asserting that fan-out work actually
// ran on more than one goroutine.
type ExecutionStats struct {
	mu sync.Mutex

	tasksSubmitted int64
	tasksCompleted int64
	tasksFailed    int64
	tasksCancelled int64
	scaleUps       int64
	scaleDowns     int64
	maxQueueDepth  int64
	maxWorkerCount int64
	totalDuration  time.Duration
	finalized      bool
}

// NewExecutionStats returns a zeroed stats collector.
func NewExecutionStats() *ExecutionStats {
	return &ExecutionStats{}
}

func (es *ExecutionStats) RecordTaskSubmitted() {
	es.mu.Lock()
	es.tasksSubmitted++
	es.mu.Unlock()
}

func (es *ExecutionStats) RecordTaskCompleted(d time.Duration) {
	es.mu.Lock()
	es.tasksCompleted++
	es.totalDuration += d
	es.mu.Unlock()
}

func (es *ExecutionStats) RecordTaskFailed(err error) {
	es.mu.Lock()
	es.tasksFailed++
	es.mu.Unlock()
}

func (es *ExecutionStats) RecordTaskCancelled() {
	es.mu.Lock()
	es.tasksCancelled++
	es.mu.Unlock()
}

func (es *ExecutionStats) RecordWorkerCount(count int) {
	es.mu.Lock()
	if int64(count) > es.maxWorkerCount {
		es.maxWorkerCount = int64(count)
	}
	es.mu.Unlock()
}

func (es *ExecutionStats) RecordQueueDepth(depth int) {
	es.mu.Lock()
	if int64(depth) > es.maxQueueDepth {
		es.maxQueueDepth = int64(depth)
	}
	es.mu.Unlock()
}

func (es *ExecutionStats) RecordScaleUp() {
	es.mu.Lock()
	es.scaleUps++
	es.mu.Unlock()
}

func (es *ExecutionStats) RecordScaleDown() {
	es.mu.Lock()
	es.scaleDowns++
	es.mu.Unlock()
}

// Finalize marks the stats as closed; further Record* calls still work
// but Finalize is idempotent-safe to call once at pool shutdown.
func (es *ExecutionStats) Finalize() {
	es.mu.Lock()
	es.finalized = true
	es.mu.Unlock()
}

// Snapshot returns a copy of the counters accumulated so far.
func (es *ExecutionStats) Snapshot() ExecutionStats {
	es.mu.Lock()
	defer es.mu.Unlock()
	return ExecutionStats{
		tasksSubmitted: es.tasksSubmitted,
		tasksCompleted: es.tasksCompleted,
		tasksFailed:    es.tasksFailed,
		tasksCancelled: es.tasksCancelled,
		scaleUps:       es.scaleUps,
		scaleDowns:     es.scaleDowns,
		maxQueueDepth:  es.maxQueueDepth,
		maxWorkerCount: es.maxWorkerCount,
		totalDuration:  es.totalDuration,
		finalized:      es.finalized,
	}
}

func (es *ExecutionStats) String() string {
	s := es.Snapshot()
	return fmt.Sprintf("submitted=%d completed=%d failed=%d cancelled=%d maxWorkers=%d maxQueue=%d",
		s.tasksSubmitted, s.tasksCompleted, s.tasksFailed, s.tasksCancelled, s.maxWorkerCount, s.maxQueueDepth)
}
