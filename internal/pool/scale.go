package pool

// Shape is the worker-count and per-worker concurrency chosen for a batch.
type Shape struct {
	Workers   int
	PerWorker int
}

// InFlight returns the maximum simultaneous executions the shape allows
// before the global cap is applied.
func (s Shape) InFlight() int {
	return s.Workers * s.PerWorker
}

// Scale picks the pool shape for a batch of taskCount tasks. Breakpoints:
//
//	<= 2 tasks    1 worker,  concurrency 1
//	<= 10 tasks   2 workers, concurrency 2
//	<= 50 tasks   4 workers, concurrency 3
//	<= 200 tasks  6 workers, concurrency 4
//	> 200 tasks   8 workers, concurrency 4
//
// PerWorker is clamped to perWorkerMax and the total in-flight product is
// clamped so it never exceeds globalMax. globalMax is still enforced at
// runtime by the pool's outer semaphore; the clamp here only avoids
// spawning workers that could never run concurrently.
func Scale(taskCount, globalMax, perWorkerMax int) Shape {
	if globalMax < 1 {
		globalMax = 1
	}
	if perWorkerMax < 1 {
		perWorkerMax = 1
	}

	var s Shape
	switch {
	case taskCount <= 0:
		return Shape{Workers: 1, PerWorker: 1}
	case taskCount <= 2:
		s = Shape{Workers: 1, PerWorker: 1}
	case taskCount <= 10:
		s = Shape{Workers: 2, PerWorker: 2}
	case taskCount <= 50:
		s = Shape{Workers: 4, PerWorker: 3}
	case taskCount <= 200:
		s = Shape{Workers: 6, PerWorker: 4}
	default:
		s = Shape{Workers: 8, PerWorker: 4}
	}

	if s.PerWorker > perWorkerMax {
		s.PerWorker = perWorkerMax
	}
	for s.InFlight() > globalMax && s.Workers > 1 {
		s.Workers--
	}
	if s.InFlight() > globalMax {
		s.PerWorker = globalMax
	}
	return s
}
