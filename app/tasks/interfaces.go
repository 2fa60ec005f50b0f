package tasks

// TaskSchedulerInterface is the surface the rest of the application uses to
// drive background work: start/stop the worker pool and enqueue ad-hoc
// tasks (manual fetches and digest runs from the API).
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
