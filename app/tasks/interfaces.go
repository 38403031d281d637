package tasks

// TaskSchedulerInterface defines the interface for task scheduling
// operations. Used by the main application and the API trigger
// endpoints to manage background retention passes.
type TaskSchedulerInterface interface {
	Start() error
	Stop()
	EnqueueTask(task TaskInterface) error
}
