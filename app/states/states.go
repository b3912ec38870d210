package states

// TaskStatus is the lifecycle of a parent task submitted for decomposition.
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskSplitting TaskStatus = "SPLITTING"
	TaskReady     TaskStatus = "READY"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskFailed    TaskStatus = "FAILED"
)

// SubTaskStatus is the lifecycle of a single scheduled unit of work.
type SubTaskStatus string

const (
	SubTaskPending   SubTaskStatus = "PENDING"
	SubTaskQueued    SubTaskStatus = "QUEUED"
	SubTaskRunning   SubTaskStatus = "RUNNING"
	SubTaskCompleted SubTaskStatus = "COMPLETED"
	SubTaskFailed    SubTaskStatus = "FAILED"
)

// TaskType selects the runner used to execute a sub-task.
type TaskType string

const (
	TypeCodeGen       TaskType = "CODE_GEN"
	TypeDataRetrieval TaskType = "DATA_RETRIEVAL"
	TypeAPICall       TaskType = "API_CALL"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

func (s SubTaskStatus) Terminal() bool {
	return s == SubTaskCompleted || s == SubTaskFailed
}

// ValidTaskType reports whether t is one of the runnable task types.
func ValidTaskType(t TaskType) bool {
	switch t {
	case TypeCodeGen, TypeDataRetrieval, TypeAPICall:
		return true
	}
	return false
}

// StepKind identifies a workflow step in an agent definition.
type StepKind string

const (
	StepRetrieve StepKind = "retrieve"
	StepPlan     StepKind = "plan"
	StepExecute  StepKind = "execute"
	StepPersist  StepKind = "persist"
	StepFinish   StepKind = "finish"
)

func ValidStepKind(k StepKind) bool {
	switch k {
	case StepRetrieve, StepPlan, StepExecute, StepPersist, StepFinish:
		return true
	}
	return false
}
