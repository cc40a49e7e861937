package domain

import "time"

// TaskType distinguishes engineering work items.
type TaskType string

const (
	TaskTypeTask TaskType = "task"
	TaskTypeBug  TaskType = "bug"
)

// TaskStatus enumerates lifecycle states for development tasks.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusDone       TaskStatus = "done"
)

// TaskResolution classifies why a task was closed.
type TaskResolution string

const (
	ResolutionCompleted       TaskResolution = "completed"
	ResolutionDuplicate       TaskResolution = "duplicate"
	ResolutionWontDo          TaskResolution = "wont_do"
	ResolutionMoved           TaskResolution = "moved"
	ResolutionInvalid         TaskResolution = "invalid"
	ResolutionObsolete        TaskResolution = "obsolete"
	ResolutionCannotReproduce TaskResolution = "cannot_reproduce"
)

var taskResolutions = map[TaskResolution]struct{}{
	ResolutionCompleted:       {},
	ResolutionDuplicate:       {},
	ResolutionWontDo:          {},
	ResolutionMoved:           {},
	ResolutionInvalid:         {},
	ResolutionObsolete:        {},
	ResolutionCannotReproduce: {},
}

// ValidTaskResolution reports whether r belongs to the fixed taxonomy.
func ValidTaskResolution(r TaskResolution) bool {
	_, ok := taskResolutions[r]
	return ok
}

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusTodo:       {TaskStatusInProgress},
	TaskStatusInProgress: {TaskStatusTodo, TaskStatusBlocked, TaskStatusDone},
	TaskStatusBlocked:    {TaskStatusInProgress},
}

// ValidTaskTransition reports whether current may move to next.
func ValidTaskTransition(current, next TaskStatus) bool {
	for _, candidate := range taskTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// DefaultBugSeverity is applied to bug-type tasks created without one.
const DefaultBugSeverity = "major"

var fibonacciPoints = map[int]struct{}{1: {}, 2: {}, 3: {}, 5: {}, 8: {}, 13: {}}

// ValidStoryPoints reports whether v is nil or a member of the Fibonacci set
// used for estimation.
func ValidStoryPoints(v *int) bool {
	if v == nil {
		return true
	}
	_, ok := fibonacciPoints[*v]
	return ok
}

// Task is an internally-scoped unit of engineering work.
type Task struct {
	ID             string
	TenantID       string
	ProductID      string
	FeatureID      *string
	IssueKey       string
	Title          string
	Description    string
	Type           TaskType
	Status         TaskStatus
	Priority       int
	StoryPoints    *int
	EstimateHours  *float64
	ActualHours    *float64
	DueDate        *time.Time
	Labels         []string
	BlockedReason  *string
	Severity       *string
	Environment    *string
	ImplementorID  *string
	DeveloperID    *string
	TesterID       *string
	ModuleID       *string
	ComponentID    *string
	AddonID        *string
	TicketID       *string
	Metadata       Metadata
	Resolution     *TaskResolution
	ResolutionNote *string
	CreatedBy      string
	ReporterID     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
}

// TaskAssignment is one row in a task's assignment set.
type TaskAssignment struct {
	TaskID    string
	UserID    string
	CreatedAt time.Time
}

// Assigned reports whether userID appears in the assignment set.
func Assigned(assignments []TaskAssignment, userID string) bool {
	for _, a := range assignments {
		if a.UserID == userID {
			return true
		}
	}
	return false
}
