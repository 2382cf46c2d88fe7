package tasksvc

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// CanMutate reports whether a task currently in s accepts updates.
// Completed is terminal.
func CanMutate(s Status) bool {
	return s != StatusCompleted
}
