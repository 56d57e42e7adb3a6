package reporter

import "fmt"

// LifecycleError reports a call the reporter's current state does not allow.
type LifecycleError struct {
	Op    string
	State State
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("reporter: %s not allowed in state %s", e.Op, e.State)
}
