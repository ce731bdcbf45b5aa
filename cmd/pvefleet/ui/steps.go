package ui

// stepStatus is a step's lifecycle phase as seen by the renderers.
type stepStatus string

const (
	stepPending stepStatus = "pending"
	stepRunning stepStatus = "running"
	stepDone    stepStatus = "done"
	stepFailed  stepStatus = "failed"
)

// stepItem is one renderable step. Steps created to hold dynamically
// discovered children, without ever being announced or started themselves,
// are marked synthetic and get their status rolled up from the children.
type stepItem struct {
	ID       string
	ParentID string
	Title    string
	Status   stepStatus
	Message  string

	synthetic bool
}

// stepSnapshot is the full, ordered step list at one point in time.
type stepSnapshot struct {
	Steps []stepItem
}
