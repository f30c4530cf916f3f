package schedule

import "time"

// Command is one of the closed set of scheduler commands accepted by Scheduler.Apply.
type Command interface {
	scheduleCommand()
}

type (
	CreateEvent struct {
		Title string
		Start time.Time
		End   time.Time
		Note  *string
	}
	DeleteEvent    struct{ ID int64 }
	SelectEvent    struct{ ID int64 }
	ClearSelection struct{}
)

func (CreateEvent) scheduleCommand()    {}
func (DeleteEvent) scheduleCommand()    {}
func (SelectEvent) scheduleCommand()    {}
func (ClearSelection) scheduleCommand() {}
