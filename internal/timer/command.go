package timer

// Command is one of the closed set of timer commands accepted by Engine.Apply.
type Command interface {
	timerCommand()
}

type (
	Start           struct{}
	Stop            struct{}
	Reset           struct{}
	TickNow         struct{}
	SetWorkMinutes  struct{ N int }
	SetBreakMinutes struct{ N int }
)

func (Start) timerCommand()           {}
func (Stop) timerCommand()            {}
func (Reset) timerCommand()           {}
func (TickNow) timerCommand()         {}
func (SetWorkMinutes) timerCommand()  {}
func (SetBreakMinutes) timerCommand() {}
