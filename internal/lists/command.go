package lists

// Command is one of the closed set of list commands accepted by Store.Apply.
type Command interface {
	listCommand()
}

type (
	AddTask     struct{ Text string }
	ToggleTask  struct{ ID int64 }
	DeleteTask  struct{ ID int64 }
	ImportTasks struct{ Text string }
	AddNote     struct{ Content string }
	DeleteNote  struct{ ID int64 }
)

func (AddTask) listCommand()     {}
func (ToggleTask) listCommand()  {}
func (DeleteTask) listCommand()  {}
func (ImportTasks) listCommand() {}
func (AddNote) listCommand()     {}
func (DeleteNote) listCommand()  {}
