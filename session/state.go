package session

type State int

const (
	StateAbsent State = iota
	StateCreated
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Up"
	}
	return "Absent"
}
