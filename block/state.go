package block

// State is a block's lifecycle position.
type State int

const (
	Constructed State = iota
	Activated
	Working
	Deactivated
	Destroyed
)

var stateNames = [...]string{
	Constructed: "constructed",
	Activated:   "activated",
	Working:     "working",
	Deactivated: "deactivated",
	Destroyed:   "destroyed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Active reports whether the engine may call work in state s.
func (s State) Active() bool {
	return s == Activated || s == Working
}
