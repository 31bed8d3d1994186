package models

// Action: решение на вход.
type Action string

const (
	ActionWait    Action = "WAIT"
	ActionGoLong  Action = "GO_LONG"
	ActionGoShort Action = "GO_SHORT"
)

// Signal is produced fresh every cycle and never persisted.
type Signal struct {
	Action Action
	Reason string
}

func Wait(reason string) Signal { return Signal{Action: ActionWait, Reason: reason} }

// IsEntry reports whether the signal asks to open a position.
func (s Signal) IsEntry() bool {
	return s.Action == ActionGoLong || s.Action == ActionGoShort
}

// Direction returns the position direction for an entry signal.
func (s Signal) Direction() (Direction, bool) {
	switch s.Action {
	case ActionGoLong:
		return DirectionLong, true
	case ActionGoShort:
		return DirectionShort, true
	}
	return "", false
}
