package rename

// State is the phase of the rename transaction.
type State int32

const (
	Idle State = iota
	CapturingPosition
	AwaitingUserInput
	RequestingEdit
	ApplyingPatch
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CapturingPosition:
		return "capturing-position"
	case AwaitingUserInput:
		return "awaiting-user-input"
	case RequestingEdit:
		return "requesting-edit"
	case ApplyingPatch:
		return "applying-patch"
	default:
		return "unknown"
	}
}
