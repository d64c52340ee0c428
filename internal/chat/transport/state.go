package transport

// State connection lifecycle state
type State int

// Disconnected -> Connecting -> Open -> (Closing | Reconnecting) -> Disconnected
const (
	Disconnected State = iota
	Connecting
	Open
	Closing
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Reconnecting:
		return "reconnecting"
	}
	return "unknown"
}
