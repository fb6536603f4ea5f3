package rolling

// State is a step of the rolling update machine.
type State int

const (
	Idle State = iota
	BalancerOff
	Confirm
	Drain
	Stop
	WaitStopped
	Start
	WaitStarted
	Restore
	BalancerOn
	Done
	Aborted
)

var stateNames = [...]string{
	Idle:        "idle",
	BalancerOff: "balancer-off",
	Confirm:     "confirm",
	Drain:       "drain",
	Stop:        "stop",
	WaitStopped: "wait-stopped",
	Start:       "start",
	WaitStarted: "wait-started",
	Restore:     "restore",
	BalancerOn:  "balancer-on",
	Done:        "done",
	Aborted:     "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s == Done || s == Aborted
}

// PerHost reports whether s acts on the current host.
func (s State) PerHost() bool {
	switch s {
	case Confirm, Drain, Stop, WaitStopped, Start, WaitStarted, Restore:
		return true
	}
	return false
}
