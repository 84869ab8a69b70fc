package upgrade

// State marks the stage an upgrade run is in.
type State int

const (
	StateIdle State = iota
	StateCheckingPrerequisites
	StateCheckingRemote
	StateNoUpgradeAvailable
	StateDownloading
	StateVerifying
	StateInstalling
	StateCleaningUp
	StateCompleted
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCheckingPrerequisites:
		return "CheckingPrerequisites"
	case StateCheckingRemote:
		return "CheckingRemote"
	case StateNoUpgradeAvailable:
		return "NoUpgradeAvailable"
	case StateDownloading:
		return "Downloading"
	case StateVerifying:
		return "Verifying"
	case StateInstalling:
		return "Installing"
	case StateCleaningUp:
		return "CleaningUp"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no transition can leave the state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ReturnCode is the process exit status of an upgrade run.
type ReturnCode int

const (
	// ReturnCodeSuccess is reported whenever the run reached Completed.
	ReturnCodeSuccess ReturnCode = 0
	// ReturnCodeGenericError is reported whenever the run reached Failed.
	ReturnCodeGenericError ReturnCode = 3
)
