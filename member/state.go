package member

// State is where a member session sits in the sign-in flow.
type State int

const (
	LoggedOut State = iota
	Authenticating
	NewRegistrant
	WaiverPending
	ProfileSetup
	ReturningMember
	ConnectionError
)

var stateNames = map[State]string{
	LoggedOut:       "logged_out",
	Authenticating:  "authenticating",
	NewRegistrant:   "new_registrant",
	WaiverPending:   "waiver_pending",
	ProfileSetup:    "profile_setup",
	ReturningMember: "returning_member",
	ConnectionError: "connection_error",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// MarshalText renders the state by name in JSON views.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
