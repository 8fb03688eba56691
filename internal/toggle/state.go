// Package toggle holds the on/off state of the switch and runs the commands
// that move it between its two states.
package toggle

// Status is the StatusNotifierItem status string.
type Status string

const (
	StatusActive  Status = "Active"
	StatusPassive Status = "Passive"
)

// Defaults used when neither flags nor config supply a value.
const (
	DefaultCommandOn  = "echo Enabled"
	DefaultCommandOff = "echo Disabled"
	DefaultIconOn     = "checkbox-checked-symbolic"
	DefaultIconOff    = "checkbox-symbolic"
	DefaultTitle      = "Toggler"

	Category = "SystemServices"
	ID       = "Toggler"
)

// Options configures a new State. Empty strings fall back to the defaults.
type Options struct {
	CommandOn  string
	CommandOff string
	IconOn     string
	IconOff    string
	Title      string
	Enabled    bool
}

// State is the toggle switch. It is owned by a single goroutine and is not
// safe for concurrent use.
type State struct {
	commandOn  string
	commandOff string
	iconOn     string
	iconOff    string
	title      string

	enabled       bool
	exitRequested bool
}

// Properties is the exposed read-only view of a State.
type Properties struct {
	Category   string
	ID         string
	Title      string
	Status     Status
	WindowID   uint32
	IconName   string
	ItemIsMenu bool
}

// New creates a State from opts.
func New(opts Options) *State {
	return &State{
		commandOn:  orDefault(opts.CommandOn, DefaultCommandOn),
		commandOff: orDefault(opts.CommandOff, DefaultCommandOff),
		iconOn:     orDefault(opts.IconOn, DefaultIconOn),
		iconOff:    orDefault(opts.IconOff, DefaultIconOff),
		title:      orDefault(opts.Title, DefaultTitle),
		enabled:    opts.Enabled,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Enabled reports whether the switch is on.
func (s *State) Enabled() bool { return s.enabled }

// NextCommand returns the command that moves the switch to the other state.
func (s *State) NextCommand() string {
	if s.enabled {
		return s.commandOff
	}
	return s.commandOn
}

// Status returns the status matching the current state.
func (s *State) Status() Status {
	if s.enabled {
		return StatusActive
	}
	return StatusPassive
}

// IconName returns the icon matching the current state.
func (s *State) IconName() string {
	if s.enabled {
		return s.iconOn
	}
	return s.iconOff
}

// Flip switches to the other state. Status and IconName follow from enabled,
// so they cannot drift from it.
func (s *State) Flip() { s.enabled = !s.enabled }

// RequestExit marks the process for shutdown. Calling it again is a no-op.
func (s *State) RequestExit() { s.exitRequested = true }

// ExitRequested reports whether RequestExit was called.
func (s *State) ExitRequested() bool { return s.exitRequested }

// Properties computes the exposed view from the current state.
func (s *State) Properties() Properties {
	return Properties{
		Category:   Category,
		ID:         ID,
		Title:      s.title,
		Status:     s.Status(),
		WindowID:   0,
		IconName:   s.IconName(),
		ItemIsMenu: false,
	}
}
