package resolver

import (
	"errors"
	"fmt"
)

// Side identifies which half of the pair a resolution step concerns.
type Side string

const (
	SideManaged Side = "python"
	SideNative  Side = "cpp"
)

var (
	// ErrNoWorkspaceFolder means there is no folder to scope lookups to.
	ErrNoWorkspaceFolder = errors.New("no workspace folder")
	// ErrMissingNamedConfig means a by-name reference matched nothing.
	ErrMissingNamedConfig = errors.New("named configuration not found")
	// ErrAmbiguousConfig means no inline config, no name, and no
	// recognized default were given.
	ErrAmbiguousConfig = errors.New("ambiguous configuration")
)

// Error is a user-facing configuration mistake. Message is meant to be
// shown verbatim; Err is one of the sentinels above.
type Error struct {
	Side    Side
	Name    string
	Err     error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func noWorkspace() error {
	return &Error{
		Err:     ErrNoWorkspaceFolder,
		Message: "Working folder not found, open a folder and try again",
	}
}

func missingNamed(side Side, name string) error {
	msg := fmt.Sprintf("Please make sure you have a configuration with the name '%s' in your launch.json file.", name)
	if side == SideNative {
		msg = fmt.Sprintf("Make sure you have a configuration with the name '%s' in your launch.json file.", name)
	}
	return &Error{Side: side, Name: name, Err: ErrMissingNamedConfig, Message: msg}
}

func ambiguous(side Side) error {
	msg := "Please make sure to define 'pythonLaunchName' for pythonCpp in your launch.json file or set 'pythonConfig' to default"
	if side == SideNative {
		msg = "Make sure to either define 'cppAttachName' for pythonCpp in your launch.json file or use the default configurations with the attribute 'cppConfig'"
	}
	return &Error{Side: side, Err: ErrAmbiguousConfig, Message: msg}
}
