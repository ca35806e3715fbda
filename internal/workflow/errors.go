package workflow

import "errors"

var (
	// ErrNoFile means the action has no file to send; nothing was requested.
	ErrNoFile = errors.New("no file selected")
	// ErrBusy means a request for the stage is already in flight.
	ErrBusy = errors.New("request already in progress")
	// ErrNoAnalysis means the generate stage is not reachable yet.
	ErrNoAnalysis = errors.New("material has not been analyzed")
	// ErrUnknownSection is returned for accordion sections that do not exist.
	ErrUnknownSection = errors.New("unknown section")
)
