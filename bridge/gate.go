package bridge

import "errors"

// State is the position of a request in the parse/execute lifecycle.
type State uint8

const (
	StateUnparsed State = iota
	StateParseFailed
	StateParseSucceeded
	StateExecuted
)

func (s State) String() string {
	switch s {
	case StateUnparsed:
		return "unparsed"
	case StateParseFailed:
		return "parse_failed"
	case StateParseSucceeded:
		return "parse_succeeded"
	case StateExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// ParseOK reports whether the source parsed successfully.
func (s State) ParseOK() bool {
	return s == StateParseSucceeded || s == StateExecuted
}

// Executed reports whether the program ran.
func (s State) Executed() bool {
	return s == StateExecuted
}

var (
	errAlreadyParsed = errors.New("gate: parse outcome already recorded")
	errNotParsed     = errors.New("gate: parse outcome not recorded")
)

// Gate enforces that execution happens at most once and only after a
// successful parse.
type Gate struct {
	state State
}

// State returns the current lifecycle state.
func (g *Gate) State() State {
	return g.state
}

// RecordParse stores the parse outcome. It may be called once.
func (g *Gate) RecordParse(ok bool) error {
	if g.state != StateUnparsed {
		return errAlreadyParsed
	}
	if ok {
		g.state = StateParseSucceeded
	} else {
		g.state = StateParseFailed
	}
	return nil
}

// Execute calls run if and only if parsing succeeded and the program has not
// run yet. It reports whether run was called.
func (g *Gate) Execute(run func()) (bool, error) {
	switch g.state {
	case StateUnparsed:
		return false, errNotParsed
	case StateParseSucceeded:
		run()
		g.state = StateExecuted
		return true, nil
	default:
		return false, nil
	}
}
