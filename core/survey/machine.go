package survey

import "fmt"

// StepKind enumerates the possible outcomes of one response event.
type StepKind int

const (
	// StepComplete finalizes the survey: deactivate, thank, report.
	StepComplete StepKind = iota
	// StepElaborate re-asks the current question implicitly by sending
	// the elaboration prompt without advancing state.
	StepElaborate
	// StepAdvance records the answer and moves to the next question.
	StepAdvance
)

// Step is the decision for a single response event. State carries the
// post-transition snapshot; NextQuestion is valid only for StepAdvance.
type Step struct {
	Kind         StepKind
	State        UserState
	NextQuestion int
}

// Start returns the state installed when the activation phrase is seen:
// survey active, positioned at question zero, nothing answered yet.
func Start() UserState {
	return UserState{Active: true, Index: 0}
}

// Decide applies the transition rules for one response event against
// the current state. It never performs I/O.
//
// The completion branch fires purely on position and ignores the
// response text; the elaboration branch leaves state untouched.
func (s *Survey) Decide(st UserState, text string) (Step, error) {
	if !st.Active {
		return Step{}, fmt.Errorf("survey: decide called on inactive state")
	}
	if st.Index > s.Len() {
		return Step{}, fmt.Errorf("survey: index %d out of range for %d questions", st.Index, s.Len())
	}

	if st.Index == s.Len() {
		st.Active = false
		return Step{Kind: StepComplete, State: st}, nil
	}

	if IsElaboration(text) {
		return Step{Kind: StepElaborate, State: st}, nil
	}

	st.Answers = append(append([]string(nil), st.Answers...), text)
	st.Index++
	if st.Index == s.Len() {
		// The last answer completes the survey in the same event; there
		// is no question left to ask.
		st.Active = false
		return Step{Kind: StepComplete, State: st}, nil
	}
	return Step{Kind: StepAdvance, State: st, NextQuestion: st.Index}, nil
}
