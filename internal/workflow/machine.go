package workflow

import (
	"fmt"
	"strings"

	"github.com/brianly1003/grouppilot/internal/domain"
)

// State is a step of the rename workflow.
type State int

const (
	StateSelectCluster State = iota
	StateRangeStart
	StateRangeEnd
	StatePattern
	StateRenumberStart
	StateConfirm
	StateExecuting
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateSelectCluster:
		return "select_cluster"
	case StateRangeStart:
		return "range_start"
	case StateRangeEnd:
		return "range_end"
	case StatePattern:
		return "pattern"
	case StateRenumberStart:
		return "renumber_start"
	case StateConfirm:
		return "confirm"
	case StateExecuting:
		return "executing"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the workflow has left the conversation.
func (s State) Terminal() bool {
	return s == StateExecuting || s == StateCancelled
}

// InputKind distinguishes user inputs.
type InputKind int

const (
	InputText InputKind = iota
	InputSelect
	InputConfirm
	InputCancel
)

// Input is one user action fed to the machine.
type Input struct {
	Kind  InputKind
	Text  string
	Index int
}

// Text returns a free-text input.
func Text(s string) Input { return Input{Kind: InputText, Text: s} }

// Select returns a cluster selection input.
func Select(index int) Input { return Input{Kind: InputSelect, Index: index} }

// Confirm returns a confirmation input.
func Confirm() Input { return Input{Kind: InputConfirm} }

// Cancel returns a cancel input.
func Cancel() Input { return Input{Kind: InputCancel} }

// Machine is the rename conversation for one user. Every state has its own
// transition function and every input is either accepted, rejected with a
// ValidationError leaving the machine unchanged, or a cancel.
type Machine struct {
	state    State
	clusters []Cluster
	cluster  int

	rangeStart    int
	rangeEnd      int
	pattern       string
	renumberStart int
}

// NewMachine starts a workflow over the given clusters.
func NewMachine(clusters []Cluster) (*Machine, error) {
	if len(clusters) == 0 {
		return nil, domain.ErrNothingToRename
	}
	return &Machine{state: StateSelectCluster, clusters: clusters, cluster: -1}, nil
}

// State returns the current step.
func (m *Machine) State() State { return m.state }

// Clusters returns the clusters offered to the user.
func (m *Machine) Clusters() []Cluster { return m.clusters }

// Cluster returns the selected cluster.
func (m *Machine) Cluster() (Cluster, bool) {
	if m.cluster < 0 {
		return Cluster{}, false
	}
	return m.clusters[m.cluster], true
}

// Range returns the selected ordinal range.
func (m *Machine) Range() (int, int) { return m.rangeStart, m.rangeEnd }

// Pattern returns the chosen name pattern.
func (m *Machine) Pattern() string { return m.pattern }

// RenumberStart returns the first new number.
func (m *Machine) RenumberStart() int { return m.renumberStart }

// Plan computes the rename plan from the stored selections. It is only
// meaningful once the renumber start is known.
func (m *Machine) Plan() []PlanItem {
	c, ok := m.Cluster()
	if !ok || m.renumberStart < 1 {
		return nil
	}
	return BuildPlan(c.InRange(m.rangeStart, m.rangeEnd), m.pattern, m.renumberStart)
}

// Handle applies one input and returns the new state.
func (m *Machine) Handle(in Input) (State, error) {
	if m.state.Terminal() {
		return m.state, domain.ErrWorkflowNotActive
	}
	if in.Kind == InputCancel {
		m.state = StateCancelled
		return m.state, nil
	}

	var err error
	switch m.state {
	case StateSelectCluster:
		err = m.selectCluster(in)
	case StateRangeStart:
		err = m.enterRangeStart(in)
	case StateRangeEnd:
		err = m.enterRangeEnd(in)
	case StatePattern:
		err = m.enterPattern(in)
	case StateRenumberStart:
		err = m.enterRenumberStart(in)
	case StateConfirm:
		err = m.confirm(in)
	}
	return m.state, err
}

func (m *Machine) selectCluster(in Input) error {
	index := in.Index
	switch in.Kind {
	case InputSelect:
	case InputText:
		// Typed choices are 1-based, as listed.
		n, err := ParseNumber("cluster", in.Text)
		if err != nil {
			return err
		}
		index = n - 1
	default:
		return domain.NewValidationError("cluster", "choose one of the listed groups")
	}
	if index < 0 || index >= len(m.clusters) {
		return domain.NewValidationError("cluster", "choose one of the listed groups")
	}
	m.cluster = index
	m.state = StateRangeStart
	return nil
}

func (m *Machine) enterRangeStart(in Input) error {
	n, err := m.number("range_start", in)
	if err != nil {
		return err
	}
	if err := ValidateStart(m.clusters[m.cluster], n); err != nil {
		return err
	}
	m.rangeStart = n
	m.state = StateRangeEnd
	return nil
}

func (m *Machine) enterRangeEnd(in Input) error {
	n, err := m.number("range_end", in)
	if err != nil {
		return err
	}
	if err := ValidateRange(m.clusters[m.cluster], m.rangeStart, n); err != nil {
		return err
	}
	m.rangeEnd = n
	m.state = StatePattern
	return nil
}

func (m *Machine) enterPattern(in Input) error {
	if in.Kind != InputText {
		return domain.NewValidationError("pattern", "send the new group name")
	}
	pattern := strings.TrimSpace(in.Text)
	if pattern == "" {
		return domain.NewValidationError("pattern", "the name must not be empty")
	}
	m.pattern = pattern
	m.state = StateRenumberStart
	return nil
}

func (m *Machine) enterRenumberStart(in Input) error {
	n, err := m.number("renumber_start", in)
	if err != nil {
		return err
	}
	if n < 1 {
		return domain.NewValidationError("renumber_start", "the first number must be 1 or greater")
	}
	m.renumberStart = n
	m.state = StateConfirm
	return nil
}

func (m *Machine) confirm(in Input) error {
	if in.Kind != InputConfirm {
		return domain.NewValidationError("confirm", "use the buttons to confirm or cancel")
	}
	m.state = StateExecuting
	return nil
}

func (m *Machine) number(field string, in Input) (int, error) {
	if in.Kind != InputText {
		return 0, domain.NewValidationError(field, fmt.Sprintf("send a number (%s)", strings.ReplaceAll(field, "_", " ")))
	}
	return ParseNumber(field, in.Text)
}
