package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brianly1003/grouppilot/internal/domain"
)

// PlanItem is one planned rename.
type PlanItem struct {
	GroupID  string `json:"group_id"`
	OldName  string `json:"old_name"`
	Ordinal  int    `json:"ordinal"`
	NewName  string `json:"new_name"`
	Sequence int    `json:"sequence"`
}

// BuildPlan renames members, already sorted ascending by ordinal, to
// "{pattern} {startAt+i}". The same inputs always give the same plan.
func BuildPlan(members []Member, pattern string, startAt int) []PlanItem {
	pattern = strings.TrimSpace(pattern)
	plan := make([]PlanItem, len(members))
	for i, m := range members {
		seq := startAt + i
		plan[i] = PlanItem{
			GroupID:  m.Group.ID,
			OldName:  m.Group.Name,
			Ordinal:  m.Ordinal,
			NewName:  fmt.Sprintf("%s %d", pattern, seq),
			Sequence: seq,
		}
	}
	return plan
}

// ValidateRange checks that start and end are both ordinals of the cluster
// and that end is not before start.
func ValidateRange(c Cluster, start, end int) error {
	if err := ValidateStart(c, start); err != nil {
		return err
	}
	if !c.HasOrdinal(end) {
		return domain.NewValidationError("range_end", fmt.Sprintf("number %d is not in this cluster", end))
	}
	if end < start {
		return domain.NewValidationError("range_end", fmt.Sprintf("end must be %d or greater", start))
	}
	return nil
}

// ValidateStart checks that start is an ordinal of the cluster.
func ValidateStart(c Cluster, start int) error {
	if !c.HasOrdinal(start) {
		return domain.NewValidationError("range_start", fmt.Sprintf("number %d is not in this cluster", start))
	}
	return nil
}

// ParseNumber parses a whole number typed by the user.
func ParseNumber(field, text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, domain.NewValidationError(field, "send a whole number")
	}
	return n, nil
}
