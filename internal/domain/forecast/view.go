package forecast

import (
	"fmt"
	"strings"

	"github.com/okian/rostr/internal/domain/model"
)

// View selects which project allocations contribute to a report and how much.
type View string

const (
	// All counts confirmed work in full and pipeline work at its win probability.
	All View = "all"
	// ActiveOnly counts only confirmed work (probability 1).
	ActiveOnly View = "active"
	// ProbableOnly counts only pipeline work, unweighted.
	ProbableOnly View = "probable"
)

// ParseView accepts all, active or probable in any case.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case All, ActiveOnly, ProbableOnly:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
	}
}

// Weight is the factor applied to hours allocated on p under the view.
func (v View) Weight(p model.Project) float64 {
	if !p.Contributes() {
		return 0
	}
	switch v {
	case ActiveOnly:
		if p.Confirmed() {
			return 1
		}
		return 0
	case ProbableOnly:
		if p.Confirmed() {
			return 0
		}
		return 1
	default:
		return p.Probability()
	}
}
