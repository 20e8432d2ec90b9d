package mission

import (
	"strings"

	"protectbox/internal/model"
)

// Filter is one of the inbox views over the mission collection
type Filter string

const (
	FilterPending   Filter = "PENDING"
	FilterWork      Filter = "WORK"
	FilterCancelled Filter = "CANCELLED"
	FilterReturned  Filter = "RETURNED"
)

// Filters lists the inbox views in display order
var Filters = []Filter{FilterPending, FilterWork, FilterCancelled, FilterReturned}

// ParseFilter resolves a filter name, case-insensitively
func ParseFilter(s string) (Filter, bool) {
	f := Filter(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Filters {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// Matches reports whether a mission status belongs to the view.
// PENDING and WORK both include ACTIVA.
func (f Filter) Matches(s model.MissionStatus) bool {
	switch f {
	case FilterPending:
		return s == model.MissionStatusActive
	case FilterWork:
		return s == model.MissionStatusActive || s == model.MissionStatusAssigned
	case FilterCancelled:
		return s == model.MissionStatusCancelled
	case FilterReturned:
		return s == model.MissionStatusReturned
	}
	return false
}

var viewActions = map[Filter][]Transition{
	FilterPending:   {Accept, Reject, Assign, Cancel},
	FilterWork:      {Return, Cancel, RequestExtension, Finalize, StartInterview, StartRiskAssessment},
	FilterCancelled: {Reactivate},
	FilterReturned:  {ReassignAfterReturn, Reactivate, Cancel},
}

// ActionsFor returns the transitions a role may trigger from a view
func ActionsFor(f Filter, role model.Role) []Transition {
	out := []Transition{}
	for _, t := range viewActions[f] {
		if Can(role, t) {
			out = append(out, t)
		}
	}
	return out
}

// Select returns the missions visible in a view, preserving order
func Select(missions []model.Mission, f Filter) []model.Mission {
	out := make([]model.Mission, 0, len(missions))
	for _, m := range missions {
		if f.Matches(m.Status) {
			out = append(out, m)
		}
	}
	return out
}
