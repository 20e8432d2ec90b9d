package mission

import "protectbox/internal/model"

// Transition names a mission command
type Transition string

const (
	Assign              Transition = "assign"
	ReassignRegional    Transition = "reassign_regional"
	Accept              Transition = "accept"
	Reject              Transition = "reject"
	Return              Transition = "return"
	ReassignAfterReturn Transition = "reassign_after_return"
	Cancel              Transition = "cancel"
	Reactivate          Transition = "reactivate"
	RequestExtension    Transition = "request_extension"
	Finalize            Transition = "finalize"
	StartInterview      Transition = "start_interview"
	StartRiskAssessment Transition = "start_risk_assessment"
)

// AllTransitions lists every transition in display order
var AllTransitions = []Transition{
	Assign,
	ReassignRegional,
	Accept,
	Reject,
	Return,
	ReassignAfterReturn,
	Cancel,
	Reactivate,
	RequestExtension,
	Finalize,
	StartInterview,
	StartRiskAssessment,
}

var leads = []model.Role{model.RoleNationalLead, model.RoleRegionalLead}

// capabilities is the (role, transition) permission table
var capabilities = map[Transition][]model.Role{
	Assign:              {model.RoleRegionalLead},
	ReassignRegional:    {model.RoleNationalLead},
	Accept:              leads,
	Reject:              leads,
	Return:              {model.RoleRegionalLead},
	ReassignAfterReturn: {model.RoleNationalLead},
	Cancel:              leads,
	Reactivate:          leads,
	RequestExtension:    {model.RoleRegionalLead},
	Finalize:            {model.RoleOfficial, model.RoleRegionalLead},
	StartInterview:      {model.RoleOfficial},
	StartRiskAssessment: {model.RoleOfficial},
}

// ParseTransition resolves a transition name
func ParseTransition(s string) (Transition, bool) {
	t := Transition(s)
	_, ok := capabilities[t]
	return t, ok
}

// Can reports whether role may trigger transition t
func Can(role model.Role, t Transition) bool {
	for _, r := range capabilities[t] {
		if r == role {
			return true
		}
	}
	return false
}
