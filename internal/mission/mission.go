// Package mission implements the work order lifecycle: the capability table,
// status guards, transition effects, the extension window, the observation
// log and the inbox predicates. It performs no I/O; callers pass the clock.
package mission

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"protectbox/internal/model"
	"protectbox/internal/refdata"
)

// ErrGuard is wrapped by every rejected transition surfaced as an error
var ErrGuard = errors.New("transition rejected")

// ExtensionDays is how far a granted extension moves the due date
const ExtensionDays = 15

// ExtensionWindowDays is the number of days before the due date an extension opens
const ExtensionWindowDays = 3

// Command is a named transition plus its payload. ExtensionReason carries the
// code of one of refdata.ExtensionReasons.
type Command struct {
	Transition      Transition  `json:"transition"`
	Actor           model.Actor `json:"actor"`
	Official        string      `json:"official,omitempty"`
	Regional        string      `json:"regional,omitempty"`
	Reason          string      `json:"reason,omitempty"`
	ExtensionReason string      `json:"extensionReason,omitempty"`
}

// Result is the outcome of a guard check
type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Result {
	return Result{Allowed: true}
}

func deny(format string, args ...interface{}) Result {
	return Result{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Err converts a rejected result into an error wrapping ErrGuard
func (r Result) Err() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrGuard, r.Reason)
}

// IsOpen reports whether a mission can still be worked on
func IsOpen(s model.MissionStatus) bool {
	switch s {
	case model.MissionStatusPending, model.MissionStatusAssigned,
		model.MissionStatusActive, model.MissionStatusReturned:
		return true
	}
	return false
}

func statusIn(s model.MissionStatus, allowed ...model.MissionStatus) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// Check runs the capability, status and payload guards without applying anything
func Check(m model.Mission, cmd Command, now time.Time) Result {
	if _, ok := capabilities[cmd.Transition]; !ok {
		return deny("unknown transition %q", cmd.Transition)
	}
	if !Can(cmd.Actor.Role, cmd.Transition) {
		return deny("role %s may not %s", cmd.Actor.Role, cmd.Transition)
	}

	reason := strings.TrimSpace(cmd.Reason)

	switch cmd.Transition {
	case Assign:
		if !statusIn(m.Status, model.MissionStatusPending, model.MissionStatusActive) {
			return deny("cannot assign a mission in status %s", m.Status)
		}
		if strings.TrimSpace(cmd.Official) == "" {
			return deny("official is required")
		}
		if !refdata.IsRegional(cmd.Regional) {
			return deny("unknown regional %q", cmd.Regional)
		}
		o, ok := refdata.FindOfficial(strings.TrimSpace(cmd.Official))
		if !ok || o.Role != string(model.RoleOfficial) {
			return deny("unknown official %q", cmd.Official)
		}
		if !strings.EqualFold(o.Regional, cmd.Regional) {
			return deny("official %s does not belong to regional %s", o.ID, cmd.Regional)
		}
	case ReassignRegional:
		if m.Status != model.MissionStatusPending {
			return deny("only pending missions can be sent to a regional")
		}
		if !refdata.IsRegional(cmd.Regional) {
			return deny("unknown regional %q", cmd.Regional)
		}
	case Accept:
		if m.Status != model.MissionStatusActive {
			return deny("only active missions can be accepted")
		}
	case Reject:
		if !IsOpen(m.Status) {
			return deny("cannot reject a mission in status %s", m.Status)
		}
	case Return:
		if !statusIn(m.Status, model.MissionStatusAssigned, model.MissionStatusActive) {
			return deny("cannot return a mission in status %s", m.Status)
		}
		if reason == "" {
			return deny("a return reason is required")
		}
	case ReassignAfterReturn:
		if m.Status != model.MissionStatusReturned {
			return deny("only returned missions can be reassigned")
		}
		if !refdata.IsRegional(cmd.Regional) {
			return deny("unknown regional %q", cmd.Regional)
		}
		if reason == "" {
			return deny("an observation is required")
		}
	case Cancel:
		if statusIn(m.Status, model.MissionStatusFinalized, model.MissionStatusCancelled) {
			return deny("cannot cancel a mission in status %s", m.Status)
		}
		if reason == "" {
			return deny("a justification is required")
		}
	case Reactivate:
		if !statusIn(m.Status, model.MissionStatusCancelled, model.MissionStatusReturned) {
			return deny("cannot reactivate a mission in status %s", m.Status)
		}
		if reason == "" {
			return deny("a justification is required")
		}
	case RequestExtension:
		if m.ExtensionRequested {
			return deny("an extension was already granted")
		}
		if !statusIn(m.Status, model.MissionStatusAssigned, model.MissionStatusActive) {
			return deny("cannot extend a mission in status %s", m.Status)
		}
		if d := DaysUntil(m.DueDate, now); d < 0 || d > ExtensionWindowDays {
			return deny("due date is %d days away, outside the extension window", d)
		}
		if !refdata.IsExtensionReason(cmd.ExtensionReason) {
			return deny("unknown extension reason %q", cmd.ExtensionReason)
		}
	case Finalize:
		if !statusIn(m.Status, model.MissionStatusAssigned, model.MissionStatusActive) {
			return deny("cannot finalize a mission in status %s", m.Status)
		}
		if cmd.Actor.Role == model.RoleOfficial && cmd.Actor.ID != m.AssignedOfficial {
			return deny("only the assigned official can finalize this mission")
		}
	case StartInterview, StartRiskAssessment:
		if !statusIn(m.Status, model.MissionStatusAssigned, model.MissionStatusActive) {
			return deny("forms can only be started on assigned or active missions")
		}
		if m.AssignedOfficial == "" || cmd.Actor.ID != m.AssignedOfficial {
			return deny("only the assigned official can work on this mission's forms")
		}
	}
	return allow()
}

// Apply checks cmd against m and returns the updated mission. A rejected
// command returns m unchanged.
func Apply(m model.Mission, cmd Command, now time.Time) (model.Mission, Result) {
	res := Check(m, cmd, now)
	if !res.Allowed {
		return m, res
	}

	next := m
	next.Log = append([]model.ObservationEntry(nil), m.Log...)
	reason := strings.TrimSpace(cmd.Reason)

	switch cmd.Transition {
	case Assign:
		o, _ := refdata.FindOfficial(strings.TrimSpace(cmd.Official))
		next.AssignedOfficial = o.ID
		next.Regional = o.Regional
		next.Status = model.MissionStatusAssigned
	case ReassignRegional:
		t := now
		next.Regional = cmd.Regional
		next.ReassignmentDate = &t
		next.Status = model.MissionStatusActive
	case Accept:
		// confirmation only
	case Reject:
		if reason != "" {
			appendEntry(&next, leadTag(cmd.Actor.Role, TagRejectNational, TagRejectRegional), cmd.Actor, reason, now)
		}
		next.Status = model.MissionStatusCancelled
	case Return:
		next.ReturnReason = reason
		appendEntry(&next, TagReturn, cmd.Actor, reason, now)
		next.Status = model.MissionStatusReturned
	case ReassignAfterReturn:
		t := now
		next.Regional = cmd.Regional
		next.ReassignmentDate = &t
		appendEntry(&next, TagReassignAfterRet, cmd.Actor, reason, now)
		next.ReturnReason = ""
		next.AssignedOfficial = ""
		next.Status = model.MissionStatusActive
	case Cancel:
		appendEntry(&next, leadTag(cmd.Actor.Role, TagCancelNational, TagCancelRegional), cmd.Actor, reason, now)
		next.Status = model.MissionStatusCancelled
	case Reactivate:
		appendEntry(&next, leadTag(cmd.Actor.Role, TagReactivateNational, TagReactivateRegional), cmd.Actor, reason, now)
		next.ReturnReason = ""
		next.Status = model.MissionStatusActive
	case RequestExtension:
		opt, _ := refdata.Lookup(refdata.ExtensionReasons, cmd.ExtensionReason)
		text := opt.Label
		if reason != "" {
			text += ". " + reason
		}
		next.DueDate = m.DueDate.AddDate(0, 0, ExtensionDays)
		next.ExtensionRequested = true
		next.ExtensionReason = cmd.ExtensionReason
		appendEntry(&next, TagExtension, cmd.Actor, text, now)
	case Finalize:
		next.Status = model.MissionStatusFinalized
	case StartInterview, StartRiskAssessment:
		// gate only; the form service creates the instrument
	}

	next.UpdatedAt = now
	return next, res
}

// New builds the PENDIENTE mission spawned by a case with generateMission set
func New(id, number string, c model.ProtectionCase, now time.Time) model.Mission {
	var due time.Time
	if c.DueDate != nil {
		due = *c.DueDate
	}
	return model.Mission{
		ID:           id,
		Number:       number,
		CaseID:       c.ID,
		CaseRadicado: c.Radicado,
		MissionType:  c.MissionType,
		Petitioner:   c.Requester,
		Area:         c.Area,
		Status:       model.MissionStatusPending,
		DueDate:      due,
		CreatedAt:    now,
		Observations: c.Observations,
		Log:          []model.ObservationEntry{},
		UpdatedAt:    now,
	}
}

// SyncFromCase copies the case-owned fields onto a linked mission. The due
// date is only carried over when withDueDate is set.
func SyncFromCase(m model.Mission, c model.ProtectionCase, withDueDate bool) model.Mission {
	m.CaseRadicado = c.Radicado
	m.MissionType = c.MissionType
	m.Area = c.Area
	m.Petitioner = c.Requester
	if withDueDate && c.DueDate != nil {
		m.DueDate = *c.DueDate
	}
	return m
}

// FormatNumber renders a mission number from its year and sequence value
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("MIS-%d-%05d", year, seq)
}
