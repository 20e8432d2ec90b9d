package mission

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"protectbox/internal/model"
)

const (
	TagCancelNational     = "ANULACIÓN POR LÍDER NACIONAL"
	TagCancelRegional     = "ANULACIÓN POR LÍDER REGIONAL"
	TagReactivateNational = "REACTIVACIÓN POR LÍDER NACIONAL"
	TagReactivateRegional = "REACTIVACIÓN POR LÍDER REGIONAL"
	TagRejectNational     = "RECHAZO POR LÍDER NACIONAL"
	TagRejectRegional     = "RECHAZO POR LÍDER REGIONAL"
	TagReturn             = "DEVOLUCIÓN A NIVEL CENTRAL"
	TagReassignAfterRet   = "REASIGNACIÓN POST-DEVOLUCIÓN"
	TagExtension          = "PRÓRROGA APLICADA"
)

const dateLayout = "02/01/2006"

var blockHeader = regexp.MustCompile(`\n\[([^\]\n]+?) - (\d{2}/\d{2}/\d{4})\]: `)

// Block is one rationale block parsed back out of an observations string
type Block struct {
	Tag    string
	Date   string
	Reason string
}

// RenderEntry formats a single log entry in the legacy observations layout
func RenderEntry(e model.ObservationEntry) string {
	return fmt.Sprintf("\n[%s - %s]: %s", e.Tag, e.Timestamp.Format(dateLayout), e.Reason)
}

// Render formats a whole log in order
func Render(entries []model.ObservationEntry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(RenderEntry(e))
	}
	return b.String()
}

// ParseBlocks splits an observations string into its tagged blocks. Text
// before the first block is the free-form initial observation and is skipped.
func ParseBlocks(text string) []Block {
	idx := blockHeader.FindAllStringSubmatchIndex(text, -1)
	blocks := make([]Block, 0, len(idx))
	for i, loc := range idx {
		end := len(text)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		blocks = append(blocks, Block{
			Tag:    text[loc[2]:loc[3]],
			Date:   text[loc[4]:loc[5]],
			Reason: text[loc[1]:end],
		})
	}
	return blocks
}

// InitialText returns the free-form text preceding the first tagged block
func InitialText(text string) string {
	if loc := blockHeader.FindStringIndex(text); loc != nil {
		return text[:loc[0]]
	}
	return text
}

// ExtractReason returns the reason of the most recent block whose tag starts
// with tagPrefix.
func ExtractReason(text, tagPrefix string) (string, bool) {
	blocks := ParseBlocks(text)
	for i := len(blocks) - 1; i >= 0; i-- {
		if strings.HasPrefix(blocks[i].Tag, tagPrefix) {
			return blocks[i].Reason, true
		}
	}
	return "", false
}

// LastEntry finds the most recent structured entry whose tag starts with tagPrefix
func LastEntry(log []model.ObservationEntry, tagPrefix string) (model.ObservationEntry, bool) {
	for i := len(log) - 1; i >= 0; i-- {
		if strings.HasPrefix(log[i].Tag, tagPrefix) {
			return log[i], true
		}
	}
	return model.ObservationEntry{}, false
}

// TagPrefix maps a transition to the tag prefix its rationale is recorded under
func TagPrefix(t Transition) (string, bool) {
	switch t {
	case Cancel:
		return "ANULACIÓN", true
	case Reactivate:
		return "REACTIVACIÓN", true
	case Reject:
		return "RECHAZO", true
	case Return:
		return TagReturn, true
	case ReassignAfterReturn:
		return TagReassignAfterRet, true
	case RequestExtension:
		return TagExtension, true
	}
	return "", false
}

func leadTag(role model.Role, national, regional string) string {
	if role == model.RoleNationalLead {
		return national
	}
	return regional
}

func appendEntry(m *model.Mission, tag string, actor model.Actor, reason string, now time.Time) {
	e := model.ObservationEntry{
		Tag:       tag,
		Timestamp: now,
		Actor:     actor.ID,
		Reason:    reason,
	}
	m.Log = append(m.Log, e)
	m.Observations += RenderEntry(e)
}
