package collections

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Action identifies an activity on an invoice. The collections actions double
// as FollowUp contact methods.
type Action string

const (
	ActionCreated       Action = "created"
	ActionSent          Action = "sent"
	ActionPaid          Action = "paid"
	ActionLegalHold     Action = "legal_hold"
	ActionReminderEmail Action = "reminder_email"
	ActionDemandLetter  Action = "demand_letter"
	ActionWriteOff      Action = "write_off"
	ActionNote          Action = "note"
)

// String returns the string representation
func (a Action) String() string {
	return string(a)
}

// Label returns the display name, e.g. "Reminder Email"
func (a Action) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(a), "_", " "))
}

// IsCollectionsAction reports whether a is a user-triggered collections action
func (a Action) IsCollectionsAction() bool {
	switch a {
	case ActionReminderEmail, ActionDemandLetter, ActionWriteOff, ActionNote:
		return true
	}
	return false
}

// IsValid checks if the action is a known value
func (a Action) IsValid() bool {
	switch a {
	case ActionCreated, ActionSent, ActionPaid, ActionLegalHold:
		return true
	}
	return a.IsCollectionsAction()
}

// ActionSet is an ordered set of actions
type ActionSet []Action

// Contains reports whether the set holds a
func (s ActionSet) Contains(a Action) bool {
	for _, x := range s {
		if x == a {
			return true
		}
	}
	return false
}

// Strings returns the actions as plain strings
func (s ActionSet) Strings() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = string(a)
	}
	return out
}
