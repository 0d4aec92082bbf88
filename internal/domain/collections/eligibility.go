package collections

import (
	"fmt"
	"time"

	"github.com/permitflow/backend/internal/domain/invoicing"
	"github.com/permitflow/backend/internal/domain/shared"
)

// AllowedActions returns the actions available on inv as of now.
// Notes are always available. A reminder is available on any sent or overdue
// invoice, a demand letter from the urgent tier and a write-off only at the
// critical tier.
func AllowedActions(inv *invoicing.Invoice, now time.Time) ActionSet {
	set := ActionSet{}
	if inv.Status.IsCollectible() {
		set = append(set, ActionReminderEmail)
		tier, _ := invoicing.TierOf(inv, now)
		if tier == invoicing.TierUrgent || tier == invoicing.TierCritical {
			set = append(set, ActionDemandLetter)
		}
		if tier == invoicing.TierCritical {
			set = append(set, ActionWriteOff)
		}
	}
	return append(set, ActionNote)
}

// CheckAction validates that action may run on inv. Reminders, demand letters
// and write-offs need a sent or overdue invoice. A closed (paid or legal hold)
// invoice yields INVALID_TRANSITION; one not yet sent yields ACTION_NOT_ALLOWED.
// When enforceTier is set the aging tier gate from AllowedActions applies as well.
func CheckAction(inv *invoicing.Invoice, action Action, now time.Time, enforceTier bool) error {
	if !action.IsCollectionsAction() {
		return shared.NewValidationError(fmt.Sprintf("Unknown collections action %q", action))
	}
	if action == ActionNote {
		return nil
	}
	if inv.Status.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot %s an invoice in %s status", humanize(action), inv.Status))
	}
	if !inv.Status.IsCollectible() {
		return shared.NewDomainError(shared.CodeActionNotAllowed,
			fmt.Sprintf("Cannot %s an invoice in %s status", humanize(action), inv.Status))
	}
	if enforceTier && !AllowedActions(inv, now).Contains(action) {
		tier, days := invoicing.TierOf(inv, now)
		if tier == invoicing.TierNone {
			return shared.NewDomainError(shared.CodeActionNotAllowed,
				fmt.Sprintf("Invoice is %d days overdue and not eligible for %s", days, action))
		}
		return shared.NewDomainError(shared.CodeActionNotAllowed,
			fmt.Sprintf("Action %s is not available at the %s tier", action, tier))
	}
	return nil
}

func humanize(a Action) string {
	switch a {
	case ActionReminderEmail:
		return "send a reminder for"
	case ActionDemandLetter:
		return "send a demand letter for"
	case ActionWriteOff:
		return "write off"
	}
	return string(a)
}
