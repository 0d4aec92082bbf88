package collections

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/permitflow/backend/internal/domain/invoicing"
)

// Demand letter placeholders. Matching is exact and case-sensitive.
const (
	PlaceholderClientName    = "{{client_name}}"
	PlaceholderInvoiceNumber = "{{invoice_number}}"
	PlaceholderInvoiceDate   = "{{invoice_date}}"
	PlaceholderAmountDue     = "{{amount_due}}"
	PlaceholderDueDate       = "{{due_date}}"
	PlaceholderDaysOverdue   = "{{days_overdue}}"
	PlaceholderCompanyName   = "{{company_name}}"
	PlaceholderProjectName   = "{{project_name}}"
)

// LetterDateLayout is how dates are written into a letter
const LetterDateLayout = "January 2, 2006"

// DefaultDemandLetterTemplate is used when no template is configured
const DefaultDemandLetterTemplate = `Dear {{client_name}},

Our records show that invoice {{invoice_number}} dated {{invoice_date}} for {{project_name}} remains unpaid. The balance of {{amount_due}} was due on {{due_date}} and is now {{days_overdue}} days past due.

Please remit payment in full within ten (10) days of this letter. If payment has already been sent, please disregard this notice.

Sincerely,
{{company_name}}`

var placeholderPattern = regexp.MustCompile(`\{\{[^{}]*\}\}`)

// DemandLetterData holds the already formatted value of each placeholder
type DemandLetterData struct {
	ClientName    string
	InvoiceNumber string
	InvoiceDate   string
	AmountDue     string
	DueDate       string
	DaysOverdue   string
	CompanyName   string
	ProjectName   string
}

// NewDemandLetterData fills the placeholder values from an invoice as of now
func NewDemandLetterData(inv *invoicing.Invoice, companyName string, now time.Time) DemandLetterData {
	data := DemandLetterData{
		ClientName:    inv.ClientName,
		InvoiceNumber: inv.InvoiceNumber,
		AmountDue:     inv.TotalDueMoney().Format(),
		DaysOverdue:   strconv.Itoa(invoicing.DaysOverdue(now, inv.AgingReference())),
		CompanyName:   companyName,
		ProjectName:   inv.ProjectName,
	}
	if !inv.InvoiceDate.IsZero() {
		data.InvoiceDate = inv.InvoiceDate.Format(LetterDateLayout)
	}
	if inv.DueDate != nil {
		data.DueDate = inv.DueDate.Format(LetterDateLayout)
	}
	return data
}

// MergeDemandLetter substitutes every known placeholder in template. The
// replacement is a single literal pass, so values containing placeholder text
// are not expanded again. Unknown tokens are left as they are.
func MergeDemandLetter(template string, data DemandLetterData) string {
	r := strings.NewReplacer(
		PlaceholderClientName, data.ClientName,
		PlaceholderInvoiceNumber, data.InvoiceNumber,
		PlaceholderInvoiceDate, data.InvoiceDate,
		PlaceholderAmountDue, data.AmountDue,
		PlaceholderDueDate, data.DueDate,
		PlaceholderDaysOverdue, data.DaysOverdue,
		PlaceholderCompanyName, data.CompanyName,
		PlaceholderProjectName, data.ProjectName,
	)
	return r.Replace(template)
}

// UnmatchedPlaceholders lists the distinct {{...}} tokens left in a merged
// letter, in order of first appearance.
func UnmatchedPlaceholders(text string) []string {
	found := placeholderPattern.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, tok := range found {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
