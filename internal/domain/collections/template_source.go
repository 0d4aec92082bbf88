package collections

import (
	"context"

	"github.com/google/uuid"
)

// TemplateSource supplies the demand letter template of a tenant
type TemplateSource interface {
	DemandLetterTemplate(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// StaticTemplateSource serves one template to every tenant. An empty value
// serves DefaultDemandLetterTemplate.
type StaticTemplateSource string

// DemandLetterTemplate returns the configured template
func (s StaticTemplateSource) DemandLetterTemplate(context.Context, uuid.UUID) (string, error) {
	if s == "" {
		return DefaultDemandLetterTemplate, nil
	}
	return string(s), nil
}
