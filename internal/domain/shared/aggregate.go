package shared

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots.
// Version backs optimistic locking: repositories only write a row whose stored
// version is Version-1.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot(now time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(now),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

// TenantAggregateRoot extends BaseAggregateRoot with the owning organization
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID uuid.UUID
}

// NewTenantAggregateRoot creates a new tenant-scoped aggregate root
func NewTenantAggregateRoot(tenantID uuid.UUID, now time.Time) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(now),
		TenantID:          tenantID,
	}
}
