package domain

import "time"

// TicketType distinguishes customer-facing request categories.
type TicketType string

const (
	TicketTypeSupport        TicketType = "support"
	TicketTypeFeatureRequest TicketType = "feature_request"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPendingInternalReview TicketStatus = "pending_internal_review"
	TicketStatusOpen                  TicketStatus = "open"
	TicketStatusInProgress            TicketStatus = "in_progress"
	TicketStatusWaitingForCustomer    TicketStatus = "waiting_for_customer"
	TicketStatusRebuttal              TicketStatus = "rebuttal"
	TicketStatusResolved              TicketStatus = "resolved"
	TicketStatusReopened              TicketStatus = "reopened"
	TicketStatusClosed                TicketStatus = "closed"
	TicketStatusCancelled             TicketStatus = "cancelled"
)

// DefaultPriority is applied when the client supplies none. Priorities and
// severities run 1 (highest) to 4 (lowest).
const DefaultPriority = 3

// ticketTransitions is the allowed state machine. Absent keys are terminal.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusPendingInternalReview: {TicketStatusOpen, TicketStatusInProgress, TicketStatusCancelled},
	TicketStatusOpen:                  {TicketStatusInProgress, TicketStatusWaitingForCustomer, TicketStatusResolved, TicketStatusCancelled},
	TicketStatusInProgress:            {TicketStatusOpen, TicketStatusWaitingForCustomer, TicketStatusRebuttal, TicketStatusResolved, TicketStatusCancelled},
	TicketStatusWaitingForCustomer:    {TicketStatusRebuttal, TicketStatusInProgress, TicketStatusResolved, TicketStatusCancelled},
	TicketStatusRebuttal:              {TicketStatusWaitingForCustomer, TicketStatusInProgress, TicketStatusResolved, TicketStatusCancelled},
	TicketStatusResolved:              {TicketStatusClosed, TicketStatusReopened, TicketStatusOpen, TicketStatusInProgress},
	TicketStatusReopened:              {TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusCancelled},
}

// ValidTicketTransition reports whether current may move to next.
func ValidTicketTransition(current, next TicketStatus) bool {
	for _, candidate := range ticketTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TicketStatusTerminal reports whether the status admits no further changes.
func TicketStatusTerminal(status TicketStatus) bool {
	return len(ticketTransitions[status]) == 0
}

// TicketStatusClosing reports whether entering status should stamp ClosedAt.
func TicketStatusClosing(status TicketStatus) bool {
	switch status {
	case TicketStatusResolved, TicketStatusClosed, TicketStatusCancelled:
		return true
	}
	return false
}

// ValidTicketType reports whether t is a known ticket type.
func ValidTicketType(t TicketType) bool {
	return t == TicketTypeSupport || t == TicketTypeFeatureRequest
}

// Ticket is the aggregate for customer-visible support and feature requests.
type Ticket struct {
	ID               string
	TenantID         string
	IssueKey         string
	Title            string
	Description      string
	Type             TicketType
	Status           TicketStatus
	ProductID        string
	ClientPriority   int
	ClientSeverity   int
	InternalPriority *int
	InternalSeverity *int
	ClientID         *string
	CreatedBy        string
	ReporterID       string
	AssignedTo       *string
	ParentID         *string
	Labels           []string
	Resolution       *string
	ResolutionNote   *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ClosedAt         *time.Time
}

// EffectivePriority returns the internal override when present, falling back
// to the client-supplied value.
func (t *Ticket) EffectivePriority() int {
	if t.InternalPriority != nil {
		return *t.InternalPriority
	}
	return t.ClientPriority
}

// EffectiveSeverity mirrors EffectivePriority for severity.
func (t *Ticket) EffectiveSeverity() int {
	if t.InternalSeverity != nil {
		return *t.InternalSeverity
	}
	return t.ClientSeverity
}
