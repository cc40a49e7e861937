package domain

import "time"

// LinkType enumerates directed relationships between tickets.
type LinkType string

const (
	LinkBlocks       LinkType = "blocks"
	LinkBlockedBy    LinkType = "blocked_by"
	LinkRelatesTo    LinkType = "relates_to"
	LinkDuplicates   LinkType = "duplicates"
	LinkDuplicatedBy LinkType = "duplicated_by"
	LinkParentOf     LinkType = "parent_of"
	LinkChildOf      LinkType = "child_of"
)

var linkTypes = map[LinkType]struct{}{
	LinkBlocks:       {},
	LinkBlockedBy:    {},
	LinkRelatesTo:    {},
	LinkDuplicates:   {},
	LinkDuplicatedBy: {},
	LinkParentOf:     {},
	LinkChildOf:      {},
}

// ValidLinkType reports whether t is a known link type.
func ValidLinkType(t LinkType) bool {
	_, ok := linkTypes[t]
	return ok
}

// Link is a directed edge between two tickets. (source, target, type) is
// unique and self-loops are rejected.
type Link struct {
	ID        string
	TenantID  string
	SourceID  string
	TargetID  string
	LinkType  LinkType
	CreatedBy string
	CreatedAt time.Time
}

// TicketTaskLink associates a ticket with a task spawned from it.
type TicketTaskLink struct {
	ID        string
	TenantID  string
	TicketID  string
	TaskID    string
	CreatedAt time.Time
}
