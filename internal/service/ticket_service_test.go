package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/events"
	apperrors "github.com/spec-kit/tracker-service/pkg/util"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	if domainErr.Code != code {
		t.Fatalf("error code = %s, want %s (%v)", domainErr.Code, code, err)
	}
}

func TestStringPreviewRuneBoundary(t *testing.T) {
	short := "all good"
	if got := stringPreview(short, commentPreviewLen); got != short {
		t.Errorf("short body altered: %q", got)
	}

	long := strings.Repeat("x", 150)
	got := stringPreview(long, commentPreviewLen)
	if len(got) != commentPreviewLen || !strings.HasSuffix(got, "...") {
		t.Errorf("ascii preview = %d bytes %q", len(got), got[90:])
	}

	// A multi-byte rune straddling the cut must not be split.
	accented := strings.Repeat("é", 80)
	got = stringPreview(accented, commentPreviewLen)
	if !utf8.ValidString(got) {
		t.Errorf("preview is not valid UTF-8: %q", got)
	}
	if len(got) > commentPreviewLen {
		t.Errorf("preview = %d bytes, want <= %d", len(got), commentPreviewLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("preview missing ellipsis: %q", got)
	}
}

func TestCreateTicketExternalRouting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ticket, err := f.tickets.Create(ctx, externalPrincipal(), TicketCreateInput{
		Title:     "Cannot log in",
		ProductID: crmProductID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ticket.IssueKey != "SUP-S001" {
		t.Errorf("issue key = %s, want SUP-S001 from the tenant-wide pool", ticket.IssueKey)
	}
	if ticket.Status != domain.TicketStatusPendingInternalReview {
		t.Errorf("status = %s, want pending_internal_review", ticket.Status)
	}
	if ticket.ClientID == nil || *ticket.ClientID != "client-1" {
		t.Errorf("client id not taken from principal: %v", ticket.ClientID)
	}
	if ticket.ClientPriority != domain.DefaultPriority || ticket.ClientSeverity != domain.DefaultPriority {
		t.Errorf("defaults not applied: priority=%d severity=%d", ticket.ClientPriority, ticket.ClientSeverity)
	}
	if ticket.Type != domain.TicketTypeSupport {
		t.Errorf("type = %s, want default support", ticket.Type)
	}

	types := f.auditTypes(ticket.ID)
	if len(types) != 1 || types[0] != domain.AuditCreated {
		t.Errorf("audit trail = %v, want [created]", types)
	}
	if got := f.dispatcher.eventsOfType(events.EventTicketCreated); len(got) != 1 {
		t.Errorf("ticket_created events = %d, want 1", len(got))
	}
}

func TestCreateTicketInternalRouting(t *testing.T) {
	f := newFixture()

	ticket, err := f.tickets.Create(context.Background(), internalPrincipal(), TicketCreateInput{
		Title:     "Import job stalls",
		ProductID: crmProductID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ticket.IssueKey != "CRM-S001" {
		t.Errorf("issue key = %s, want product-scoped CRM-S001", ticket.IssueKey)
	}
	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s, want open", ticket.Status)
	}
}

func TestCreateTicketFeatureRequestKey(t *testing.T) {
	f := newFixture()

	ticket, err := f.tickets.Create(context.Background(), internalPrincipal(), TicketCreateInput{
		Title:     "Bulk export",
		Type:      domain.TicketTypeFeatureRequest,
		ProductID: crmProductID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ticket.IssueKey != "CRM-F001" {
		t.Errorf("issue key = %s, want CRM-F001", ticket.IssueKey)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.tickets.Create(ctx, internalPrincipal(), TicketCreateInput{ProductID: crmProductID})
	assertCode(t, err, "VALIDATION_FAILED")

	_, err = f.tickets.Create(ctx, internalPrincipal(), TicketCreateInput{Title: "x"})
	assertCode(t, err, "VALIDATION_FAILED")

	_, err = f.tickets.Create(ctx, internalPrincipal(), TicketCreateInput{
		Title: "x", ProductID: crmProductID, ClientPriority: 9,
	})
	assertCode(t, err, "VALIDATION_FAILED")

	_, err = f.tickets.Create(ctx, internalPrincipal(), TicketCreateInput{
		Title: "x", ProductID: crmProductID, Type: domain.TicketType("incident"),
	})
	assertCode(t, err, "VALIDATION_FAILED")

	// An external principal without client scope cannot file at all.
	_, err = f.tickets.Create(ctx, contractorPrincipal("eng-1"), TicketCreateInput{
		Title: "x", ProductID: crmProductID,
	})
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestCreateTicketReporterOverride(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	reporter := "cust-1"

	// Externals always report as themselves.
	_, err := f.tickets.Create(ctx, externalPrincipal(), TicketCreateInput{
		Title: "x", ProductID: crmProductID, ReporterID: &reporter,
	})
	if err == nil {
		// The override matches the principal, so it is a no-op, not an error.
		t.Log("override equal to self allowed")
	}

	other := "agent-1"
	_, err = f.tickets.Create(ctx, externalPrincipal(), TicketCreateInput{
		Title: "x", ProductID: crmProductID, ReporterID: &other,
	})
	assertCode(t, err, "FORBIDDEN")

	unknown := "nobody"
	_, err = f.tickets.Create(ctx, internalPrincipal(), TicketCreateInput{
		Title: "x", ProductID: crmProductID, ReporterID: &unknown,
	})
	assertCode(t, err, "NOT_FOUND")

	ticket, err := f.tickets.Create(ctx, internalPrincipal(), TicketCreateInput{
		Title: "filed on behalf", ProductID: crmProductID, ReporterID: &reporter,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ticket.ReporterID != "cust-1" {
		t.Errorf("reporter = %s, want cust-1", ticket.ReporterID)
	}
	if ticket.CreatedBy != "agent-1" {
		t.Errorf("created_by = %s, want the acting agent", ticket.CreatedBy)
	}
}

func TestGetTicketVisibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ticket, err := f.tickets.Create(ctx, externalPrincipal(), TicketCreateInput{
		Title: "mine", ProductID: crmProductID,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Reachable by id and by issue key for the creator and for staff.
	if _, err := f.tickets.Get(ctx, externalPrincipal(), ticket.ID); err != nil {
		t.Errorf("creator get by id: %v", err)
	}
	if _, err := f.tickets.Get(ctx, internalPrincipal(), ticket.IssueKey); err != nil {
		t.Errorf("staff get by key: %v", err)
	}

	// A stranger without the client scope sees absence, not forbidden.
	_, err = f.tickets.Get(ctx, contractorPrincipal("eng-1"), ticket.ID)
	assertCode(t, err, "NOT_FOUND")

	// Another tenant sees absence too.
	foreign := internalPrincipal()
	foreign.TenantID = otherTenant
	_, err = f.tickets.Get(ctx, foreign, ticket.ID)
	assertCode(t, err, "NOT_FOUND")
}

func TestListTicketsScoping(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.tickets.Create(ctx, externalPrincipal(), TicketCreateInput{Title: "a", ProductID: crmProductID}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tickets.Create(ctx, internalPrincipal(), TicketCreateInput{Title: "b", ProductID: crmProductID}); err != nil {
		t.Fatal(err)
	}

	all, err := f.tickets.List(ctx, internalPrincipal(), TicketListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("internal list = %d tickets, want 2", len(all))
	}

	mine, err := f.tickets.List(ctx, externalPrincipal(), TicketListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 {
		t.Errorf("external list = %d tickets, want only client-scoped 1", len(mine))
	}
}

func TestUpdateTicketTransitions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	principal := internalPrincipal()

	ticket, err := f.tickets.Create(ctx, principal, TicketCreateInput{Title: "t", ProductID: crmProductID})
	if err != nil {
		t.Fatal(err)
	}

	rebuttal := domain.TicketStatusRebuttal
	_, err = f.tickets.Update(ctx, principal, ticket.ID, TicketUpdateInput{Status: &rebuttal})
	assertCode(t, err, "VALIDATION_FAILED")

	resolved := domain.TicketStatusResolved
	updated, err := f.tickets.Update(ctx, principal, ticket.ID, TicketUpdateInput{Status: &resolved})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ClosedAt == nil {
		t.Error("resolving must stamp closed_at")
	}

	reopened := domain.TicketStatusReopened
	updated, err = f.tickets.Update(ctx, principal, ticket.ID, TicketUpdateInput{Status: &reopened})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ClosedAt != nil {
		t.Error("leaving resolved must clear closed_at")
	}

	types := f.auditTypes(ticket.ID)
	want := []domain.AuditChangeType{domain.AuditCreated, domain.AuditResolved, domain.AuditReopened}
	if len(types) != len(want) {
		t.Fatalf("audit trail = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("audit trail = %v, want %v", types, want)
		}
	}

	// Drive to a terminal status; further updates are rejected.
	resolvedAgain := domain.TicketStatusResolved
	if _, err := f.tickets.Update(ctx, principal, ticket.ID, TicketUpdateInput{Status: &resolvedAgain}); err != nil {
		t.Fatal(err)
	}
	closed := domain.TicketStatusClosed
	if _, err := f.tickets.Update(ctx, principal, ticket.ID, TicketUpdateInput{Status: &closed}); err != nil {
		t.Fatal(err)
	}
	open := domain.TicketStatusOpen
	_, err = f.tickets.Update(ctx, principal, ticket.ID, TicketUpdateInput{Status: &open})
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestUpdateTicketInternalFieldGuard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ticket, err := f.tickets.Create(ctx, externalPrincipal(), TicketCreateInput{Title: "t", ProductID: crmProductID})
	if err != nil {
		t.Fatal(err)
	}

	one := 1
	_, err = f.tickets.Update(ctx, externalPrincipal(), ticket.ID, TicketUpdateInput{InternalPriority: &one})
	assertCode(t, err, "FORBIDDEN")

	assignee := "eng-1"
	_, err = f.tickets.Update(ctx, externalPrincipal(), ticket.ID, TicketUpdateInput{AssignedTo: &assignee})
	assertCode(t, err, "FORBIDDEN")
}

func TestUpdateTicketPriorityAudit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	principal := internalPrincipal()

	ticket, err := f.tickets.Create(ctx, principal, TicketCreateInput{Title: "t", ProductID: crmProductID})
	if err != nil {
		t.Fatal(err)
	}

	one := 1
	if _, err := f.tickets.Update(ctx, principal, ticket.ID, TicketUpdateInput{InternalPriority: &one}); err != nil {
		t.Fatal(err)
	}
	types := f.auditTypes(ticket.ID)
	if len(types) != 2 || types[1] != domain.AuditPriorityChanged {
		t.Errorf("audit trail = %v, want priority_changed after created", types)
	}

	// Re-applying the same effective value records nothing new.
	if _, err := f.tickets.Update(ctx, principal, ticket.ID, TicketUpdateInput{InternalPriority: &one}); err != nil {
		t.Fatal(err)
	}
	if got := f.auditTypes(ticket.ID); len(got) != 2 {
		t.Errorf("no-op update appended audit entries: %v", got)
	}
}

func TestCommentsInternalVisibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ticket, err := f.tickets.Create(ctx, externalPrincipal(), TicketCreateInput{Title: "t", ProductID: crmProductID})
	if err != nil {
		t.Fatal(err)
	}

	// Externals cannot mark comments internal; the flag is dropped.
	comment, err := f.tickets.AddComment(ctx, externalPrincipal(), ticket.ID, "please help", true)
	if err != nil {
		t.Fatal(err)
	}
	if comment.Internal {
		t.Error("external comment stored as internal")
	}

	if _, err := f.tickets.AddComment(ctx, internalPrincipal(), ticket.ID, "escalating to eng", true); err != nil {
		t.Fatal(err)
	}

	visible, err := f.tickets.ListComments(ctx, externalPrincipal(), ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 {
		t.Errorf("external reader sees %d comments, want 1", len(visible))
	}

	all, err := f.tickets.ListComments(ctx, internalPrincipal(), ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("internal reader sees %d comments, want 2", len(all))
	}

	// Only the public comment reached the audit trail.
	count := 0
	for _, entry := range f.store.audits {
		if entry.TicketID == ticket.ID && entry.ChangeType == domain.AuditCommentAdded {
			count++
		}
	}
	if count != 1 {
		t.Errorf("comment audit entries = %d, want 1", count)
	}

	_, err = f.tickets.AddComment(ctx, internalPrincipal(), ticket.ID, "   ", false)
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestAddAttachmentsAccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ticket, err := f.tickets.Create(ctx, externalPrincipal(), TicketCreateInput{Title: "t", ProductID: crmProductID})
	if err != nil {
		t.Fatal(err)
	}

	inputs := []AttachmentInput{{StorageKey: "s3://bucket/log.txt", FileName: "log.txt", MimeType: "text/plain", SizeBytes: 42}}
	attachments, err := f.tickets.AddAttachments(ctx, externalPrincipal(), ticket.ID, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if len(attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(attachments))
	}

	_, err = f.tickets.AddAttachments(ctx, contractorPrincipal("eng-2"), ticket.ID, inputs)
	assertCode(t, err, "NOT_FOUND") // cannot even see the ticket

	_, err = f.tickets.AddAttachments(ctx, internalPrincipal(), ticket.ID, nil)
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestTicketCacheUsage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	principal := internalPrincipal()

	ticket, err := f.tickets.Create(ctx, principal, TicketCreateInput{Title: "t", ProductID: crmProductID})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.tickets.Get(ctx, principal, ticket.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tickets.Get(ctx, principal, ticket.ID); err != nil {
		t.Fatal(err)
	}
	if f.cache.hits == 0 {
		t.Error("second id lookup did not hit the cache")
	}

	assignee := "eng-1"
	if _, err := f.tickets.Update(ctx, principal, ticket.ID, TicketUpdateInput{AssignedTo: &assignee}); err != nil {
		t.Fatal(err)
	}
	if len(f.cache.invalidated) == 0 {
		t.Error("update did not invalidate the cached view")
	}
}
