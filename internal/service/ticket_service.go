package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tracker-service/internal/auth"
	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/events"
	"github.com/spec-kit/tracker-service/internal/keys"
	"github.com/spec-kit/tracker-service/internal/repository"
	apperrors "github.com/spec-kit/tracker-service/pkg/util"
)

// commentPreviewLen bounds the comment excerpt carried in audit entries; the
// full body never enters the audit trail.
const commentPreviewLen = 100

// TicketService owns ticket creation, status transitions and resolution
// bookkeeping.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	users       repository.UserRepository
	allocator   *keys.Allocator
	audit       *AuditRecorder
	dispatcher  events.Dispatcher
	cache       TicketCache
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	UserRepo       repository.UserRepository
	Allocator      *keys.Allocator
	Audit          *AuditRecorder
	Dispatcher     events.Dispatcher
	Cache          TicketCache
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		users:       deps.UserRepo,
		allocator:   deps.Allocator,
		audit:       deps.Audit,
		dispatcher:  deps.Dispatcher,
		cache:       deps.Cache,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title          string
	Description    string
	Type           domain.TicketType
	ProductID      string
	ClientPriority int
	ClientSeverity int
	ParentID       *string
	Labels         []string
	ClientID       *string
	ReporterID     *string
}

// TicketUpdateInput describes a partial ticket update. Nil pointers leave the
// field untouched.
type TicketUpdateInput struct {
	Status           *domain.TicketStatus
	InternalPriority *int
	InternalSeverity *int
	AssignedTo       *string
	Labels           []string
	ParentID         *string
	Resolution       *string
	ResolutionNote   *string
}

// TicketListFilter describes listing filters exposed to callers.
type TicketListFilter struct {
	Statuses    []domain.TicketStatus
	Types       []domain.TicketType
	AssignedTo  *string
	ProductID   *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// AttachmentInput describes uploaded file metadata.
type AttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// Create creates a ticket. External clients filing support or feature
// requests draw a key from the tenant-wide pool and start in
// pending_internal_review; everything else is product-scoped and opens
// immediately.
func (s *TicketService) Create(ctx context.Context, principal *auth.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if input.ProductID == "" {
		return nil, apperrors.NewValidationError("product_id required", nil)
	}
	ticketType := input.Type
	if ticketType == "" {
		ticketType = domain.TicketTypeSupport
	}
	if !domain.ValidTicketType(ticketType) {
		return nil, apperrors.NewValidationError("unknown ticket type", map[string]any{"type": string(ticketType)})
	}
	priority, err := normalizeLevel(input.ClientPriority, "client_priority")
	if err != nil {
		return nil, err
	}
	severity, err := normalizeLevel(input.ClientSeverity, "client_severity")
	if err != nil {
		return nil, err
	}

	reporterID := principal.UserID
	if input.ReporterID != nil && *input.ReporterID != principal.UserID {
		// Staff may file on a client's behalf; clients always report as themselves.
		if !principal.Internal {
			return nil, apperrors.NewForbidden("reporter override requires internal staff")
		}
		if _, err := s.users.GetByID(ctx, principal.TenantID, *input.ReporterID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("reporter", map[string]any{"reporter_id": *input.ReporterID})
			}
			return nil, err
		}
		reporterID = *input.ReporterID
	}

	clientID := input.ClientID
	if !principal.Internal {
		clientID = principal.ClientID
		if clientID == nil {
			return nil, apperrors.NewValidationError("client scope required for external callers", nil)
		}
	}

	if input.ParentID != nil {
		if _, err := s.tickets.GetByID(ctx, principal.TenantID, *input.ParentID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("parent ticket", map[string]any{"parent_id": *input.ParentID})
			}
			return nil, err
		}
	}

	var (
		allocation keys.Allocation
		status     domain.TicketStatus
	)
	if !principal.Internal {
		allocation, err = s.allocator.AllocateGlobalScoped(ctx, principal.TenantID, ticketEntityKind(ticketType))
		status = domain.TicketStatusPendingInternalReview
	} else {
		allocation, err = s.allocator.AllocateProductScoped(ctx, principal.TenantID, input.ProductID, ticketEntityKind(ticketType))
		status = domain.TicketStatusOpen
	}
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		ID:             allocation.ID,
		TenantID:       principal.TenantID,
		IssueKey:       allocation.Key,
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Type:           ticketType,
		Status:         status,
		ProductID:      input.ProductID,
		ClientPriority: priority,
		ClientSeverity: severity,
		ClientID:       clientID,
		CreatedBy:      principal.UserID,
		ReporterID:     reporterID,
		ParentID:       input.ParentID,
		Labels:         input.Labels,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	newStatus := string(ticket.Status)
	s.audit.Record(ctx, ticket.TenantID, ticket.ID, domain.AuditCreated, principal.UserID, nil, &newStatus, map[string]any{
		"issue_key": ticket.IssueKey,
		"type":      string(ticket.Type),
	})
	s.publish(ctx, principal, events.EventTicketCreated, ticket.ID, events.TicketCreatedPayload{
		IssueKey: ticket.IssueKey,
		Type:     ticket.Type,
		Status:   ticket.Status,
		Title:    ticket.Title,
	})
	return ticket, nil
}

// Get resolves a ticket by opaque id or issue key and enforces visibility.
func (s *TicketService) Get(ctx context.Context, principal *auth.Principal, idOrKey string) (*domain.Ticket, error) {
	ticket, err := s.resolve(ctx, principal.TenantID, idOrKey)
	if err != nil {
		return nil, err
	}
	if !s.canView(principal, ticket) {
		// Cross-scope access reads as absence, never as forbidden.
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": idOrKey})
	}
	return ticket, nil
}

// List returns tickets visible to the principal.
func (s *TicketService) List(ctx context.Context, principal *auth.Principal, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		TenantID:    principal.TenantID,
		AssignedTo:  filter.AssignedTo,
		ProductID:   filter.ProductID,
		Statuses:    filter.Statuses,
		Types:       filter.Types,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if !principal.Internal {
		repoFilter.ClientID = principal.ClientID
		if repoFilter.ClientID == nil {
			reporter := principal.UserID
			repoFilter.ReporterID = &reporter
		}
	}
	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// Update applies a partial update, validates status transitions, and emits
// one audit entry per changed dimension.
func (s *TicketService) Update(ctx context.Context, principal *auth.Principal, idOrKey string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.Get(ctx, principal, idOrKey)
	if err != nil {
		return nil, err
	}
	if domain.TicketStatusTerminal(ticket.Status) {
		return nil, apperrors.NewValidationError("ticket is in a terminal status", map[string]any{"status": string(ticket.Status)})
	}
	if !principal.Internal && touchesInternalFields(input) {
		return nil, apperrors.NewForbidden("internal-only fields require internal staff")
	}

	old := *ticket

	if input.Status != nil && *input.Status != ticket.Status {
		if !domain.ValidTicketTransition(ticket.Status, *input.Status) {
			return nil, apperrors.NewValidationError("invalid status transition", map[string]any{
				"from": string(ticket.Status),
				"to":   string(*input.Status),
			})
		}
		ticket.Status = *input.Status
		if domain.TicketStatusClosing(ticket.Status) {
			if ticket.ClosedAt == nil {
				now := time.Now()
				ticket.ClosedAt = &now
			}
		} else if old.Status == domain.TicketStatusResolved {
			ticket.ClosedAt = nil
		}
	}
	if input.InternalPriority != nil {
		if _, err := normalizeLevel(*input.InternalPriority, "internal_priority"); err != nil {
			return nil, err
		}
		ticket.InternalPriority = input.InternalPriority
	}
	if input.InternalSeverity != nil {
		if _, err := normalizeLevel(*input.InternalSeverity, "internal_severity"); err != nil {
			return nil, err
		}
		ticket.InternalSeverity = input.InternalSeverity
	}
	if input.AssignedTo != nil {
		ticket.AssignedTo = input.AssignedTo
	}
	if input.Labels != nil {
		ticket.Labels = input.Labels
	}
	if input.ParentID != nil {
		if *input.ParentID == ticket.ID {
			return nil, apperrors.NewValidationError("ticket cannot be its own parent", nil)
		}
		if _, err := s.tickets.GetByID(ctx, principal.TenantID, *input.ParentID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("parent ticket", map[string]any{"parent_id": *input.ParentID})
			}
			return nil, err
		}
		ticket.ParentID = input.ParentID
	}
	if input.Resolution != nil {
		ticket.Resolution = input.Resolution
	}
	if input.ResolutionNote != nil {
		ticket.ResolutionNote = input.ResolutionNote
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, ticket.TenantID, ticket.ID)
	}

	s.auditTicketDiff(ctx, principal, &old, ticket)
	if old.Status != ticket.Status {
		s.publish(ctx, principal, events.EventTicketStatusChanged, ticket.ID, events.TicketStatusChangedPayload{
			OldStatus: old.Status,
			NewStatus: ticket.Status,
		})
	}
	if !equalPtr(old.AssignedTo, ticket.AssignedTo) {
		s.publish(ctx, principal, events.EventTicketAssigned, ticket.ID, events.TicketAssignedPayload{
			AssignedTo: ticket.AssignedTo,
		})
	}
	return ticket, nil
}

// AddComment appends a comment. Only internal users may mark a comment
// internal; the flag is silently dropped for everyone else.
func (s *TicketService) AddComment(ctx context.Context, principal *auth.Principal, idOrKey, body string, internal bool) (*domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}
	ticket, err := s.Get(ctx, principal, idOrKey)
	if err != nil {
		return nil, err
	}
	if !principal.Internal {
		internal = false
	}
	comment := &domain.Comment{
		ID:       uuid.NewString(),
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		AuthorID: principal.UserID,
		Body:     strings.TrimSpace(body),
		Internal: internal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	if !comment.Internal {
		preview := stringPreview(comment.Body, commentPreviewLen)
		s.audit.Record(ctx, ticket.TenantID, ticket.ID, domain.AuditCommentAdded, principal.UserID, nil, &preview, nil)
	}
	s.publish(ctx, principal, events.EventTicketCommentAdded, ticket.ID, events.TicketCommentAddedPayload{
		CommentID:   comment.ID,
		Internal:    comment.Internal,
		BodyPreview: stringPreview(comment.Body, commentPreviewLen),
	})
	return comment, nil
}

// ListComments returns the thread, hiding internal comments from external
// readers.
func (s *TicketService) ListComments(ctx context.Context, principal *auth.Principal, idOrKey string) ([]domain.Comment, error) {
	ticket, err := s.Get(ctx, principal, idOrKey)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.TenantID, ticket.ID)
	if err != nil {
		return nil, err
	}
	if principal.Internal {
		return comments, nil
	}
	visible := make([]domain.Comment, 0, len(comments))
	for _, comment := range comments {
		if !comment.Internal {
			visible = append(visible, comment)
		}
	}
	return visible, nil
}

// AddAttachments records uploaded file metadata. Accepted from internal
// users, the ticket's creator, or a user sharing the ticket's client scope.
func (s *TicketService) AddAttachments(ctx context.Context, principal *auth.Principal, idOrKey string, inputs []AttachmentInput) ([]domain.Attachment, error) {
	if len(inputs) == 0 {
		return nil, apperrors.NewValidationError("at least one attachment required", nil)
	}
	ticket, err := s.Get(ctx, principal, idOrKey)
	if err != nil {
		return nil, err
	}
	if !s.canAttach(principal, ticket) {
		return nil, apperrors.NewForbidden("not allowed to attach files to this ticket")
	}
	result := make([]domain.Attachment, 0, len(inputs))
	for _, input := range inputs {
		attachment := &domain.Attachment{
			ID:         uuid.NewString(),
			TenantID:   ticket.TenantID,
			TicketID:   ticket.ID,
			UploadedBy: principal.UserID,
			StorageKey: input.StorageKey,
			FileName:   input.FileName,
			MimeType:   input.MimeType,
			SizeBytes:  input.SizeBytes,
		}
		if err := s.attachments.Create(ctx, attachment); err != nil {
			return nil, err
		}
		fileName := attachment.FileName
		s.audit.Record(ctx, ticket.TenantID, ticket.ID, domain.AuditAttachmentAdded, principal.UserID, nil, &fileName, map[string]any{
			"attachment_id": attachment.ID,
			"size_bytes":    attachment.SizeBytes,
		})
		result = append(result, *attachment)
	}
	return result, nil
}

// ListAttachments returns attachment metadata for a ticket.
func (s *TicketService) ListAttachments(ctx context.Context, principal *auth.Principal, idOrKey string) ([]domain.Attachment, error) {
	ticket, err := s.Get(ctx, principal, idOrKey)
	if err != nil {
		return nil, err
	}
	return s.attachments.ListByTicket(ctx, ticket.TenantID, ticket.ID)
}

// History returns the audit trail for a ticket.
func (s *TicketService) History(ctx context.Context, principal *auth.Principal, idOrKey string, limit, offset int) ([]domain.AuditEntry, error) {
	ticket, err := s.Get(ctx, principal, idOrKey)
	if err != nil {
		return nil, err
	}
	return s.audit.List(ctx, ticket.TenantID, ticket.ID, limit, offset)
}

// resolve looks a ticket up by opaque id or issue key, consulting the cache
// for id lookups.
func (s *TicketService) resolve(ctx context.Context, tenantID, idOrKey string) (*domain.Ticket, error) {
	if _, parseErr := uuid.Parse(idOrKey); parseErr == nil {
		if s.cache != nil {
			if ticket, ok := s.cache.Get(ctx, tenantID, idOrKey); ok {
				return ticket, nil
			}
		}
		ticket, err := s.tickets.GetByID(ctx, tenantID, idOrKey)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"id": idOrKey})
			}
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(ctx, ticket)
		}
		return ticket, nil
	}
	ticket, err := s.tickets.GetByIssueKey(ctx, tenantID, idOrKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"issue_key": idOrKey})
		}
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) canView(principal *auth.Principal, ticket *domain.Ticket) bool {
	if principal.Internal {
		return true
	}
	if ticket.CreatedBy == principal.UserID || ticket.ReporterID == principal.UserID {
		return true
	}
	return ticket.ClientID != nil && principal.ClientID != nil && *ticket.ClientID == *principal.ClientID
}

func (s *TicketService) canAttach(principal *auth.Principal, ticket *domain.Ticket) bool {
	if principal.Internal || ticket.CreatedBy == principal.UserID {
		return true
	}
	return ticket.ClientID != nil && principal.ClientID != nil && *ticket.ClientID == *principal.ClientID
}

// auditTicketDiff emits one audit entry per changed dimension.
func (s *TicketService) auditTicketDiff(ctx context.Context, principal *auth.Principal, old, updated *domain.Ticket) {
	if old.Status != updated.Status {
		oldStatus, newStatus := string(old.Status), string(updated.Status)
		changeType := domain.ClassifyStatusChange(old.Status, updated.Status)
		s.audit.Record(ctx, updated.TenantID, updated.ID, changeType, principal.UserID, &oldStatus, &newStatus, nil)
	}
	if old.EffectivePriority() != updated.EffectivePriority() {
		oldVal, newVal := levelString(old.EffectivePriority()), levelString(updated.EffectivePriority())
		s.audit.Record(ctx, updated.TenantID, updated.ID, domain.AuditPriorityChanged, principal.UserID, &oldVal, &newVal, nil)
	}
	if old.EffectiveSeverity() != updated.EffectiveSeverity() {
		oldVal, newVal := levelString(old.EffectiveSeverity()), levelString(updated.EffectiveSeverity())
		s.audit.Record(ctx, updated.TenantID, updated.ID, domain.AuditSeverityChanged, principal.UserID, &oldVal, &newVal, nil)
	}
	if !equalPtr(old.AssignedTo, updated.AssignedTo) {
		s.audit.Record(ctx, updated.TenantID, updated.ID, domain.AuditAssigned, principal.UserID, old.AssignedTo, updated.AssignedTo, nil)
	}
}

func (s *TicketService) publish(ctx context.Context, principal *auth.Principal, eventType events.EventType, subjectID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TenantID:  principal.TenantID,
		SubjectID: subjectID,
		Actor:     events.Actor{UserID: principal.UserID, Internal: principal.Internal},
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func ticketEntityKind(t domain.TicketType) keys.EntityKind {
	if t == domain.TicketTypeFeatureRequest {
		return keys.KindFeatureRequest
	}
	return keys.KindSupport
}

func touchesInternalFields(input TicketUpdateInput) bool {
	return input.InternalPriority != nil ||
		input.InternalSeverity != nil ||
		input.AssignedTo != nil ||
		input.Labels != nil ||
		input.ParentID != nil
}

// normalizeLevel validates a 1-4 priority/severity, defaulting zero values.
func normalizeLevel(v int, field string) (int, error) {
	if v == 0 {
		return domain.DefaultPriority, nil
	}
	if v < 1 || v > 4 {
		return 0, apperrors.NewValidationError(field+" must be between 1 and 4", map[string]any{field: v})
	}
	return v, nil
}

func levelString(v int) string {
	return strconv.Itoa(v)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	cut := max
	suffix := ""
	if max > 3 {
		cut = max - 3
		suffix = "..."
	}
	// Back off to a rune boundary so the preview stays valid UTF-8.
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + suffix
}
