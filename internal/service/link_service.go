package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tracker-service/internal/auth"
	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/events"
	"github.com/spec-kit/tracker-service/internal/persistence"
	"github.com/spec-kit/tracker-service/internal/repository"
	apperrors "github.com/spec-kit/tracker-service/pkg/util"
)

// LinkService manages typed, directed relationships between tickets.
type LinkService struct {
	links      repository.LinkRepository
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
}

// NewLinkService constructs the registry.
func NewLinkService(links repository.LinkRepository, tickets repository.TicketRepository, dispatcher events.Dispatcher) *LinkService {
	return &LinkService{links: links, tickets: tickets, dispatcher: dispatcher}
}

// LinkResult carries the created link plus both endpoints.
type LinkResult struct {
	Link   *domain.Link
	Source *domain.Ticket
	Target *domain.Ticket
}

// Create links two tickets. Both must exist in the caller's tenant;
// self-links and duplicate (source, target, type) tuples are rejected.
func (s *LinkService) Create(ctx context.Context, principal *auth.Principal, sourceID, targetID string, linkType domain.LinkType) (*LinkResult, error) {
	if !domain.ValidLinkType(linkType) {
		return nil, apperrors.NewValidationError("unknown link type", map[string]any{"link_type": string(linkType)})
	}
	if sourceID == targetID {
		return nil, apperrors.NewValidationError("ticket cannot link to itself", nil)
	}
	source, err := s.fetch(ctx, principal.TenantID, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := s.fetch(ctx, principal.TenantID, targetID)
	if err != nil {
		return nil, err
	}

	link := &domain.Link{
		ID:        uuid.NewString(),
		TenantID:  principal.TenantID,
		SourceID:  source.ID,
		TargetID:  target.ID,
		LinkType:  linkType,
		CreatedBy: principal.UserID,
	}
	if err := s.links.CreateLink(ctx, link); err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("link already exists", map[string]any{
				"source_id": source.ID,
				"target_id": target.ID,
				"link_type": string(linkType),
			})
		}
		return nil, err
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketLinked,
			TenantID:  principal.TenantID,
			SubjectID: source.ID,
			Actor:     events.Actor{UserID: principal.UserID, Internal: principal.Internal},
			Payload: events.TicketLinkedPayload{
				TargetID: target.ID,
				LinkType: linkType,
			},
		})
	}
	return &LinkResult{Link: link, Source: source, Target: target}, nil
}

// Delete removes a link.
func (s *LinkService) Delete(ctx context.Context, principal *auth.Principal, linkID string) error {
	if err := s.links.DeleteLink(ctx, principal.TenantID, linkID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("link", map[string]any{"link_id": linkID})
		}
		return err
	}
	return nil
}

// ListForTicket returns links touching the ticket in either direction.
func (s *LinkService) ListForTicket(ctx context.Context, principal *auth.Principal, ticketID string) ([]domain.Link, error) {
	if _, err := s.fetch(ctx, principal.TenantID, ticketID); err != nil {
		return nil, err
	}
	return s.links.ListByTicket(ctx, principal.TenantID, ticketID)
}

// ListSpawnedTasks returns ticket/task join rows for a ticket.
func (s *LinkService) ListSpawnedTasks(ctx context.Context, principal *auth.Principal, ticketID string) ([]domain.TicketTaskLink, error) {
	if _, err := s.fetch(ctx, principal.TenantID, ticketID); err != nil {
		return nil, err
	}
	return s.links.ListTicketTaskLinks(ctx, principal.TenantID, ticketID)
}

func (s *LinkService) fetch(ctx context.Context, tenantID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}
