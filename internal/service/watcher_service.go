package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tracker-service/internal/auth"
	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/persistence"
	"github.com/spec-kit/tracker-service/internal/repository"
	apperrors "github.com/spec-kit/tracker-service/pkg/util"
)

// WatcherService manages the set of users subscribed to a ticket.
type WatcherService struct {
	watchers repository.WatcherRepository
	tickets  repository.TicketRepository
	users    repository.UserRepository
}

// NewWatcherService constructs the registry.
func NewWatcherService(watchers repository.WatcherRepository, tickets repository.TicketRepository, users repository.UserRepository) *WatcherService {
	return &WatcherService{watchers: watchers, tickets: tickets, users: users}
}

// Watch subscribes a user, addressed either by user id or by email. A user
// may watch a ticket at most once.
func (s *WatcherService) Watch(ctx context.Context, principal *auth.Principal, ticketID, userID, email string) (*domain.Watcher, error) {
	ticket, err := s.tickets.GetByID(ctx, principal.TenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}

	switch {
	case userID != "":
		if _, err := s.users.GetByID(ctx, principal.TenantID, userID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
			}
			return nil, err
		}
	case strings.TrimSpace(email) != "":
		user, err := s.users.GetByEmail(ctx, principal.TenantID, strings.TrimSpace(email))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("user", map[string]any{"email": email})
			}
			return nil, err
		}
		userID = user.ID
	default:
		return nil, apperrors.NewValidationError("user_id or email required", nil)
	}

	watcher := &domain.Watcher{TicketID: ticket.ID, UserID: userID}
	if err := s.watchers.Create(ctx, watcher); err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("user already watches this ticket", map[string]any{
				"ticket_id": ticket.ID,
				"user_id":   userID,
			})
		}
		return nil, err
	}
	return watcher, nil
}

// Unwatch removes a subscription.
func (s *WatcherService) Unwatch(ctx context.Context, principal *auth.Principal, ticketID, userID string) error {
	if _, err := s.tickets.GetByID(ctx, principal.TenantID, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return err
	}
	if err := s.watchers.Delete(ctx, ticketID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("watcher", map[string]any{"user_id": userID})
		}
		return err
	}
	return nil
}

// List returns the watcher set for a ticket.
func (s *WatcherService) List(ctx context.Context, principal *auth.Principal, ticketID string) ([]domain.Watcher, error) {
	if _, err := s.tickets.GetByID(ctx, principal.TenantID, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, err
	}
	return s.watchers.ListByTicket(ctx, ticketID)
}
