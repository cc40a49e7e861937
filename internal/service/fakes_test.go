package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/events"
	"github.com/spec-kit/tracker-service/internal/repository"
)

// fakeStore is a single in-memory backing store shared by the fake
// repositories, so transactional tests can snapshot and restore all state at
// once. Failures are injected per operation name, e.g. "ticket.Update".
type fakeStore struct {
	tickets     map[string]domain.Ticket
	tasks       map[string]domain.Task
	comments    []domain.Comment
	attachments []domain.Attachment
	audits      []domain.AuditEntry
	links       []domain.Link
	taskLinks   []domain.TicketTaskLink
	watchers    []domain.Watcher
	assignments []domain.TaskAssignment
	users       map[string]domain.User
	products    map[string]domain.Product
	epics       map[string]domain.Epic
	features    map[string]domain.Feature
	counters    map[string]int
	fail        map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tickets:  make(map[string]domain.Ticket),
		tasks:    make(map[string]domain.Task),
		users:    make(map[string]domain.User),
		products: make(map[string]domain.Product),
		epics:    make(map[string]domain.Epic),
		features: make(map[string]domain.Feature),
		counters: make(map[string]int),
		fail:     make(map[string]error),
	}
}

func (s *fakeStore) snapshot() *fakeStore {
	cp := newFakeStore()
	for k, v := range s.tickets {
		cp.tickets[k] = v
	}
	for k, v := range s.tasks {
		cp.tasks[k] = v
	}
	cp.comments = append([]domain.Comment(nil), s.comments...)
	cp.attachments = append([]domain.Attachment(nil), s.attachments...)
	cp.audits = append([]domain.AuditEntry(nil), s.audits...)
	cp.links = append([]domain.Link(nil), s.links...)
	cp.taskLinks = append([]domain.TicketTaskLink(nil), s.taskLinks...)
	cp.watchers = append([]domain.Watcher(nil), s.watchers...)
	cp.assignments = append([]domain.TaskAssignment(nil), s.assignments...)
	for k, v := range s.users {
		cp.users[k] = v
	}
	for k, v := range s.products {
		cp.products[k] = v
	}
	for k, v := range s.epics {
		cp.epics[k] = v
	}
	for k, v := range s.features {
		cp.features[k] = v
	}
	for k, v := range s.counters {
		cp.counters[k] = v
	}
	return cp
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.tickets = snap.tickets
	s.tasks = snap.tasks
	s.comments = snap.comments
	s.attachments = snap.attachments
	s.audits = snap.audits
	s.links = snap.links
	s.taskLinks = snap.taskLinks
	s.watchers = snap.watchers
	s.assignments = snap.assignments
	s.users = snap.users
	s.products = snap.products
	s.epics = snap.epics
	s.features = snap.features
	s.counters = snap.counters
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// fakeTx mirrors WithinTx semantics: a failing unit leaves the store exactly
// as it was.
type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

type fakeTicketRepo struct{ s *fakeStore }

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if err := r.s.fail["ticket.Create"]; err != nil {
		return err
	}
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if err := r.s.fail["ticket.Update"]; err != nil {
		return err
	}
	if _, ok := r.s.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, tenantID, id string) (*domain.Ticket, error) {
	ticket, ok := r.s.tickets[id]
	if !ok || ticket.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	cp := ticket
	return &cp, nil
}

func (r *fakeTicketRepo) GetByIssueKey(_ context.Context, tenantID, key string) (*domain.Ticket, error) {
	for _, ticket := range r.s.tickets {
		if ticket.TenantID == tenantID && ticket.IssueKey == key {
			cp := ticket
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if ticket.TenantID != filter.TenantID {
			continue
		}
		if filter.ClientID != nil && (ticket.ClientID == nil || *ticket.ClientID != *filter.ClientID) {
			continue
		}
		if filter.ReporterID != nil && ticket.ReporterID != *filter.ReporterID {
			continue
		}
		if filter.ProductID != nil && ticket.ProductID != *filter.ProductID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		result = append(result, ticket)
	}
	return result, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeTaskRepo struct{ s *fakeStore }

func (r *fakeTaskRepo) Create(_ context.Context, task *domain.Task) error {
	if err := r.s.fail["task.Create"]; err != nil {
		return err
	}
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	r.s.tasks[task.ID] = *task
	return nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task *domain.Task) error {
	if err := r.s.fail["task.Update"]; err != nil {
		return err
	}
	if _, ok := r.s.tasks[task.ID]; !ok {
		return pgx.ErrNoRows
	}
	task.UpdatedAt = time.Now()
	r.s.tasks[task.ID] = *task
	return nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, tenantID, id string) (*domain.Task, error) {
	task, ok := r.s.tasks[id]
	if !ok || task.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	cp := task
	return &cp, nil
}

func (r *fakeTaskRepo) GetByIssueKey(_ context.Context, tenantID, key string) (*domain.Task, error) {
	for _, task := range r.s.tasks {
		if task.TenantID == tenantID && task.IssueKey == key {
			cp := task
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTaskRepo) ListWithFilter(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	var result []domain.Task
	for _, task := range r.s.tasks {
		if task.TenantID != filter.TenantID {
			continue
		}
		if filter.TicketID != nil && (task.TicketID == nil || *task.TicketID != *filter.TicketID) {
			continue
		}
		if filter.FeatureID != nil && (task.FeatureID == nil || *task.FeatureID != *filter.FeatureID) {
			continue
		}
		result = append(result, task)
	}
	return result, nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, tenantID, id string) error {
	if err := r.s.fail["task.Delete"]; err != nil {
		return err
	}
	task, ok := r.s.tasks[id]
	if !ok || task.TenantID != tenantID {
		return pgx.ErrNoRows
	}
	delete(r.s.tasks, id)
	return nil
}

func (r *fakeTaskRepo) ListAssignments(_ context.Context, taskID string) ([]domain.TaskAssignment, error) {
	var result []domain.TaskAssignment
	for _, a := range r.s.assignments {
		if a.TaskID == taskID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *fakeTaskRepo) InsertAssignment(_ context.Context, taskID, userID string) error {
	if err := r.s.fail["task.InsertAssignment"]; err != nil {
		return err
	}
	for _, a := range r.s.assignments {
		if a.TaskID == taskID && a.UserID == userID {
			return nil
		}
	}
	r.s.assignments = append(r.s.assignments, domain.TaskAssignment{TaskID: taskID, UserID: userID, CreatedAt: time.Now()})
	return nil
}

func (r *fakeTaskRepo) DeleteAssignments(_ context.Context, taskID string) error {
	kept := r.s.assignments[:0]
	for _, a := range r.s.assignments {
		if a.TaskID != taskID {
			kept = append(kept, a)
		}
	}
	r.s.assignments = kept
	return nil
}

type fakeLinkRepo struct{ s *fakeStore }

func (r *fakeLinkRepo) CreateLink(_ context.Context, link *domain.Link) error {
	if err := r.s.fail["link.CreateLink"]; err != nil {
		return err
	}
	for _, existing := range r.s.links {
		if existing.SourceID == link.SourceID && existing.TargetID == link.TargetID && existing.LinkType == link.LinkType {
			return uniqueViolation("ticket_links_source_id_target_id_link_type_key")
		}
	}
	link.CreatedAt = time.Now()
	r.s.links = append(r.s.links, *link)
	return nil
}

func (r *fakeLinkRepo) DeleteLink(_ context.Context, tenantID, id string) error {
	for i, link := range r.s.links {
		if link.TenantID == tenantID && link.ID == id {
			r.s.links = append(r.s.links[:i], r.s.links[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeLinkRepo) ListByTicket(_ context.Context, tenantID, ticketID string) ([]domain.Link, error) {
	var result []domain.Link
	for _, link := range r.s.links {
		if link.TenantID == tenantID && (link.SourceID == ticketID || link.TargetID == ticketID) {
			result = append(result, link)
		}
	}
	return result, nil
}

func (r *fakeLinkRepo) CreateTicketTaskLink(_ context.Context, link *domain.TicketTaskLink) error {
	if err := r.s.fail["link.CreateTicketTaskLink"]; err != nil {
		return err
	}
	link.CreatedAt = time.Now()
	r.s.taskLinks = append(r.s.taskLinks, *link)
	return nil
}

func (r *fakeLinkRepo) ListTicketTaskLinks(_ context.Context, tenantID, ticketID string) ([]domain.TicketTaskLink, error) {
	var result []domain.TicketTaskLink
	for _, link := range r.s.taskLinks {
		if link.TenantID == tenantID && link.TicketID == ticketID {
			result = append(result, link)
		}
	}
	return result, nil
}

func (r *fakeLinkRepo) DeleteTicketTaskLinksByTask(_ context.Context, tenantID, taskID string) error {
	kept := r.s.taskLinks[:0]
	for _, link := range r.s.taskLinks {
		if link.TenantID != tenantID || link.TaskID != taskID {
			kept = append(kept, link)
		}
	}
	r.s.taskLinks = kept
	return nil
}

type fakeCommentRepo struct{ s *fakeStore }

func (r *fakeCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	comment.CreatedAt = time.Now()
	r.s.comments = append(r.s.comments, *comment)
	return nil
}

func (r *fakeCommentRepo) ListByTicket(_ context.Context, tenantID, ticketID string) ([]domain.Comment, error) {
	var result []domain.Comment
	for _, comment := range r.s.comments {
		if comment.TenantID == tenantID && comment.TicketID == ticketID {
			result = append(result, comment)
		}
	}
	return result, nil
}

type fakeAttachmentRepo struct{ s *fakeStore }

func (r *fakeAttachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	attachment.CreatedAt = time.Now()
	r.s.attachments = append(r.s.attachments, *attachment)
	return nil
}

func (r *fakeAttachmentRepo) ListByTicket(_ context.Context, tenantID, ticketID string) ([]domain.Attachment, error) {
	var result []domain.Attachment
	for _, attachment := range r.s.attachments {
		if attachment.TenantID == tenantID && attachment.TicketID == ticketID {
			result = append(result, attachment)
		}
	}
	return result, nil
}

type fakeAuditRepo struct{ s *fakeStore }

func (r *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditEntry) error {
	entry.CreatedAt = time.Now()
	r.s.audits = append(r.s.audits, *entry)
	return nil
}

func (r *fakeAuditRepo) ListByTicket(_ context.Context, tenantID, ticketID string, _, _ int) ([]domain.AuditEntry, error) {
	var result []domain.AuditEntry
	for _, entry := range r.s.audits {
		if entry.TenantID == tenantID && entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type fakeWatcherRepo struct{ s *fakeStore }

func (r *fakeWatcherRepo) Create(_ context.Context, watcher *domain.Watcher) error {
	for _, existing := range r.s.watchers {
		if existing.TicketID == watcher.TicketID && existing.UserID == watcher.UserID {
			return uniqueViolation("watchers_pkey")
		}
	}
	watcher.CreatedAt = time.Now()
	r.s.watchers = append(r.s.watchers, *watcher)
	return nil
}

func (r *fakeWatcherRepo) Delete(_ context.Context, ticketID, userID string) error {
	for i, watcher := range r.s.watchers {
		if watcher.TicketID == ticketID && watcher.UserID == userID {
			r.s.watchers = append(r.s.watchers[:i], r.s.watchers[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeWatcherRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Watcher, error) {
	var result []domain.Watcher
	for _, watcher := range r.s.watchers {
		if watcher.TicketID == ticketID {
			result = append(result, watcher)
		}
	}
	return result, nil
}

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) GetByID(_ context.Context, tenantID, id string) (*domain.User, error) {
	user, ok := r.s.users[id]
	if !ok || user.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	cp := user
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, tenantID, email string) (*domain.User, error) {
	for _, user := range r.s.users {
		if user.TenantID == tenantID && strings.EqualFold(user.Email, email) {
			cp := user
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeProductRepo struct{ s *fakeStore }

func (r *fakeProductRepo) GetProduct(_ context.Context, tenantID, id string) (*domain.Product, error) {
	product, ok := r.s.products[id]
	if !ok || product.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	cp := product
	return &cp, nil
}

func (r *fakeProductRepo) GetEpic(_ context.Context, tenantID, id string) (*domain.Epic, error) {
	epic, ok := r.s.epics[id]
	if !ok || epic.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	cp := epic
	return &cp, nil
}

func (r *fakeProductRepo) GetFeature(_ context.Context, tenantID, id string) (*domain.Feature, error) {
	feature, ok := r.s.features[id]
	if !ok || feature.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	cp := feature
	return &cp, nil
}

type fakeCounterRepo struct{ s *fakeStore }

func (r *fakeCounterRepo) NextValue(_ context.Context, tenantID, scopeID, entityKind string) (int, error) {
	key := fmt.Sprintf("%s/%s/%s", tenantID, scopeID, entityKind)
	r.s.counters[key]++
	return r.s.counters[key], nil
}

type fakeDispatcher struct {
	published []events.Event
}

func (d *fakeDispatcher) Publish(_ context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *fakeDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *fakeDispatcher) eventsOfType(t events.EventType) []events.Event {
	var result []events.Event
	for _, e := range d.published {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

type fakeCache struct {
	entries     map[string]domain.Ticket
	hits        int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.Ticket)}
}

func (c *fakeCache) Get(_ context.Context, tenantID, ticketID string) (*domain.Ticket, bool) {
	ticket, ok := c.entries[tenantID+"/"+ticketID]
	if !ok {
		return nil, false
	}
	c.hits++
	cp := ticket
	return &cp, true
}

func (c *fakeCache) Set(_ context.Context, ticket *domain.Ticket) {
	c.entries[ticket.TenantID+"/"+ticket.ID] = *ticket
}

func (c *fakeCache) Invalidate(_ context.Context, tenantID, ticketID string) {
	delete(c.entries, tenantID+"/"+ticketID)
	c.invalidated = append(c.invalidated, ticketID)
}
