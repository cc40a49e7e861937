package service

import (
	"go.uber.org/zap"

	"github.com/spec-kit/tracker-service/internal/auth"
	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/keys"
)

// fixture wires every service against one shared fake store, seeded with a
// tenant, a coded product with one feature, and a handful of users.
type fixture struct {
	store      *fakeStore
	dispatcher *fakeDispatcher
	cache      *fakeCache
	tickets    *TicketService
	tasks      *TaskService
	links      *LinkService
	watchers   *WatcherService
}

const (
	testTenant   = "11111111-1111-1111-1111-111111111111"
	otherTenant  = "22222222-2222-2222-2222-222222222222"
	crmProductID = "33333333-3333-3333-3333-333333333333"
	crmEpicID    = "44444444-4444-4444-4444-444444444444"
	crmFeatureID = "55555555-5555-5555-5555-555555555555"
)

func newFixture() *fixture {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	cache := newFakeCache()

	crm := "CRM"
	store.products[crmProductID] = domain.Product{ID: crmProductID, TenantID: testTenant, Name: "CRM", Code: &crm}
	store.epics[crmEpicID] = domain.Epic{ID: crmEpicID, TenantID: testTenant, ProductID: crmProductID, Name: "Onboarding"}
	store.features[crmFeatureID] = domain.Feature{ID: crmFeatureID, TenantID: testTenant, EpicID: crmEpicID, Name: "Signup"}

	clientID := "client-1"
	store.users["agent-1"] = domain.User{ID: "agent-1", TenantID: testTenant, Name: "Agent", Email: "agent@example.com", Internal: true, Role: domain.RoleAgent}
	store.users["eng-1"] = domain.User{ID: "eng-1", TenantID: testTenant, Name: "Engineer", Email: "eng@example.com", Internal: true, Role: domain.RoleEngineer}
	store.users["cust-1"] = domain.User{ID: "cust-1", TenantID: testTenant, Name: "Customer", Email: "customer@example.com", Role: domain.RoleClient, ClientID: &clientID}

	ticketRepo := &fakeTicketRepo{s: store}
	taskRepo := &fakeTaskRepo{s: store}
	linkRepo := &fakeLinkRepo{s: store}
	commentRepo := &fakeCommentRepo{s: store}
	attachmentRepo := &fakeAttachmentRepo{s: store}
	auditRepo := &fakeAuditRepo{s: store}
	watcherRepo := &fakeWatcherRepo{s: store}
	userRepo := &fakeUserRepo{s: store}
	productRepo := &fakeProductRepo{s: store}
	counterRepo := &fakeCounterRepo{s: store}

	allocator := keys.NewAllocator(productRepo, counterRepo, "SUP")
	recorder := NewAuditRecorder(auditRepo, zap.NewNop())

	return &fixture{
		store:      store,
		dispatcher: dispatcher,
		cache:      cache,
		tickets: NewTicketService(TicketDependencies{
			TicketRepo:     ticketRepo,
			CommentRepo:    commentRepo,
			AttachmentRepo: attachmentRepo,
			UserRepo:       userRepo,
			Allocator:      allocator,
			Audit:          recorder,
			Dispatcher:     dispatcher,
			Cache:          cache,
		}),
		tasks: NewTaskService(TaskDependencies{
			TaskRepo:    taskRepo,
			TicketRepo:  ticketRepo,
			LinkRepo:    linkRepo,
			ProductRepo: productRepo,
			Allocator:   allocator,
			Audit:       recorder,
			Dispatcher:  dispatcher,
			Tx:          &fakeTx{store: store},
			Cache:       cache,
		}),
		links:    NewLinkService(linkRepo, ticketRepo, dispatcher),
		watchers: NewWatcherService(watcherRepo, ticketRepo, userRepo),
	}
}

func internalPrincipal() *auth.Principal {
	return &auth.Principal{UserID: "agent-1", TenantID: testTenant, Internal: true, Role: domain.RoleAgent}
}

func engineerPrincipal(userID string) *auth.Principal {
	return &auth.Principal{UserID: userID, TenantID: testTenant, Internal: true, Role: domain.RoleEngineer}
}

func externalPrincipal() *auth.Principal {
	clientID := "client-1"
	return &auth.Principal{UserID: "cust-1", TenantID: testTenant, Role: domain.RoleClient, ClientID: &clientID}
}

// contractorPrincipal is a non-internal account without client scope, used
// for task assignment access tests.
func contractorPrincipal(userID string) *auth.Principal {
	return &auth.Principal{UserID: userID, TenantID: testTenant, Role: domain.RoleEngineer}
}

func (f *fixture) auditTypes(ticketID string) []domain.AuditChangeType {
	var result []domain.AuditChangeType
	for _, entry := range f.store.audits {
		if entry.TicketID == ticketID {
			result = append(result, entry.ChangeType)
		}
	}
	return result
}
