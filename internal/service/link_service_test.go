package service

import (
	"context"
	"testing"

	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/events"
)

func makeTicket(t *testing.T, f *fixture, title string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Create(context.Background(), internalPrincipal(), TicketCreateInput{
		Title:     title,
		ProductID: crmProductID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return ticket
}

func TestCreateLink(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := makeTicket(t, f, "A")
	b := makeTicket(t, f, "B")

	result, err := f.links.Create(ctx, internalPrincipal(), a.ID, b.ID, domain.LinkBlocks)
	if err != nil {
		t.Fatal(err)
	}
	if result.Link.SourceID != a.ID || result.Link.TargetID != b.ID {
		t.Error("link endpoints wrong")
	}
	if result.Source.IssueKey != a.IssueKey || result.Target.IssueKey != b.IssueKey {
		t.Error("result must carry both resolved endpoints")
	}
	if got := f.dispatcher.eventsOfType(events.EventTicketLinked); len(got) != 1 {
		t.Errorf("linked events = %d, want 1", len(got))
	}

	// Same tuple again is a conflict; a different type is a new edge.
	_, err = f.links.Create(ctx, internalPrincipal(), a.ID, b.ID, domain.LinkBlocks)
	assertCode(t, err, "CONFLICT")
	if _, err := f.links.Create(ctx, internalPrincipal(), a.ID, b.ID, domain.LinkRelatesTo); err != nil {
		t.Errorf("distinct link type rejected: %v", err)
	}
}

func TestCreateLinkValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := makeTicket(t, f, "A")

	_, err := f.links.Create(ctx, internalPrincipal(), a.ID, a.ID, domain.LinkRelatesTo)
	assertCode(t, err, "VALIDATION_FAILED")

	_, err = f.links.Create(ctx, internalPrincipal(), a.ID, "00000000-0000-0000-0000-00000000dead", domain.LinkRelatesTo)
	assertCode(t, err, "NOT_FOUND")

	_, err = f.links.Create(ctx, internalPrincipal(), a.ID, a.ID, domain.LinkType("mentions"))
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestListAndDeleteLink(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := makeTicket(t, f, "A")
	b := makeTicket(t, f, "B")
	c := makeTicket(t, f, "C")

	first, err := f.links.Create(ctx, internalPrincipal(), a.ID, b.ID, domain.LinkBlocks)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.links.Create(ctx, internalPrincipal(), c.ID, a.ID, domain.LinkChildOf); err != nil {
		t.Fatal(err)
	}

	// Listing sees edges in both directions.
	links, err := f.links.ListForTicket(ctx, internalPrincipal(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 {
		t.Fatalf("links touching A = %d, want 2", len(links))
	}

	if err := f.links.Delete(ctx, internalPrincipal(), first.Link.ID); err != nil {
		t.Fatal(err)
	}
	err = f.links.Delete(ctx, internalPrincipal(), first.Link.ID)
	assertCode(t, err, "NOT_FOUND")

	links, err = f.links.ListForTicket(ctx, internalPrincipal(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 {
		t.Fatalf("links after delete = %d, want 1", len(links))
	}
}
