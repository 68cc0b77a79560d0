package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/findesk/findesk/internal/domain"
	"github.com/findesk/findesk/internal/events"
	"github.com/findesk/findesk/internal/identity"
	"github.com/findesk/findesk/internal/repository"
	"github.com/findesk/findesk/internal/sla"
	apperrors "github.com/findesk/findesk/pkg/util"
)

var (
	ana   = domain.Principal{Email: "ana@example.com", Name: "Ana Silva"}
	bruno = domain.Principal{Email: "bruno@example.com", Name: "Bruno Costa"}
	admin = domain.Principal{Email: "marcos@example.com", Name: "Marcos", IsAdmin: true}
)

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	svc      *TicketService
	recorder *eventRecorder
	clock    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	recorder := &eventRecorder{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range events.AllTypes() {
		dispatcher.Subscribe(eventType, recorder.record)
	}
	env := &testEnv{
		recorder: recorder,
		// A Wednesday morning, so short SLA windows stay inside the week.
		clock: time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC),
	}
	env.svc = NewTicketService(TicketDependencies{
		TicketRepo: repository.NewMemoryTicketRepository(),
		Directory:  identity.NewDirectory(map[string]string{"marcos@example.com": "Marcos Admin"}),
		Formatter:  sla.Formatter{Format: sla.FormatCoarse},
		Dispatcher: dispatcher,
	})
	env.svc.Now = func() time.Time { return env.clock }
	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.clock = env.clock.Add(d)
}

func (env *testEnv) open(t *testing.T, principal domain.Principal, input TicketCreateInput) *domain.Ticket {
	t.Helper()
	if input.RequesterName == "" {
		input.RequesterName = principal.Name
	}
	if input.Description == "" {
		input.Description = "something broke"
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	ticket, err := env.svc.CreateTicket(context.Background(), principal, input)
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func (env *testEnv) resolve(t *testing.T, ticketID string) *domain.Ticket {
	t.Helper()
	ticket, err := env.svc.ChangeStatus(context.Background(), admin, ticketID, domain.TicketStatusResolved, "fixed it")
	if err != nil {
		t.Fatalf("resolve ticket: %v", err)
	}
	return ticket
}

func TestCreateTicketRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created := env.open(t, ana, TicketCreateInput{
		RequesterName: "Ana Silva",
		RequesterRole: "Analyst",
		Category:      "Hardware",
		Priority:      domain.TicketPriorityHigh,
		Description:   "monitor flickers",
	})

	if len(created.ID) != 13 {
		t.Errorf("ticket id length %d, want 13", len(created.ID))
	}
	if created.Status != domain.TicketStatusOpen {
		t.Errorf("status %s, want OPEN", created.Status)
	}
	if created.Version != 0 {
		t.Errorf("fresh ticket version %d, want 0", created.Version)
	}
	// High priority: two business days from Wednesday lands on Friday.
	wantDue := env.clock.AddDate(0, 0, 2)
	if !created.DueAt.Equal(wantDue) {
		t.Errorf("due at %v, want %v", created.DueAt, wantDue)
	}

	listed, err := env.svc.ListTickets(ctx, ana, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %d tickets, want 1", len(listed))
	}
	got := listed[0]
	if got.ID != created.ID || got.RequesterEmail != "ana@example.com" ||
		got.Category != "Hardware" || got.Priority != domain.TicketPriorityHigh ||
		got.Description != "monitor flickers" || !got.OpenedAt.Equal(created.OpenedAt) {
		t.Errorf("listed ticket does not match created: %+v", got)
	}

	if types := env.recorder.types(); len(types) != 1 || types[0] != events.EventTicketOpened {
		t.Errorf("events %v, want single ticket_opened", types)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input TicketCreateInput
	}{
		{"single name token", TicketCreateInput{RequesterName: "Ana", Description: "x", Priority: domain.TicketPriorityLow}},
		{"lower-case part", TicketCreateInput{RequesterName: "Ana silva", Description: "x", Priority: domain.TicketPriorityLow}},
		{"empty description", TicketCreateInput{RequesterName: "Ana Silva", Priority: domain.TicketPriorityLow}},
		{"unknown priority", TicketCreateInput{RequesterName: "Ana Silva", Description: "x", Priority: "CRITICAL"}},
	}
	for _, tc := range cases {
		if _, err := env.svc.CreateTicket(ctx, ana, tc.input); !apperrors.IsValidation(err) {
			t.Errorf("%s: got %v, want validation error", tc.name, err)
		}
	}
	if types := env.recorder.types(); len(types) != 0 {
		t.Errorf("rejected creates must not publish events, got %v", types)
	}
}

func TestUrgentFridayTicketDueMonday(t *testing.T) {
	env := newTestEnv(t)
	env.clock = time.Date(2024, time.March, 8, 16, 0, 0, 0, time.UTC) // Friday

	ticket := env.open(t, ana, TicketCreateInput{
		RequesterName: "Ana Silva",
		Priority:      domain.TicketPriorityUrgent,
		Description:   "VPN down",
	})
	want := time.Date(2024, time.March, 11, 16, 0, 0, 0, time.UTC) // Monday
	if !ticket.DueAt.Equal(want) {
		t.Errorf("due at %v, want Monday %v", ticket.DueAt, want)
	}
}

func TestListOrderingAndIdempotence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		ticket := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})
		ids = append(ids, ticket.ID)
		env.advance(time.Hour)
	}

	first, err := env.svc.ListTickets(ctx, ana, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("listed %d, want 3", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i].OpenedAt.After(first[i-1].OpenedAt) {
			t.Errorf("list not descending by opened_at at index %d", i)
		}
	}
	if first[0].ID != ids[2] || first[2].ID != ids[0] {
		t.Errorf("newest first expected, got %s..%s", first[0].ID, first[2].ID)
	}

	second, err := env.svc.ListTickets(ctx, ana, ListFilter{})
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("listing is not stable: %s vs %s at %d", first[i].ID, second[i].ID, i)
		}
	}
}

func TestListScopesNonAdminToOwnTickets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mine := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})
	env.open(t, bruno, TicketCreateInput{RequesterName: "Bruno Costa"})

	listed, err := env.svc.ListTickets(ctx, ana, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != mine.ID {
		t.Errorf("non-admin must only see own tickets, got %d", len(listed))
	}

	all, err := env.svc.ListTickets(ctx, admin, ListFilter{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("admin sees %d tickets, want 2", len(all))
	}
}

func TestListTabsSplitOnResolution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	open := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})
	env.advance(time.Minute)
	closed := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})
	env.resolve(t, closed.ID)

	openTab, err := env.svc.ListTickets(ctx, ana, ListFilter{Tab: TabOpen})
	if err != nil {
		t.Fatalf("open tab: %v", err)
	}
	if len(openTab) != 1 || openTab[0].ID != open.ID {
		t.Errorf("open tab wrong: %+v", openTab)
	}

	closedTab, err := env.svc.ListTickets(ctx, ana, ListFilter{Tab: TabClosed})
	if err != nil {
		t.Fatalf("closed tab: %v", err)
	}
	if len(closedTab) != 1 || closedTab[0].ID != closed.ID {
		t.Errorf("closed tab wrong: %+v", closedTab)
	}
}

func TestPermissionMatrix(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})

	checks := []struct {
		name string
		call func() error
	}{
		{"foreign get", func() error { _, err := env.svc.GetTicket(ctx, bruno, ticket.ID); return err }},
		{"foreign comment", func() error {
			_, err := env.svc.AddComment(ctx, bruno, ticket.ID, CommentInput{Body: "hi"})
			return err
		}},
		{"foreign reopen", func() error { _, err := env.svc.ReopenTicket(ctx, bruno, ticket.ID, "please"); return err }},
		{"foreign rating", func() error { _, err := env.svc.RateTicket(ctx, bruno, ticket.ID, 5); return err }},
		{"non-admin status change", func() error {
			_, err := env.svc.ChangeStatus(ctx, ana, ticket.ID, domain.TicketStatusInProgress, "")
			return err
		}},
		{"non-admin assign", func() error { _, err := env.svc.AssignTicket(ctx, ana, ticket.ID, "Marcos"); return err }},
		{"non-admin delete", func() error { return env.svc.DeleteTicket(ctx, ana, ticket.ID) }},
	}
	for _, check := range checks {
		if err := check.call(); !apperrors.IsForbidden(err) {
			t.Errorf("%s: got %v, want forbidden", check.name, err)
		}
	}

	got, err := env.svc.GetTicket(ctx, ana, ticket.ID)
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if got.Status != domain.TicketStatusOpen || len(got.Comments) != 0 {
		t.Errorf("denied operations must not mutate the ticket: %+v", got)
	}
}

func TestCommentsAppendInOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})

	for _, body := range []string{"first", "second", "third"} {
		env.advance(time.Minute)
		if _, err := env.svc.AddComment(ctx, ana, ticket.ID, CommentInput{Body: body}); err != nil {
			t.Fatalf("comment %q: %v", body, err)
		}
	}
	if _, err := env.svc.AddComment(ctx, admin, ticket.ID, CommentInput{Body: "on it"}); err != nil {
		t.Fatalf("admin comment: %v", err)
	}

	got, err := env.svc.GetTicket(ctx, ana, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Comments) != 4 {
		t.Fatalf("comments %d, want 4", len(got.Comments))
	}
	for i, want := range []string{"first", "second", "third", "on it"} {
		if got.Comments[i].Body != want {
			t.Errorf("comment %d body %q, want %q", i, got.Comments[i].Body, want)
		}
	}
	if got.Comments[0].Author != "Ana Silva" {
		t.Errorf("requester comment author %q", got.Comments[0].Author)
	}
	if got.Comments[3].Author != "Marcos Admin" {
		t.Errorf("admin comment author %q, want directory name", got.Comments[3].Author)
	}
	if _, err := env.svc.AddComment(ctx, ana, ticket.ID, CommentInput{Body: "   "}); !apperrors.IsValidation(err) {
		t.Errorf("blank comment: got %v, want validation error", err)
	}
}

func TestResolveRequiresConcludingComment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})

	if _, err := env.svc.ChangeStatus(ctx, admin, ticket.ID, domain.TicketStatusResolved, "  "); !apperrors.IsValidation(err) {
		t.Fatalf("resolve without comment: got %v, want validation error", err)
	}

	got, err := env.svc.GetTicket(ctx, ana, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.TicketStatusOpen || got.ResolvedAt != nil {
		t.Errorf("failed resolve must leave ticket untouched: %+v", got)
	}
}

func TestResolveStampsSLA(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})

	env.advance(45 * time.Minute)
	resolved := env.resolve(t, ticket.ID)

	if resolved.Status != domain.TicketStatusResolved {
		t.Errorf("status %s", resolved.Status)
	}
	if resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(env.clock) {
		t.Errorf("resolved at %v, want %v", resolved.ResolvedAt, env.clock)
	}
	if resolved.SLADuration != "45 minutes" {
		t.Errorf("sla %q, want \"45 minutes\"", resolved.SLADuration)
	}
	last := resolved.Comments[len(resolved.Comments)-1]
	if last.Body != "fixed it" {
		t.Errorf("concluding comment %q", last.Body)
	}

	// Moving away from Resolved clears the resolution fields.
	back, err := env.svc.ChangeStatus(ctx, admin, ticket.ID, domain.TicketStatusInProgress, "")
	if err != nil {
		t.Fatalf("back to in progress: %v", err)
	}
	if back.ResolvedAt != nil || back.SLADuration != "" {
		t.Errorf("leaving Resolved must clear resolution fields: %+v", back)
	}
}

func TestReopenLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})

	if _, err := env.svc.ReopenTicket(ctx, ana, ticket.ID, "still broken"); !apperrors.IsConflict(err) {
		t.Errorf("reopen unresolved: got %v, want conflict", err)
	}

	env.resolve(t, ticket.ID)

	if _, err := env.svc.ReopenTicket(ctx, ana, ticket.ID, ""); !apperrors.IsValidation(err) {
		t.Errorf("reopen without reason: got %v, want validation error", err)
	}

	reopened, err := env.svc.ReopenTicket(ctx, ana, ticket.ID, "still broken")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != domain.TicketStatusOpen || reopened.ResolvedAt != nil || reopened.SLADuration != "" {
		t.Errorf("reopen must reset resolution state: %+v", reopened)
	}
	last := reopened.Comments[len(reopened.Comments)-1]
	if last.Body != "Reopened: still broken" {
		t.Errorf("reopen comment %q", last.Body)
	}
}

func TestRatedTicketIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})

	if _, err := env.svc.RateTicket(ctx, ana, ticket.ID, 4); !apperrors.IsConflict(err) {
		t.Errorf("rate unresolved: got %v, want conflict", err)
	}

	env.resolve(t, ticket.ID)

	if _, err := env.svc.RateTicket(ctx, ana, ticket.ID, 0); !apperrors.IsValidation(err) {
		t.Errorf("rating 0: got %v, want validation error", err)
	}
	if _, err := env.svc.RateTicket(ctx, ana, ticket.ID, 6); !apperrors.IsValidation(err) {
		t.Errorf("rating 6: got %v, want validation error", err)
	}

	rated, err := env.svc.RateTicket(ctx, ana, ticket.ID, 3)
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rated.Rating == nil || *rated.Rating != 3 {
		t.Errorf("rating %v, want 3", rated.Rating)
	}

	// Re-rating overwrites.
	rated, err = env.svc.RateTicket(ctx, ana, ticket.ID, 5)
	if err != nil {
		t.Fatalf("re-rate: %v", err)
	}
	if *rated.Rating != 5 {
		t.Errorf("rating %d after re-rate, want 5", *rated.Rating)
	}

	if _, err := env.svc.ReopenTicket(ctx, ana, ticket.ID, "changed my mind"); !apperrors.IsConflict(err) {
		t.Errorf("reopen rated: got %v, want conflict", err)
	}
	if _, err := env.svc.ChangeStatus(ctx, admin, ticket.ID, domain.TicketStatusOpen, ""); !apperrors.IsConflict(err) {
		t.Errorf("admin reopening rated: got %v, want conflict", err)
	}
}

func TestAssignTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})

	assigned, err := env.svc.AssignTicket(ctx, admin, ticket.ID, "Marcos")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.Assignee == nil || *assigned.Assignee != "Marcos" {
		t.Errorf("assignee %v", assigned.Assignee)
	}

	reassigned, err := env.svc.AssignTicket(ctx, admin, ticket.ID, "Paula")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if *reassigned.Assignee != "Paula" {
		t.Errorf("reassignment must overwrite, got %q", *reassigned.Assignee)
	}
}

func TestDeleteTicketIsUnconditional(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})
	if _, err := env.svc.AddComment(ctx, ana, ticket.ID, CommentInput{Body: "active thread"}); err != nil {
		t.Fatalf("comment: %v", err)
	}

	if err := env.svc.DeleteTicket(ctx, admin, ticket.ID); err != nil {
		t.Fatalf("delete open ticket with comments: %v", err)
	}
	if _, err := env.svc.GetTicket(ctx, admin, ticket.ID); !apperrors.IsNotFound(err) {
		t.Errorf("after delete: got %v, want not found", err)
	}
	if err := env.svc.DeleteTicket(ctx, admin, ticket.ID); !apperrors.IsNotFound(err) {
		t.Errorf("double delete: got %v, want not found", err)
	}

	types := env.recorder.types()
	if types[len(types)-1] != events.EventTicketDeleted {
		t.Errorf("last event %s, want ticket_deleted", types[len(types)-1])
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})

	if _, err := env.svc.AddComment(ctx, ana, ticket.ID, CommentInput{Body: "hello"}); err != nil {
		t.Fatalf("comment: %v", err)
	}
	env.resolve(t, ticket.ID)
	if _, err := env.svc.ReopenTicket(ctx, ana, ticket.ID, "not fixed"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	env.resolve(t, ticket.ID)
	if _, err := env.svc.RateTicket(ctx, ana, ticket.ID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}

	want := []events.EventType{
		events.EventTicketOpened,
		events.EventTicketCommented,
		events.EventTicketStatusChanged,
		events.EventTicketReopened,
		events.EventTicketStatusChanged,
		events.EventTicketRated,
	}
	got := env.recorder.types()
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d is %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFailingSubscriberDoesNotBreakLifecycle(t *testing.T) {
	env := newTestEnv(t)
	boom := func(context.Context, events.Event) error { return context.DeadlineExceeded }
	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range events.AllTypes() {
		dispatcher.Subscribe(eventType, boom)
	}
	env.svc.dispatcher = dispatcher

	ticket, err := env.svc.CreateTicket(context.Background(), ana, TicketCreateInput{
		RequesterName: "Ana Silva",
		Description:   "mail server flaky",
		Priority:      domain.TicketPriorityLow,
	})
	if err != nil {
		t.Fatalf("create with failing subscriber: %v", err)
	}
	if _, err := env.svc.GetTicket(context.Background(), ana, ticket.ID); err != nil {
		t.Fatalf("ticket must have persisted: %v", err)
	}
}

func TestEditDescription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.open(t, ana, TicketCreateInput{RequesterName: "Ana Silva"})

	if _, err := env.svc.EditDescription(ctx, bruno, ticket.ID, "hijack", domain.ContentTypePlain); !apperrors.IsForbidden(err) {
		t.Errorf("foreign edit: got %v, want forbidden", err)
	}

	edited, err := env.svc.EditDescription(ctx, ana, ticket.ID, "updated details", domain.ContentTypePlain)
	if err != nil {
		t.Fatalf("owner edit while open: %v", err)
	}
	if edited.Description != "updated details" {
		t.Errorf("description %q", edited.Description)
	}

	env.resolve(t, ticket.ID)
	if _, err := env.svc.EditDescription(ctx, ana, ticket.ID, "late edit", domain.ContentTypePlain); !apperrors.IsConflict(err) {
		t.Errorf("owner edit after resolve: got %v, want conflict", err)
	}
	if _, err := env.svc.EditDescription(ctx, admin, ticket.ID, "admin edit", domain.ContentTypePlain); err != nil {
		t.Errorf("admin edit after resolve: %v", err)
	}
}

func TestLookupService(t *testing.T) {
	ctx := context.Background()
	svc := NewLookupService(repository.NewMemoryLookupRepository(map[domain.LookupKind][]string{
		domain.LookupKindCategory: {"Hardware", "Software"},
	}))

	options, err := svc.List(ctx, domain.LookupKindCategory)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(options) != 2 {
		t.Fatalf("seeded options %d, want 2", len(options))
	}

	if _, err := svc.AddOption(ctx, ana, domain.LookupKindCategory, "Network"); !apperrors.IsForbidden(err) {
		t.Errorf("non-admin add: got %v, want forbidden", err)
	}
	if _, err := svc.AddOption(ctx, admin, domain.LookupKindCategory, "Network"); err != nil {
		t.Fatalf("admin add: %v", err)
	}
	if _, err := svc.AddOption(ctx, admin, domain.LookupKindCategory, "Network"); !apperrors.IsConflict(err) {
		t.Errorf("duplicate add: got %v, want conflict", err)
	}
	if _, err := svc.AddOption(ctx, admin, "TEAMS", "Infra"); !apperrors.IsValidation(err) {
		t.Errorf("unknown kind: got %v, want validation error", err)
	}

	options, err = svc.List(ctx, domain.LookupKindCategory)
	if err != nil {
		t.Fatalf("list after add: %v", err)
	}
	if len(options) != 3 {
		t.Errorf("options %d, want 3", len(options))
	}
}
