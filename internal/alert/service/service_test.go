package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"indicator-reporting/backend/internal/alert/domain"
	"indicator-reporting/backend/internal/alert/repository"
	"indicator-reporting/backend/internal/identity"
)

type memAlertRepo struct {
	mu sync.Mutex
	m  map[string]*domain.Alert
	// steward/indicator pairs backing the filter's assignment grant,
	// matching the assignments subquery in the SQL repository.
	assigned map[[2]string]bool
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{m: make(map[string]*domain.Alert)}
}

// matches applies the filter the way the SQL repository does: a steward filter
// grants direct address, assignment to the alert's indicator, or system-wide.
func (r *memAlertRepo) matches(a *domain.Alert, f repository.Filter) bool {
	if f.StewardID != "" {
		granted := a.StewardID == f.StewardID ||
			(a.IndicatorID != "" && r.assigned[[2]string{f.StewardID, a.IndicatorID}]) ||
			(a.IndicatorID == "" && a.StewardID == "")
		if !granted {
			return false
		}
	}
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	return true
}

func (r *memAlertRepo) Create(ctx context.Context, a *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a2 := *a
	r.m[a.ID] = &a2
	return nil
}

func (r *memAlertRepo) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id], nil
}

func (r *memAlertRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.m[id]; ok && a.State == domain.StateNew {
		a.State = domain.StateRead
		a.ReadAt = &at
	}
	return nil
}

func (r *memAlertRepo) MarkAllReadFor(ctx context.Context, f repository.Filter, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.m {
		if !r.matches(a, f) {
			continue
		}
		if a.State == domain.StateNew {
			a.State = domain.StateRead
			a.ReadAt = &at
		}
	}
	return nil
}

func (r *memAlertRepo) List(ctx context.Context, f repository.Filter, limit, offset int) ([]*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Alert
	for _, a := range r.m {
		if !r.matches(a, f) {
			continue
		}
		if f.UnreadOnly && a.State != domain.StateNew {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *memAlertRepo) CountUnread(ctx context.Context, f repository.Filter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.m {
		if r.matches(a, f) && a.State == domain.StateNew {
			n++
		}
	}
	return n, nil
}

func (r *memAlertRepo) ExistsTitledOn(ctx context.Context, kind domain.Kind, title string, day time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	y, m, d := day.UTC().Date()
	for _, a := range r.m {
		ay, am, ad := a.CreatedAt.UTC().Date()
		if a.Kind == kind && a.Title == title && ay == y && am == m && ad == d {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAlertRepo) ExistsForIndicatorSince(ctx context.Context, kind domain.Kind, indicatorID string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.m {
		if a.Kind == kind && a.IndicatorID == indicatorID && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type memAssignments struct {
	pairs map[[2]string]bool
}

func (a *memAssignments) Exists(ctx context.Context, stewardID, indicatorID string) (bool, error) {
	return a.pairs[[2]string{stewardID, indicatorID}], nil
}

type captureNotifier struct {
	mu     sync.Mutex
	alerts []*domain.Alert
	done   chan struct{}
}

func (n *captureNotifier) Notify(ctx context.Context, a *domain.Alert) error {
	n.mu.Lock()
	n.alerts = append(n.alerts, a)
	n.mu.Unlock()
	if n.done != nil {
		close(n.done)
	}
	return nil
}

func (n *captureNotifier) Close() error { return nil }

var (
	admin   = identity.Principal{ID: "admin-1", Role: identity.RoleAdministrator}
	steward = identity.Principal{ID: "steward-1", Role: identity.RoleSteward}
)

func TestCreatePersistsAndNotifies(t *testing.T) {
	repo := newMemAlertRepo()
	notify := &captureNotifier{done: make(chan struct{})}
	svc := NewService(repo, &memAssignments{}, notify)

	a, err := svc.Create(context.Background(), CreateParams{
		Kind:        domain.KindSystem,
		Title:       "test alert",
		Description: "something happened",
		CreatedAt:   time.Date(2025, time.June, 6, 2, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == "" {
		t.Error("alert should get an ID")
	}
	if a.State != domain.StateNew {
		t.Errorf("state = %q, want %q", a.State, domain.StateNew)
	}
	if repo.m[a.ID] == nil {
		t.Error("alert not persisted")
	}

	select {
	case <-notify.done:
	case <-time.After(time.Second):
		t.Fatal("notifier was not invoked")
	}
	notify.mu.Lock()
	defer notify.mu.Unlock()
	if len(notify.alerts) != 1 || notify.alerts[0].ID != a.ID {
		t.Errorf("notified alerts = %v, want the created alert", notify.alerts)
	}
}

func TestCreateWorksWithoutNotifier(t *testing.T) {
	svc := NewService(newMemAlertRepo(), &memAssignments{}, nil)

	if _, err := svc.Create(context.Background(), CreateParams{
		Kind: domain.KindSystem, Title: "t", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Create without notifier: %v", err)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	repo := newMemAlertRepo()
	svc := NewService(repo, &memAssignments{}, nil)

	a, err := svc.Create(context.Background(), CreateParams{
		Kind: domain.KindSystem, Title: "t", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first := time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC)
	if err := svc.MarkRead(context.Background(), admin, a.ID, first); err != nil {
		t.Fatalf("first MarkRead: %v", err)
	}
	stored := repo.m[a.ID]
	if stored.State != domain.StateRead || stored.ReadAt == nil {
		t.Fatalf("alert not marked read: %+v", stored)
	}

	// A second flip must not move ReadAt.
	if err := svc.MarkRead(context.Background(), admin, a.ID, first.Add(time.Hour)); err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if !stored.ReadAt.Equal(first) {
		t.Errorf("ReadAt = %v, want %v", stored.ReadAt, first)
	}
}

func TestMarkReadUnknownAlert(t *testing.T) {
	svc := NewService(newMemAlertRepo(), &memAssignments{}, nil)

	err := svc.MarkRead(context.Background(), admin, "no-such-id", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMarkReadVisibility(t *testing.T) {
	repo := newMemAlertRepo()
	assignments := &memAssignments{pairs: map[[2]string]bool{
		{"steward-1", "ind-assigned"}: true,
	}}
	svc := NewService(repo, assignments, nil)

	mk := func(indicatorID, stewardID string) string {
		t.Helper()
		a, err := svc.Create(context.Background(), CreateParams{
			Kind: domain.KindAnomaly, IndicatorID: indicatorID, StewardID: stewardID,
			Title: "t", CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return a.ID
	}

	own := mk("ind-assigned", "steward-1")
	other := mk("ind-other", "steward-2")
	shared := mk("ind-assigned", "steward-2")
	assigned := mk("ind-assigned", "")
	unassigned := mk("ind-other", "")
	system := mk("", "")

	cases := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"own alert", own, false},
		{"another steward's alert", other, true},
		{"another steward's alert on an assigned indicator", shared, false},
		{"assigned indicator alert", assigned, false},
		{"unassigned indicator alert", unassigned, true},
		{"system-wide alert", system, false},
	}
	for _, tc := range cases {
		err := svc.MarkRead(context.Background(), steward, tc.id, time.Now())
		if tc.wantErr && !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", tc.name, err)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: err = %v, want nil", tc.name, err)
		}
	}

	// The administrator can read all of them.
	for _, tc := range cases {
		if err := svc.MarkRead(context.Background(), admin, tc.id, time.Now()); err != nil {
			t.Errorf("admin %s: err = %v, want nil", tc.name, err)
		}
	}
}

func TestListedAlertIsAlsoMarkable(t *testing.T) {
	// An anomaly alert addressed to one steward but raised on an indicator
	// both stewards are assigned to is listed for the other steward, so that
	// steward must also be able to mark it read.
	grants := map[[2]string]bool{{"steward-1", "ind-shared"}: true}
	repo := newMemAlertRepo()
	repo.assigned = grants
	svc := NewService(repo, &memAssignments{pairs: grants}, nil)

	a, err := svc.Create(context.Background(), CreateParams{
		Kind: domain.KindAnomaly, IndicatorID: "ind-shared", StewardID: "steward-2",
		Title: "atypical value detected", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	alerts, unread, err := svc.List(context.Background(), steward, false, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != a.ID || unread != 1 {
		t.Fatalf("List = %d alerts, %d unread; want the shared-indicator alert", len(alerts), unread)
	}

	if err := svc.MarkRead(context.Background(), steward, a.ID, time.Now()); err != nil {
		t.Fatalf("MarkRead of a listed alert: %v", err)
	}
	if repo.m[a.ID].State != domain.StateRead {
		t.Errorf("state = %q, want %q", repo.m[a.ID].State, domain.StateRead)
	}
}

func TestListReturnsUnreadCount(t *testing.T) {
	repo := newMemAlertRepo()
	svc := NewService(repo, &memAssignments{}, nil)

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), CreateParams{
			Kind: domain.KindSystem, Title: "t", CreatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	alerts, unread, err := svc.List(context.Background(), admin, false, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(alerts) != 3 || unread != 3 {
		t.Errorf("List = %d alerts, %d unread; want 3 and 3", len(alerts), unread)
	}

	if err := svc.MarkAllRead(context.Background(), admin, time.Now()); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	_, unread, err = svc.List(context.Background(), admin, false, 10, 0)
	if err != nil {
		t.Fatalf("List after MarkAllRead: %v", err)
	}
	if unread != 0 {
		t.Errorf("unread = %d, want 0", unread)
	}
}
