package user

import (
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/ndassist/internal/model"
)

func testStore() *Store {
	return NewStore(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func testProfile() Profile {
	return Profile{
		GoogleID:      "google-123",
		Email:         "ana@example.com",
		Name:          "Ana García",
		Picture:       "https://example.com/ana.png",
		EmailVerified: true,
		Locale:        "es",
	}
}

func TestUpsertCreatesNewUser(t *testing.T) {
	s := testStore()

	u := s.Upsert(testProfile())

	if u.ID == "" {
		t.Fatal("Upsert() returned empty ID")
	}
	if u.Role != "user" {
		t.Errorf("Role = %q, want %q", u.Role, "user")
	}
	if u.LoginCount != 1 {
		t.Errorf("LoginCount = %d, want 1", u.LoginCount)
	}
	if !u.IsActive {
		t.Error("IsActive = false, want true")
	}
	if u.Picture != "https://example.com/ana.png" {
		t.Errorf("Picture = %q, want picture URL", u.Picture)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestUpsertExistingUserIncrementsLogin(t *testing.T) {
	s := testStore()

	first := s.Upsert(testProfile())

	profile := testProfile()
	profile.Name = "Ana G. López"
	second := s.Upsert(profile)

	if second.ID != first.ID {
		t.Errorf("Upsert() created new user: %q != %q", second.ID, first.ID)
	}
	if second.LoginCount != 2 {
		t.Errorf("LoginCount = %d, want 2", second.LoginCount)
	}
	if second.Name != "Ana G. López" {
		t.Errorf("Name = %q, want updated name", second.Name)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestFindByID(t *testing.T) {
	s := testStore()
	created := s.Upsert(testProfile())

	found := s.FindByID(created.ID)
	if found == nil {
		t.Fatal("FindByID() = nil, want user")
	}
	if found.Email != "ana@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "ana@example.com")
	}

	if s.FindByID("missing") != nil {
		t.Error("FindByID(missing) != nil, want nil")
	}
}

func TestFindByIDReturnsCopy(t *testing.T) {
	s := testStore()
	created := s.Upsert(testProfile())

	found := s.FindByID(created.ID)
	found.Role = "admin"

	if s.FindByID(created.ID).Role != "user" {
		t.Error("mutation of returned user leaked into store")
	}
}

func TestUpdateProfile(t *testing.T) {
	s := testStore()
	created := s.Upsert(testProfile())

	updated, err := s.UpdateProfile(created.ID, model.UserTypeTherapist, "")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.UserType != model.UserTypeTherapist {
		t.Errorf("UserType = %q, want %q", updated.UserType, model.UserTypeTherapist)
	}

	if _, err := s.UpdateProfile("missing", model.UserTypeTeacher, ""); err == nil {
		t.Error("UpdateProfile(missing) error = nil, want USER_NOT_FOUND")
	}
}

func TestSetRole(t *testing.T) {
	s := testStore()
	created := s.Upsert(testProfile())

	updated, err := s.SetRole(created.ID, "admin")
	if err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	if updated.Role != "admin" {
		t.Errorf("Role = %q, want %q", updated.Role, "admin")
	}
}

func TestDeactivate(t *testing.T) {
	s := testStore()
	created := s.Upsert(testProfile())

	if err := s.Deactivate(created.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if s.FindByID(created.ID).IsActive {
		t.Error("IsActive = true after Deactivate")
	}
	// レコード自体は残る
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}

	if err := s.Deactivate("missing"); err == nil {
		t.Error("Deactivate(missing) error = nil, want USER_NOT_FOUND")
	}
}

func TestListSortedByCreation(t *testing.T) {
	s := testStore()
	first := s.Upsert(testProfile())
	other := testProfile()
	other.GoogleID = "google-456"
	other.Email = "luis@example.com"
	second := s.Upsert(other)

	users := s.List()
	if len(users) != 2 {
		t.Fatalf("List() returned %d users, want 2", len(users))
	}
	if users[0].ID != first.ID || users[1].ID != second.ID {
		t.Error("List() not sorted by creation time")
	}
}

func TestRecordActivity(t *testing.T) {
	s := testStore()
	created := s.Upsert(testProfile())

	s.RecordActivity(created.ID, "plan_generated", map[string]any{"menuOption": "adapt"})
	s.RecordActivity(created.ID, "plan_exported", nil)

	entries := s.ActivityFor(created.ID)
	if len(entries) != 2 {
		t.Fatalf("ActivityFor() returned %d entries, want 2", len(entries))
	}
	if entries[0].Action != "plan_generated" {
		t.Errorf("entries[0].Action = %q, want %q", entries[0].Action, "plan_generated")
	}

	// 未知ユーザーの記録は無視される
	s.RecordActivity("missing", "x", nil)
	if len(s.ActivityFor("missing")) != 0 {
		t.Error("activity recorded for unknown user")
	}
}

func TestRecordActivityBounded(t *testing.T) {
	s := testStore()
	created := s.Upsert(testProfile())

	for i := 0; i < maxActivityEntries+10; i++ {
		s.RecordActivity(created.ID, "plan_generated", nil)
	}
	if got := len(s.ActivityFor(created.ID)); got != maxActivityEntries {
		t.Errorf("ActivityFor() returned %d entries, want %d", got, maxActivityEntries)
	}
}
