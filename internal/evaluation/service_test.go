package evaluation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/coughcrowd/backend/internal/audio"
	"github.com/coughcrowd/backend/internal/ident"
	"github.com/coughcrowd/backend/internal/participants"
	"github.com/coughcrowd/backend/internal/responses"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&audio.Snippet{}, &participants.Participant{}, &Session{}, &responses.Response{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// noShuffle keeps candidates in query order (uploaded_at DESC) so tests can
// pin the assignment.
func noShuffle(int, func(i, j int)) {}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	ledger, err := responses.NewLedger(responses.LedgerConfig{
		Database:   db,
		IDProvider: ident.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to build ledger: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Ledger:   ledger,
		Shuffle:  noShuffle,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func seedSnippets(t *testing.T, db *gorm.DB, count int) []string {
	t.Helper()
	base := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("s-%02d", i)
		snippet := audio.Snippet{
			ID:           id,
			Filename:     id + ".mp3",
			OriginalName: id + ".mp3",
			MimeType:     "audio/mpeg",
			DurationMS:   4000,
			UploadedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&snippet).Error; err != nil {
			t.Fatalf("failed to seed snippet: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func seedParticipant(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	participant := participants.Participant{
		ID:        id,
		Token:     "tk" + id,
		CreatedAt: time.Date(2026, 7, 1, 7, 0, 0, 0, time.UTC),
	}
	if err := db.Create(&participant).Error; err != nil {
		t.Fatalf("failed to seed participant: %v", err)
	}
}

func TestGetOrCreateSessionIsIdempotent(t *testing.T) {
	db := openTestDB(t, "eval_idempotent")
	service := newTestService(t, db)
	seedSnippets(t, db, 7)
	seedParticipant(t, db, "p-1")

	first, err := service.GetOrCreateSession(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.GetOrCreateSession(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.SnippetIDsJSON != second.SnippetIDsJSON {
		t.Fatalf("assignment must not be re-sampled: %s vs %s", first.SnippetIDsJSON, second.SnippetIDsJSON)
	}
	if second.Position != 0 {
		t.Fatalf("refetch must not move the cursor, got %d", second.Position)
	}
}

func TestGetOrCreateSessionSamplesTargetSize(t *testing.T) {
	db := openTestDB(t, "eval_target_size")
	service := newTestService(t, db)
	seedSnippets(t, db, 9)
	seedParticipant(t, db, "p-1")

	session, err := service.GetOrCreateSession(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, err := session.SnippetIDs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != TargetAssignmentSize {
		t.Fatalf("expected %d assigned snippets, got %d", TargetAssignmentSize, len(ids))
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("assignment sampled %s twice", id)
		}
		seen[id] = true
	}
}

func TestGetOrCreateSessionShortensWhenFewSnippets(t *testing.T) {
	db := openTestDB(t, "eval_short")
	service := newTestService(t, db)
	seedSnippets(t, db, 2)
	seedParticipant(t, db, "p-1")

	session, err := service.GetOrCreateSession(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Length() != 2 {
		t.Fatalf("expected assignment of 2, got %d", session.Length())
	}
}

func TestGetOrCreateSessionFailsWithoutContent(t *testing.T) {
	db := openTestDB(t, "eval_no_content")
	service := newTestService(t, db)
	seedParticipant(t, db, "p-1")

	if _, err := service.GetOrCreateSession(context.Background(), "p-1"); !errors.Is(err, ErrNoContentAvailable) {
		t.Fatalf("expected ErrNoContentAvailable, got %v", err)
	}

	var count int64
	if err := db.Model(&Session{}).Count(&count).Error; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed creation must not persist a session, found %d rows", count)
	}
}

func TestGetOrCreateSessionUnknownParticipant(t *testing.T) {
	db := openTestDB(t, "eval_no_participant")
	service := newTestService(t, db)
	seedSnippets(t, db, 3)

	if _, err := service.GetOrCreateSession(context.Background(), "ghost"); !errors.Is(err, participants.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestSubmitResponseAdvancesAndCompletes(t *testing.T) {
	db := openTestDB(t, "eval_complete")
	service := newTestService(t, db)
	seedSnippets(t, db, 3)
	seedParticipant(t, db, "p-1")

	session, err := service.GetOrCreateSession(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assigned, err := session.SnippetIDs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, snippetID := range assigned {
		current, err := service.CurrentSnippet(context.Background(), session)
		if err != nil {
			t.Fatalf("position %d: unexpected error: %v", i, err)
		}
		if current.ID != snippetID {
			t.Fatalf("position %d: expected %s under cursor, got %s", i, snippetID, current.ID)
		}

		result, err := service.SubmitResponse(context.Background(), "p-1", snippetID, responses.SelectionCough)
		if err != nil {
			t.Fatalf("position %d: unexpected error: %v", i, err)
		}
		if result.Session.Position != i+1 {
			t.Fatalf("position %d: cursor should be %d, got %d", i, i+1, result.Session.Position)
		}
		wantCompleted := i == len(assigned)-1
		if result.SessionCompleted != wantCompleted {
			t.Fatalf("position %d: completed = %v, want %v", i, result.SessionCompleted, wantCompleted)
		}
		session = result.Session
	}

	if _, err := service.CurrentSnippet(context.Background(), session); !errors.Is(err, ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted after finishing, got %v", err)
	}
	if _, err := service.SubmitResponse(context.Background(), "p-1", assigned[0], responses.SelectionOther); !errors.Is(err, ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted on extra submit, got %v", err)
	}
}

func TestSubmitResponseDuplicateLeavesStateIntact(t *testing.T) {
	db := openTestDB(t, "eval_duplicate")
	service := newTestService(t, db)
	seedSnippets(t, db, 3)
	seedParticipant(t, db, "p-1")

	session, err := service.GetOrCreateSession(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assigned, err := session.SnippetIDs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := service.SubmitResponse(context.Background(), "p-1", assigned[0], responses.SelectionCough); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.SubmitResponse(context.Background(), "p-1", assigned[0], responses.SelectionOther); !errors.Is(err, responses.ErrDuplicateResponse) {
		t.Fatalf("expected ErrDuplicateResponse, got %v", err)
	}

	refetched, err := service.GetSession(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refetched.Position != 1 {
		t.Fatalf("rejected submit must not move the cursor, got %d", refetched.Position)
	}
	var count int64
	if err := db.Model(&responses.Response{}).Count(&count).Error; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("rejected submit must not append, found %d rows", count)
	}
}

func TestSubmitResponseRejectsUnassignedSnippet(t *testing.T) {
	db := openTestDB(t, "eval_unassigned")
	service := newTestService(t, db)
	seedSnippets(t, db, 7)
	seedParticipant(t, db, "p-1")

	session, err := service.GetOrCreateSession(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assigned, err := session.SnippetIDs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Skipping ahead to the second assigned snippet is rejected too.
	if _, err := service.SubmitResponse(context.Background(), "p-1", assigned[1], responses.SelectionCough); !errors.Is(err, ErrSnippetNotAssigned) {
		t.Fatalf("expected ErrSnippetNotAssigned, got %v", err)
	}

	// With 7 snippets and 5 assigned slots there are snippets outside the
	// assignment; the no-op shuffle assigns the newest five, so the oldest
	// snippet s-00 is unassigned.
	if _, err := service.SubmitResponse(context.Background(), "p-1", "s-00", responses.SelectionCough); !errors.Is(err, ErrSnippetNotAssigned) {
		t.Fatalf("expected ErrSnippetNotAssigned, got %v", err)
	}
}

func TestSubmitResponseMissingPreconditions(t *testing.T) {
	db := openTestDB(t, "eval_preconditions")
	service := newTestService(t, db)
	seedSnippets(t, db, 2)
	seedParticipant(t, db, "p-1")

	if _, err := service.SubmitResponse(context.Background(), "p-1", "s-00", responses.SelectionCough); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound before first fetch, got %v", err)
	}

	if _, err := service.GetOrCreateSession(context.Background(), "p-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.SubmitResponse(context.Background(), "p-1", "ghost", responses.SelectionCough); !errors.Is(err, audio.ErrSnippetNotFound) {
		t.Fatalf("expected ErrSnippetNotFound, got %v", err)
	}
}

func TestCurrentSnippetSurfacesDanglingReference(t *testing.T) {
	db := openTestDB(t, "eval_dangling")
	service := newTestService(t, db)
	seedSnippets(t, db, 2)
	seedParticipant(t, db, "p-1")

	session, err := service.GetOrCreateSession(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assigned, err := session.SnippetIDs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := db.Where("id = ?", assigned[0]).Delete(&audio.Snippet{}).Error; err != nil {
		t.Fatalf("failed to delete snippet: %v", err)
	}

	if _, err := service.CurrentSnippet(context.Background(), session); !errors.Is(err, ErrDanglingSnippet) {
		t.Fatalf("expected ErrDanglingSnippet, got %v", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	db := openTestDB(t, "eval_get_missing")
	service := newTestService(t, db)

	if _, err := service.GetSession(context.Background(), "nobody"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
