package participants

import (
	"context"
	"errors"
	"testing"

	"github.com/coughcrowd/backend/internal/ident"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Participant{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestRegistry(t *testing.T, db *gorm.DB, tokenFunc func() (string, error)) *Registry {
	t.Helper()
	registry, err := NewRegistry(RegistryConfig{
		Database:   db,
		IDProvider: ident.NewUUIDProvider(),
		TokenFunc:  tokenFunc,
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return registry
}

func TestCreateBatchValidatesCount(t *testing.T) {
	db := openTestDB(t, "participants_batch_bounds")
	registry := newTestRegistry(t, db, nil)

	for _, count := range []int{-5, 0, 101} {
		if _, err := registry.CreateBatch(context.Background(), count, ""); !errors.Is(err, ErrInvalidBatchCount) {
			t.Fatalf("count %d: expected ErrInvalidBatchCount, got %v", count, err)
		}
	}

	var stored int64
	if err := db.Model(&Participant{}).Count(&stored).Error; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 0 {
		t.Fatalf("rejected batches must not create rows, found %d", stored)
	}
}

func TestCreateBatchCreatesDistinctTokens(t *testing.T) {
	db := openTestDB(t, "participants_batch_full")
	registry := newTestRegistry(t, db, nil)

	created, err := registry.CreateBatch(context.Background(), 100, "hall-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 100 {
		t.Fatalf("expected 100 participants, got %d", len(created))
	}

	seen := make(map[string]bool, len(created))
	for _, participant := range created {
		if len(participant.Token) != tokenLength {
			t.Fatalf("unexpected token length: %q", participant.Token)
		}
		if seen[participant.Token] {
			t.Fatalf("duplicate token issued: %s", participant.Token)
		}
		seen[participant.Token] = true
		if participant.Label != "hall-b" {
			t.Fatalf("unexpected label: %q", participant.Label)
		}
	}
}

func TestCreateRetriesOnTokenCollision(t *testing.T) {
	db := openTestDB(t, "participants_collision")
	tokens := []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}
	calls := 0
	registry := newTestRegistry(t, db, func() (string, error) {
		token := tokens[calls]
		calls++
		return token, nil
	})

	first, err := registry.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Token != "AAAAAAAA" {
		t.Fatalf("unexpected first token: %s", first.Token)
	}

	second, err := registry.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Token != "BBBBBBBB" {
		t.Fatalf("expected retry to land on fresh token, got %s", second.Token)
	}
}

func TestCreateFailsWhenTokensExhausted(t *testing.T) {
	db := openTestDB(t, "participants_exhausted")
	registry := newTestRegistry(t, db, func() (string, error) {
		return "SAMETOKN", nil
	})

	if _, err := registry.Create(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := registry.Create(context.Background(), ""); !errors.Is(err, ErrTokenExhausted) {
		t.Fatalf("expected ErrTokenExhausted, got %v", err)
	}
}

func TestGetByTokenAndID(t *testing.T) {
	db := openTestDB(t, "participants_lookup")
	registry := newTestRegistry(t, db, nil)

	created, err := registry.Create(context.Background(), "demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byToken, err := registry.GetByToken(context.Background(), created.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byToken.ID != created.ID {
		t.Fatalf("token lookup returned wrong participant")
	}

	byID, err := registry.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byID.Token != created.Token {
		t.Fatalf("id lookup returned wrong participant")
	}

	if _, err := registry.GetByToken(context.Background(), "nosuchtk"); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
	if _, err := registry.GetByID(context.Background(), "no-such-id"); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}
