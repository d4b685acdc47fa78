package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/me/tutordesk/internal/logging"
	"github.com/me/tutordesk/pkg/model"
)

// storeFactories returns a fresh instance of every Store implementation.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			return NewFileStore(filepath.Join(t.TempDir(), "session.json"))
		},
		"sqlite": func() Store {
			return setupTestStore(t).Scope("browser-1")
		},
	}
}

func TestStore_SetGetClear(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			st := newStore()

			if _, ok, err := st.Get(ctx, model.KeyToken); err != nil || ok {
				t.Fatalf("Get on empty store = ok %v, err %v", ok, err)
			}

			for _, key := range model.SessionKeys {
				if err := st.Set(ctx, key, "v-"+key); err != nil {
					t.Fatalf("Set(%s): %v", key, err)
				}
			}
			if err := st.Set(ctx, model.KeyToken, "tok-2"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, ok, err := st.Get(ctx, model.KeyToken)
			if err != nil || !ok || got != "tok-2" {
				t.Fatalf("Get(token) = %q, %v, %v; want tok-2", got, ok, err)
			}

			// Clearing twice is a no-op, not an error.
			for i := 0; i < 2; i++ {
				if err := st.Clear(ctx); err != nil {
					t.Fatalf("Clear #%d: %v", i+1, err)
				}
			}
			for _, key := range model.SessionKeys {
				if _, ok, err := st.Get(ctx, key); err != nil || ok {
					t.Errorf("Get(%s) after Clear = ok %v, err %v", key, ok, err)
				}
			}
		})
	}
}

func TestLoadSave(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	sess := model.Session{Token: "abc", DisplayName: "Ali Valiyev", Role: model.RoleAdmin}
	if err := Save(ctx, st, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(ctx, st)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != sess {
		t.Errorf("Load = %+v, want %+v", got, sess)
	}
}

func TestLoad_UnknownRoleDropped(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	st.Set(ctx, model.KeyToken, "abc")
	st.Set(ctx, model.KeyRole, "superuser")

	got, err := Load(ctx, st)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Role != "" {
		t.Errorf("Role = %q, want empty", got.Role)
	}
}

func TestSave_SkipsEmptyFields(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	if err := Save(ctx, st, model.Session{Token: "abc"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if st.Len() != 1 {
		t.Errorf("Len = %d, want 1", st.Len())
	}
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	st := NewFileStore(path)
	if err := st.Set(context.Background(), model.KeyToken, "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	if err := NewFileStore(path).Set(ctx, model.KeyDisplayName, "Dilnoza"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := NewFileStore(path).Get(ctx, model.KeyDisplayName)
	if err != nil || !ok || got != "Dilnoza" {
		t.Errorf("Get after reopen = %q, %v, %v", got, ok, err)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	os.WriteFile(path, []byte("{not json"), 0o600)
	if _, _, err := NewFileStore(path).Get(context.Background(), model.KeyToken); err == nil {
		t.Error("expected error for corrupt session file")
	}
	// Clearing recovers from a corrupt file.
	if err := NewFileStore(path).Clear(context.Background()); err != nil {
		t.Errorf("Clear: %v", err)
	}
}

func TestSQLiteStore_ScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := setupTestStore(t)
	a, b := db.Scope("a"), db.Scope("b")

	a.Set(ctx, model.KeyToken, "tok-a")
	b.Set(ctx, model.KeyToken, "tok-b")

	if err := a.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := a.Get(ctx, model.KeyToken); ok {
		t.Error("scope a should be empty after Clear")
	}
	if got, ok, _ := b.Get(ctx, model.KeyToken); !ok || got != "tok-b" {
		t.Errorf("scope b = %q, %v; want tok-b", got, ok)
	}
	if exists, _ := db.Exists(ctx, "b"); !exists {
		t.Error("Exists(b) = false, want true")
	}
}

func TestSQLiteStore_Purge(t *testing.T) {
	ctx := context.Background()
	db := setupTestStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return base }
	db.Scope("old").Set(ctx, model.KeyToken, "stale")

	db.now = func() time.Time { return base.Add(48 * time.Hour) }
	db.Scope("fresh").Set(ctx, model.KeyToken, "live")

	n, err := db.Purge(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Errorf("Purge removed %d rows, want 1", n)
	}
	if exists, _ := db.Exists(ctx, "fresh"); !exists {
		t.Error("fresh namespace should survive purge")
	}
}

func TestSQLiteStore_TouchKeepsActiveSession(t *testing.T) {
	ctx := context.Background()
	db := setupTestStore(t)
	st := db.Scope("active")

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return base }
	st.Set(ctx, model.KeyToken, "live")

	// Read-only use a day later.
	db.now = func() time.Time { return base.Add(23 * time.Hour) }
	if err := db.Touch(ctx, "active"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if _, ok, _ := st.Get(ctx, model.KeyToken); !ok {
		t.Fatal("token missing before purge")
	}

	db.now = func() time.Time { return base.Add(25 * time.Hour) }
	n, err := db.Purge(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 0 {
		t.Errorf("Purge removed %d rows of a session in use", n)
	}
	if token, ok, _ := st.Get(ctx, model.KeyToken); !ok || token != "live" {
		t.Errorf("token = %q, %v after purge; want live", token, ok)
	}
}

func TestSQLiteStore_TouchUnknownNamespace(t *testing.T) {
	ctx := context.Background()
	db := setupTestStore(t)
	if err := db.Touch(ctx, "nobody"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if exists, _ := db.Exists(ctx, "nobody"); exists {
		t.Error("Touch must not create a namespace")
	}
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	db := setupTestStore(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return st
}
