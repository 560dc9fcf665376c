package lesson

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pot-code/samba-client/internal/infrastructure/driver"
	"github.com/pot-code/samba-client/internal/infrastructure/uuid"
)

func newSQLCatalog(t *testing.T) (*SQLCatalog, *SQLFavoriteMirror) {
	t.Helper()
	ctx := context.Background()
	conn, err := driver.GetDBConnection(&driver.DBConfig{
		Driver: driver.DriverSQLite,
		Host:   "file:" + filepath.Join(t.TempDir(), "catalog.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close(ctx) })
	if err := Migrate(ctx, conn); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewSQLCatalog(conn, uuid.NewNanoIDGenerator(12)), NewSQLFavoriteMirror(conn)
}

func TestSQLCatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	cat, _ := newSQLCatalog(t)

	in := Item{
		Category: Expert, Title: "Gafieira", Subtitle: "pairs", Description: "long",
		MediaPath: "/data/videos/g.mp4", ScheduledTime: "Mon 20:00", Registered: 3, Capacity: 12,
		IconID: "expert_icon_image", IsPast: true, CreatorID: "alice",
	}
	id, err := cat.Add(ctx, in.Fields())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(id) != 12 {
		t.Errorf("id = %q, want 12 chars", id)
	}

	docs, err := cat.Query(ctx, FieldLevel, string(Expert))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Query returned %d docs", len(docs))
	}
	got := FromDocument(docs[0])
	in.ID = id
	if got != in {
		t.Errorf("round trip:\n got %+v\nwant %+v", got, in)
	}

	if docs, _ := cat.Query(ctx, FieldLevel, string(Beginner)); len(docs) != 0 {
		t.Errorf("beginner query returned %d docs", len(docs))
	}
}

func TestSQLCatalogUpdate(t *testing.T) {
	ctx := context.Background()
	cat, _ := newSQLCatalog(t)
	id, _ := cat.Add(ctx, Fields{FieldLevel: "Beginner", FieldTitle: "Old", FieldTime: "18:00"})

	if err := cat.Update(ctx, id, Fields{FieldTitle: "New", FieldMaxParticipants: 8}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	// same values again, still a success
	if err := cat.Update(ctx, id, Fields{FieldTitle: "New"}); err != nil {
		t.Fatalf("no-op Update: %v", err)
	}
	docs, _ := cat.Query(ctx, FieldLevel, "Beginner")
	got := FromDocument(docs[0])
	if got.Title != "New" || got.Capacity != 8 || got.ScheduledTime != "18:00" {
		t.Errorf("after update = %+v", got)
	}

	if err := cat.Update(ctx, "missing", Fields{FieldTitle: "x"}); err != ErrDocumentNotFound {
		t.Errorf("missing Update err = %v", err)
	}
	if err := cat.Update(ctx, id, Fields{"title; DROP TABLE lessons": "x"}); !errors.Is(err, ErrUnsupportedField) {
		t.Errorf("bad field err = %v", err)
	}
}

func TestSQLCatalogDelete(t *testing.T) {
	ctx := context.Background()
	cat, _ := newSQLCatalog(t)
	id, _ := cat.Add(ctx, Fields{FieldLevel: "Beginner", FieldTitle: "x"})

	if err := cat.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := cat.Delete(ctx, id); err != ErrDocumentNotFound {
		t.Errorf("second Delete err = %v, want ErrDocumentNotFound", err)
	}
}

func TestSQLCatalogRejectsUnknownQueryField(t *testing.T) {
	cat, _ := newSQLCatalog(t)
	if _, err := cat.Query(context.Background(), "1=1 OR level", "x"); !errors.Is(err, ErrUnsupportedField) {
		t.Errorf("err = %v", err)
	}
}

func TestSQLFavoriteMirror(t *testing.T) {
	ctx := context.Background()
	_, mirror := newSQLCatalog(t)

	for i := 0; i < 2; i++ {
		if err := mirror.SetFavorite(ctx, "alice", "L1", true); err != nil {
			t.Fatalf("SetFavorite: %v", err)
		}
	}
	mirror.SetFavorite(ctx, "alice", "L2", true)
	mirror.SetFavorite(ctx, "bob", "L3", true)
	mirror.SetFavorite(ctx, "alice", "L2", false)

	ids, err := mirror.Favorites(ctx, "alice")
	if err != nil {
		t.Fatalf("Favorites: %v", err)
	}
	if len(ids) != 1 || ids[0] != "L1" {
		t.Errorf("alice favorites = %v, want [L1]", ids)
	}
}
