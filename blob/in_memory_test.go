package blob

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentmem/core"
)

// Interface compliance (compile-time assertion)
var _ core.BlobStore = (*InMemoryStore)(nil)

func TestInMemoryStore_WriteRead(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	ref, err := store.Write(ctx, []byte("hello"), core.WriteOptions{Retention: 1})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := store.Read(ctx, ref)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(data, []byte("hello")) {
		t.Fatalf("unexpected content: %q", data)
	}

	// mutation safety (returned slice is a copy)
	data[0] = 'X'
	again, _ := store.Read(ctx, ref)
	if !bytes.Equal(again, []byte("hello")) {
		t.Fatalf("expected copy isolation, got %q", again)
	}
}

func TestInMemoryStore_ContentAddressed(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	a, _ := store.Write(ctx, []byte("same"), core.WriteOptions{})
	b, _ := store.Write(ctx, []byte("same"), core.WriteOptions{})
	c, _ := store.Write(ctx, []byte("different"), core.WriteOptions{})

	if a != b {
		t.Fatalf("identical content must yield identical refs: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("distinct content must yield distinct refs")
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	ref, _ := store.Write(ctx, []byte("ephemeral"), core.WriteOptions{Deletable: true})
	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Read(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for double delete, got %v", err)
	}
}

func TestInMemoryStore_Containers(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	parts := []core.Part{
		{Identifier: "chapter-1", Tags: map[string]string{"topic": "origins"}, Contents: []byte("part one")},
		{Identifier: "chapter-2", Contents: []byte("part two")},
	}

	ref, err := store.WriteContainer(ctx, parts, core.WriteOptions{})
	if err != nil {
		t.Fatalf("write container failed: %v", err)
	}

	// container refs are not readable as plain blobs
	if _, err := store.Read(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound reading container as blob, got %v", err)
	}

	infos, err := store.ListParts(ctx, ref)
	if err != nil {
		t.Fatalf("list parts failed: %v", err)
	}
	if len(infos) != 2 || infos[0].Identifier != "chapter-1" {
		t.Fatalf("unexpected part infos: %#v", infos)
	}

	part, err := store.ReadPart(ctx, infos[0].PartID)
	if err != nil {
		t.Fatalf("read part failed: %v", err)
	}
	if string(part.Contents) != "part one" || part.Tags["topic"] != "origins" {
		t.Fatalf("unexpected part: %#v", part)
	}
}

func TestInMemoryStore_ListPartsOnBlob(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	ref, _ := store.Write(ctx, []byte("plain"), core.WriteOptions{})
	if _, err := store.ListParts(ctx, ref); !errors.Is(err, ErrNotContainer) {
		t.Fatalf("expected ErrNotContainer, got %v", err)
	}
}
