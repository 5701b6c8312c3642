package memory

import (
	"context"
	"testing"

	"orderdesk/pkg/order"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := New()
	o := order.Order{ID: "1", CustomerName: "Amira"}
	if err := repo.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.Get(ctx, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CustomerName != "Amira" {
		t.Fatalf("expected Amira, got %s", got.CustomerName)
	}
	if err := repo.Create(ctx, order.Order{ID: "2"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err := repo.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
	if list[0].ID != "1" || list[1].ID != "2" {
		t.Fatalf("expected creation order, got %s,%s", list[0].ID, list[1].ID)
	}
	if err := repo.Delete(ctx, "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "1"); err != order.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, "1"); err != order.ErrNotFound {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRepositoryItems(t *testing.T) {
	ctx := context.Background()
	repo := New()
	if err := repo.Create(ctx, order.Order{ID: "o1"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	o, err := repo.AddItem(ctx, "o1", order.Item{ID: "i1", Price: 10, Weight: 0.5, Pieces: 20})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(o.Items) != 1 || o.TotalPrice != 10 {
		t.Fatalf("unexpected order after add: %+v", o)
	}

	o, err = repo.AddItem(ctx, "o1", order.Item{ID: "i2", Price: 5})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if o.TotalPrice != 15 {
		t.Fatalf("expected total 15, got %v", o.TotalPrice)
	}

	o, err = repo.DeleteItem(ctx, "o1", "i1")
	if err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if o.HasItem("i1") || o.TotalPrice != 5 {
		t.Fatalf("unexpected order after delete: %+v", o)
	}

	if _, err := repo.DeleteItem(ctx, "o1", "i1"); err != order.ErrItemNotFound {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if _, err := repo.AddItem(ctx, "missing", order.Item{ID: "x"}); err != order.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := New()
	_ = repo.Create(ctx, order.Order{ID: "o1", Items: []order.Item{{ID: "i1"}}})

	got, _ := repo.Get(ctx, "o1")
	got.Items[0].ID = "mutated"

	again, _ := repo.Get(ctx, "o1")
	if again.Items[0].ID != "i1" {
		t.Fatalf("repository leaked internal slice")
	}
}
