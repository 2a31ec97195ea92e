package store

import (
	"encoding/json"
	"testing"

	"github.com/ketzcommerce/storevoice/pkg/catalog"
	"github.com/ketzcommerce/storevoice/pkg/realtime/protocol"
)

func TestMemoryLog_AppendOrder(t *testing.T) {
	t.Parallel()

	log := NewMemoryLog()
	log.Append(protocol.RoleUser, "do you have torque wrenches?")
	log.Append(protocol.RoleAssistant, "We carry three models.")

	msgs := log.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != protocol.RoleUser || msgs[0].Content != "do you have torque wrenches?" {
		t.Fatalf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != protocol.RoleAssistant {
		t.Fatalf("second message role = %q, want assistant", msgs[1].Role)
	}
	if msgs[0].ID == "" || msgs[0].ID == msgs[1].ID {
		t.Fatalf("message IDs not unique: %q vs %q", msgs[0].ID, msgs[1].ID)
	}
}

func TestMemoryProducts_ReplaceOverwrites(t *testing.T) {
	t.Parallel()

	products := NewMemoryProducts()
	products.Replace("search_products", []catalog.Product{{ID: "p1", Name: "Drill"}, {ID: "p2", Name: "Saw"}})
	products.Replace("search_products", []catalog.Product{{ID: "p3", Name: "Hammer"}})

	tool, got := products.Current()
	if tool != "search_products" {
		t.Fatalf("tool = %q", tool)
	}
	if len(got) != 1 || got[0].ID != "p3" {
		t.Fatalf("got %+v, want only p3", got)
	}
}

func TestMemoryCart_AddAccumulatesQuantity(t *testing.T) {
	t.Parallel()

	cart := NewMemoryCart()
	add := json.RawMessage(`{"product_id":"p1","name":"Drill","quantity":2}`)
	if err := cart.Apply(protocol.CartActionAdd, add); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := cart.Apply(protocol.CartActionAdd, add); err != nil {
		t.Fatalf("second add: %v", err)
	}

	items := cart.Items()
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Quantity != 4 {
		t.Fatalf("quantity = %d, want 4", items[0].Quantity)
	}
}

func TestMemoryCart_AddDefaultsQuantity(t *testing.T) {
	t.Parallel()

	cart := NewMemoryCart()
	if err := cart.Apply(protocol.CartActionAdd, json.RawMessage(`{"product_id":"p1","name":"Drill"}`)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if items := cart.Items(); items[0].Quantity != 1 {
		t.Fatalf("quantity = %d, want 1", items[0].Quantity)
	}
}

func TestMemoryCart_RemoveAndClear(t *testing.T) {
	t.Parallel()

	cart := NewMemoryCart()
	cart.Apply(protocol.CartActionAdd, json.RawMessage(`{"product_id":"p1","name":"Drill"}`))
	cart.Apply(protocol.CartActionAdd, json.RawMessage(`{"product_id":"p2","name":"Saw"}`))

	if err := cart.Apply(protocol.CartActionRemove, json.RawMessage(`{"product_id":"p1"}`)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if items := cart.Items(); len(items) != 1 || items[0].ProductID != "p2" {
		t.Fatalf("after remove: %+v", items)
	}

	// Removing an absent product is not an error.
	if err := cart.Apply(protocol.CartActionRemove, json.RawMessage(`{"product_id":"p9"}`)); err != nil {
		t.Fatalf("remove absent: %v", err)
	}

	if err := cart.Apply(protocol.CartActionClear, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if items := cart.Items(); len(items) != 0 {
		t.Fatalf("after clear: %+v", items)
	}
}

func TestMemoryCart_RejectsBadInput(t *testing.T) {
	t.Parallel()

	cart := NewMemoryCart()
	if err := cart.Apply(protocol.CartActionAdd, json.RawMessage(`{"name":"Drill"}`)); err == nil {
		t.Fatal("add without product_id should fail")
	}
	if err := cart.Apply("discard_cart", nil); err == nil {
		t.Fatal("unknown action should fail")
	}
	if err := cart.Apply(protocol.CartActionView, nil); err != nil {
		t.Fatalf("view: %v", err)
	}
}
