// Package storetest is a conformance suite every domain.RecordStore backend
// runs from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"charsheet/pkg/domain"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) domain.RecordStore

var ignoreID = cmpopts.IgnoreFields(domain.Character{}, "ID")

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(*testing.T, domain.RecordStore)
	}{
		{"CreateAssignsID", testCreateAssignsID},
		{"GetMissing", testGetMissing},
		{"ListOrdersByName", testListOrdersByName},
		{"ReplaceRoundTrip", testReplaceRoundTrip},
		{"ReplaceMissing", testReplaceMissing},
		{"DeleteRemovesStatus", testDeleteRemovesStatus},
		{"DeleteWithoutStatus", testDeleteWithoutStatus},
		{"DeleteMissing", testDeleteMissing},
		{"PutStatusUpserts", testPutStatusUpserts},
		{"ReturnedValuesAreCopies", testReturnedValuesAreCopies},
		{"CancelledContext", testCancelledContext},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t)
			t.Cleanup(func() {
				if err := store.Close(); err != nil {
					t.Errorf("close: %v", err)
				}
			})
			tc.fn(t, store)
		})
	}
}

func create(t *testing.T, store domain.RecordStore, c domain.Character) string {
	t.Helper()
	id, err := store.CreateCharacter(context.Background(), c)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatalf("create returned an empty id")
	}
	return id
}

func testCreateAssignsID(t *testing.T, store domain.RecordStore) {
	ctx := context.Background()
	tpl := domain.NewCharacterTemplate()
	tpl.ID = "caller-chosen"
	first := create(t, store, tpl)
	second := create(t, store, tpl)
	if first == "caller-chosen" || first == second {
		t.Fatalf("expected fresh distinct ids, got %q and %q", first, second)
	}
	got, ok, err := store.GetCharacter(ctx, first)
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if got.ID != first {
		t.Fatalf("stored id %q, want %q", got.ID, first)
	}
	if diff := cmp.Diff(tpl.Normalize(), got, ignoreID); diff != "" {
		t.Fatalf("created character differs (-want +got):\n%s", diff)
	}
}

func testGetMissing(t *testing.T, store domain.RecordStore) {
	ctx := context.Background()
	if _, ok, err := store.GetCharacter(ctx, missingID); err != nil || ok {
		t.Fatalf("missing character should be (false, nil), got (%v, %v)", ok, err)
	}
	if _, ok, err := store.GetStatus(ctx, missingID); err != nil || ok {
		t.Fatalf("missing status should be (false, nil), got (%v, %v)", ok, err)
	}
}

func testListOrdersByName(t *testing.T, store domain.RecordStore) {
	ctx := context.Background()
	for _, name := range []string{"Zed", "Aria", "Mira", "Aria"} {
		c := domain.NewCharacterTemplate()
		c.Name = name
		create(t, store, c)
	}
	list, err := store.ListCharacters(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, c := range list {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"Aria", "Aria", "Mira", "Zed"}, names); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if list[0].ID > list[1].ID {
		t.Fatalf("equal names must be ordered by id: %q > %q", list[0].ID, list[1].ID)
	}
}

func testReplaceRoundTrip(t *testing.T, store domain.RecordStore) {
	ctx := context.Background()
	id := create(t, store, domain.NewCharacterTemplate())
	edited, err := domain.UpdateScalar(domain.NewCharacterTemplate(), domain.FieldName, "Morwen")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	edited, _ = domain.UpdateEquipmentSlot(edited, "weapon", nil)
	edited = domain.UpdateBackpack(edited, nil)
	edited, _ = domain.AddSpell(edited, domain.NewSpell("Bone Shield"))
	edited.ID = "ignored"
	if err := store.ReplaceCharacter(ctx, id, edited); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, ok, err := store.GetCharacter(ctx, id)
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if got.ID != id {
		t.Fatalf("replace must keep the record id, got %q", got.ID)
	}
	if diff := cmp.Diff(edited.Normalize(), got, ignoreID); diff != "" {
		t.Fatalf("round trip differs (-want +got):\n%s", diff)
	}
	if slot, _ := got.Equipment.Lookup("weapon"); !slot.Empty() {
		t.Fatalf("emptied slot must round-trip as empty, got %+v", slot.Item)
	}
}

func testReplaceMissing(t *testing.T, store domain.RecordStore) {
	err := store.ReplaceCharacter(context.Background(), missingID, domain.NewCharacterTemplate())
	if !domain.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testDeleteRemovesStatus(t *testing.T, store domain.RecordStore) {
	ctx := context.Background()
	id := create(t, store, domain.NewCharacterTemplate())
	if err := store.PutStatus(ctx, id, domain.DefaultStatus()); err != nil {
		t.Fatalf("put status: %v", err)
	}
	if err := store.DeleteCharacter(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.GetCharacter(ctx, id); ok {
		t.Fatalf("character survived delete")
	}
	if _, ok, _ := store.GetStatus(ctx, id); ok {
		t.Fatalf("status survived delete")
	}
}

func testDeleteWithoutStatus(t *testing.T, store domain.RecordStore) {
	id := create(t, store, domain.NewCharacterTemplate())
	if err := store.DeleteCharacter(context.Background(), id); err != nil {
		t.Fatalf("delete without status: %v", err)
	}
}

func testDeleteMissing(t *testing.T, store domain.RecordStore) {
	err := store.DeleteCharacter(context.Background(), missingID)
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) || nf.Collection != domain.CollectionCharacters {
		t.Fatalf("expected characters ErrNotFound, got %v", err)
	}
}

func testPutStatusUpserts(t *testing.T, store domain.RecordStore) {
	ctx := context.Background()
	id := create(t, store, domain.NewCharacterTemplate())
	st := domain.DefaultStatus()
	if err := store.PutStatus(ctx, id, st); err != nil {
		t.Fatalf("put: %v", err)
	}
	updated, ok := domain.UpdateStatusAttribute(st, domain.StatusRequirements, 1, 99)
	if !ok {
		t.Fatalf("attribute 1 missing from default status")
	}
	updated.Rolls = nil
	if err := store.PutStatus(ctx, id, updated); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, ok, err := store.GetStatus(ctx, id)
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if diff := cmp.Diff(updated.Normalize(), got); diff != "" {
		t.Fatalf("status differs (-want +got):\n%s", diff)
	}
}

func testReturnedValuesAreCopies(t *testing.T, store domain.RecordStore) {
	ctx := context.Background()
	id := create(t, store, domain.NewCharacterTemplate())
	got, _, err := store.GetCharacter(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Skills[0] = "tampered"
	got.Equipment[0].Item.Name = "tampered"
	again, _, err := store.GetCharacter(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.Skills[0] == "tampered" || again.Equipment[0].Item.Name == "tampered" {
		t.Fatalf("store leaked internal state")
	}
}

func testCancelledContext(t *testing.T, store domain.RecordStore) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.CreateCharacter(ctx, domain.NewCharacterTemplate()); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

// missingID is a well-formed id for every backend that no store assigns.
const missingID = "000000000000000000000000"
