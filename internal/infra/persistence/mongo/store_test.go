package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"charsheet/internal/infra/persistence/storetest"
	"charsheet/pkg/domain"
)

// TestStoreConformance runs against a real server when
// CHARSHEET_TEST_MONGO_URI is set.
func TestStoreConformance(t *testing.T) {
	uri := os.Getenv("CHARSHEET_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CHARSHEET_TEST_MONGO_URI not set")
	}
	storetest.Run(t, func(t *testing.T) domain.RecordStore {
		ctx := context.Background()
		store, err := Open(ctx, uri, "charsheet_test")
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if err := store.Database().Drop(ctx); err != nil {
			t.Fatalf("drop: %v", err)
		}
		return store
	})
}

func TestPayloadRoundTripKeepsOptionalFields(t *testing.T) {
	c := domain.NewCharacterTemplate()
	c, _ = domain.UpdateEquipmentSlot(c, "armor", nil)
	spell := domain.NewSpell("Mend")
	spell.Category = domain.SpellHeal
	healing := 0
	spell.Healing = &healing
	spell.Cost = nil
	c, err := domain.AddSpell(c, spell)
	if err != nil {
		t.Fatalf("add spell: %v", err)
	}

	raw, err := toBSON(characterPayload(c))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := raw.LookupErr("currency", "gold"); err != nil {
		t.Fatalf("expected nested json field names in document: %v", err)
	}
	var got domain.Character
	if err := fromBSON(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(c.Normalize(), got); diff != "" {
		t.Fatalf("round trip differs (-want +got):\n%s", diff)
	}
	mend := got.Spells[len(got.Spells)-1]
	if mend.Healing == nil || *mend.Healing != 0 || mend.Cost != nil {
		t.Fatalf("optional spell fields not preserved: %+v", mend)
	}
}

func TestStatusPayloadRoundTrip(t *testing.T) {
	st := domain.DefaultStatus()
	raw, err := toBSON(st)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got domain.Status
	if err := fromBSON(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(st, got); diff != "" {
		t.Fatalf("round trip differs (-want +got):\n%s", diff)
	}
}
