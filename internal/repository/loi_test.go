package repository

import (
	"testing"

	"github.com/simywang/Teambot/internal/model"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestBuildUpdateSetEmptyPatch(t *testing.T) {
	clauses, args := buildUpdateSet(&model.LOIPatch{})
	if len(clauses) != 0 || len(args) != 0 {
		t.Fatalf("empty patch must produce no clauses, got %v %v", clauses, args)
	}

	clauses, args = buildUpdateSet(nil)
	if len(clauses) != 0 || len(args) != 0 {
		t.Fatalf("nil patch must produce no clauses, got %v %v", clauses, args)
	}
}

func TestBuildUpdateSetSingleField(t *testing.T) {
	clauses, args := buildUpdateSet(&model.LOIPatch{Ratio: floatPtr(3.0)})
	if len(clauses) != 1 || clauses[0] != "ratio = $1" {
		t.Fatalf("got %v", clauses)
	}
	if len(args) != 1 || args[0] != 3.0 {
		t.Fatalf("got %v", args)
	}
}

func TestBuildUpdateSetPlaceholdersTrackArgs(t *testing.T) {
	patch := &model.LOIPatch{
		Customer:   strPtr("Lindt"),
		Ratio:      floatPtr(2.78),
		QuantityMT: intPtr(100),
		Status:     strPtr(model.StatusModified),
	}

	clauses, args := buildUpdateSet(patch)
	if len(clauses) != 4 || len(args) != 4 {
		t.Fatalf("got %d clauses and %d args", len(clauses), len(args))
	}

	want := []string{"customer = $1", "ratio = $2", "quantity_mt = $3", "status = $4"}
	for i, clause := range clauses {
		if clause != want[i] {
			t.Fatalf("clause %d: got %q, want %q", i, clause, want[i])
		}
	}
	if args[0] != "Lindt" || args[1] != 2.78 || args[2] != 100 || args[3] != model.StatusModified {
		t.Fatalf("args out of order: %v", args)
	}
}

func TestBuildUpdateSetChatMessageID(t *testing.T) {
	clauses, args := buildUpdateSet(&model.LOIPatch{ChatMessageID: strPtr("m1")})
	if len(clauses) != 1 || clauses[0] != "chat_message_id = $1" {
		t.Fatalf("got %v", clauses)
	}
	if args[0] != "m1" {
		t.Fatalf("got %v", args)
	}
}
