package app

import (
	"reflect"
	"testing"
)

func row(id uint, question, answer, alias string) RowSnapshot {
	return RowSnapshot{ID: id, Question: question, Answer: answer, Alias: alias}
}

func TestDiffRowsEmptyInputs(t *testing.T) {
	if got := DiffRows(nil, nil); len(got) != 0 {
		t.Fatalf("expected no changes, got %d", len(got))
	}
	if got := DiffRows([]RowSnapshot{row(1, "q", "a", "")}, nil); len(got) != 0 {
		t.Fatalf("rows only in original must not be reported, got %d", len(got))
	}
}

func TestDiffRowsFieldChanges(t *testing.T) {
	base := row(1, "食堂几点开", "早7点到晚8点", "食堂 时间")

	cases := []struct {
		name   string
		mutate func(r *RowSnapshot)
	}{
		{"question", func(r *RowSnapshot) { r.Question = "食堂几点关门" }},
		{"answer", func(r *RowSnapshot) { r.Answer = "晚9点" }},
		{"alias", func(r *RowSnapshot) { r.Alias = "饭点" }},
		{"vectorized", func(r *RowSnapshot) { r.Vectorized = true }},
		{"delete", func(r *RowSnapshot) { r.Delete = true }},
		{"popular", func(r *RowSnapshot) { r.Popular = true }},
		{"popular_rank", func(r *RowSnapshot) { r.PopularRank = 3 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			edited := base
			tc.mutate(&edited)
			changes := DiffRows([]RowSnapshot{base}, []RowSnapshot{edited})
			if len(changes) != 1 {
				t.Fatalf("expected 1 change, got %d", len(changes))
			}
			if changes[0].Old == nil || *changes[0].Old != base {
				t.Fatal("expected original row carried as Old")
			}
			if changes[0].New != edited {
				t.Fatal("expected edited row carried as New")
			}
		})
	}
}

func TestDiffRowsUnchangedNotReported(t *testing.T) {
	rows := []RowSnapshot{
		row(1, "q1", "a1", ""),
		row(2, "q2", "a2", "k2"),
	}
	edited := []RowSnapshot{rows[0], rows[1]}
	edited[1].Answer = "a2-new"

	changes := DiffRows(rows, edited)
	if len(changes) != 1 {
		t.Fatalf("expected exactly the changed row, got %d changes", len(changes))
	}
	if changes[0].New.ID != 2 {
		t.Fatalf("expected row 2 reported, got %d", changes[0].New.ID)
	}
}

func TestDiffRowsNewRowTreatedAsNew(t *testing.T) {
	edited := []RowSnapshot{row(7, "q", "a", "")}
	changes := DiffRows(nil, edited)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if changes[0].Old != nil {
		t.Fatal("row absent from original must have nil Old")
	}
}

func TestDiffRowsPreservesEditedOrder(t *testing.T) {
	original := []RowSnapshot{row(1, "q1", "a1", ""), row(2, "q2", "a2", ""), row(3, "q3", "a3", "")}
	edited := []RowSnapshot{original[2], original[0], original[1]}
	edited[0].Answer = "x"
	edited[1].Answer = "y"
	edited[2].Answer = "z"

	changes := DiffRows(original, edited)
	gotOrder := []uint{changes[0].New.ID, changes[1].New.ID, changes[2].New.ID}
	if !reflect.DeepEqual(gotOrder, []uint{3, 1, 2}) {
		t.Fatalf("expected edited order [3 1 2], got %v", gotOrder)
	}
}
