package app

import "strings"

// RowSnapshot is one row of the bulk editor, keyed by the QA row id. Delete
// is the editor's mark-for-deletion column: removal is requested by setting
// the flag on a present row, never by leaving the row out of the snapshot.
type RowSnapshot struct {
	ID          uint   `json:"id"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Alias       string `json:"alias"`
	Vectorized  bool   `json:"vectorized"`
	Delete      bool   `json:"delete"`
	Popular     bool   `json:"popular"`
	PopularRank int    `json:"popular_rank"`
}

// EmbedText mirrors model.QA: the alias is what gets embedded, falling back
// to the question when the alias is blank.
func (r RowSnapshot) EmbedText() string {
	if alias := strings.TrimSpace(r.Alias); alias != "" {
		return alias
	}
	return r.Question
}

// RowChange pairs an edited row with its original counterpart. Old is nil
// when the row id did not appear in the original snapshot; such rows are
// treated as new.
type RowChange struct {
	Old *RowSnapshot
	New RowSnapshot
}

// DiffRows compares the original snapshot against the edited one and returns
// the rows that changed, in the edited snapshot's order. A row counts as
// changed when its id is new, or when any tracked field differs. Rows present
// only in the original are not reported; deletion is carried by the Delete
// flag on a surviving row. The function is pure.
func DiffRows(original, edited []RowSnapshot) []RowChange {
	index := make(map[uint]RowSnapshot, len(original))
	for _, row := range original {
		index[row.ID] = row
	}

	var changes []RowChange
	for _, row := range edited {
		prev, ok := index[row.ID]
		if !ok {
			changes = append(changes, RowChange{New: row})
			continue
		}
		if rowChanged(prev, row) {
			old := prev
			changes = append(changes, RowChange{Old: &old, New: row})
		}
	}
	return changes
}

func rowChanged(prev, next RowSnapshot) bool {
	switch {
	case prev.Question != next.Question:
		return true
	case prev.Answer != next.Answer:
		return true
	case prev.Alias != next.Alias:
		return true
	case prev.Vectorized != next.Vectorized:
		return true
	case prev.Delete != next.Delete:
		return true
	case prev.Popular != next.Popular:
		return true
	case prev.PopularRank != next.PopularRank:
		return true
	}
	return false
}
