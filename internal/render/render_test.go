package render

import (
	"strings"
	"testing"

	"prgate/internal/engine"
)

func TestAffectedModelsTable_Empty(t *testing.T) {
	got := AffectedModelsTable(nil)
	if !strings.Contains(got, "No models were modified") {
		t.Fatalf("empty table = %q", got)
	}
}

func TestAffectedModelsTable_RowsAndIntervals(t *testing.T) {
	got := AffectedModelsTable([]engine.AffectedModel{
		{Name: "db.orders", ChangeType: "breaking", Intervals: []engine.Interval{
			{Start: "2024-01-01", End: "2024-01-15"},
			{Start: "2024-02-01", End: "2024-02-10"},
		}},
		{Name: "db.orders_daily", ChangeType: "indirect"},
	})

	for _, want := range []string{
		"<td>db.orders</td>",
		"<td>breaking</td>",
		"<td>(2024-01-01 - 2024-01-15), (2024-02-01 - 2024-02-10)</td>",
		"<td>db.orders_daily</td>",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("table missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "<tr>") != 4 {
		t.Fatalf("expected header + column row + 2 model rows, got:\n%s", got)
	}
}

func TestDetails(t *testing.T) {
	got := Details("Plan Preview", "**2 models** will change")
	if !strings.HasPrefix(got, "<details>") || !strings.Contains(got, "<summary>Plan Preview</summary>") {
		t.Fatalf("details block = %q", got)
	}
}
