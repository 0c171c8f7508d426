package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, []string{"id", "title", "status"})
	tbl.AddRow("7", "Logo design", "OPEN")
	tbl.AddRow("9", "Landing page", "ASSIGNED")

	if tbl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tbl.Len())
	}
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"TITLE", "Logo design", "Landing page", "ASSIGNED"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Logo design") > strings.Index(out, "Landing page") {
		t.Error("rows rendered out of order")
	}
}
