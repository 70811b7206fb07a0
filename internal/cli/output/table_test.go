package output

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

type row struct {
	ID      string    `json:"id"`
	Count   int       `json:"count"`
	Detail  string    `json:"detail" table:"wide"`
	Hidden  string    `table:"-"`
	Skipped string    `json:"-"`
	At      time.Time `json:"at"`
	secret  string
}

func render(t *testing.T, f *TableFormatter, data any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := f.Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	return buf.String()
}

func TestTableFormatter_Table(t *testing.T) {
	table := &Table{}
	table.SetHeaders("NAME", "VALUE")
	table.AddRow("a", "1")
	table.AddRow("longer", "2")

	out := render(t, &TableFormatter{}, table)
	want := "NAME    VALUE\na       1\nlonger  2\n"
	if out != want {
		t.Errorf("got\n%q\nwant\n%q", out, want)
	}

	out = render(t, &TableFormatter{NoHeaders: true}, *table)
	if strings.Contains(out, "NAME") {
		t.Errorf("NoHeaders output contains headers: %q", out)
	}
}

func TestTableFormatter_Nil(t *testing.T) {
	if out := render(t, &TableFormatter{}, nil); out != "" {
		t.Errorf("Format(nil) = %q, want empty", out)
	}
}

func TestTableFormatter_Slice(t *testing.T) {
	rows := []*row{
		{ID: "a", Count: 1, Detail: "x", secret: "s"},
		{ID: "b", Count: 2, Detail: "y"},
	}

	out := render(t, &TableFormatter{}, rows)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	if fields := strings.Fields(lines[0]); !reflect.DeepEqual(fields, []string{"ID", "COUNT", "AT"}) {
		t.Errorf("headers = %v", fields)
	}
	if strings.Contains(out, "HIDDEN") || strings.Contains(out, "SKIPPED") || strings.Contains(out, "SECRET") {
		t.Errorf("hidden fields rendered:\n%s", out)
	}

	wide := render(t, &TableFormatter{Wide: true}, rows)
	if !strings.Contains(wide, "DETAIL") {
		t.Errorf("wide output missing DETAIL:\n%s", wide)
	}

	if out := render(t, &TableFormatter{}, []row{}); out != "" {
		t.Errorf("empty slice = %q, want empty", out)
	}
}

func TestTableFormatter_ScalarSlice(t *testing.T) {
	out := render(t, &TableFormatter{}, []string{"spiffe://a", "spiffe://b"})
	want := "VALUE\nspiffe://a\nspiffe://b\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestTableFormatter_StructFlattensNested(t *testing.T) {
	type inner struct {
		Depth int `json:"depth"`
	}
	data := struct {
		Name    string        `json:"name"`
		Inner   inner         `json:"inner"`
		Ptr     *inner        `json:"ptr"`
		Timeout time.Duration `json:"timeout"`
		URIs    []string      `json:"uris"`
	}{
		Name:    "n",
		Inner:   inner{Depth: 2},
		Timeout: 3 * time.Second,
		URIs:    []string{"a", "b"},
	}

	out := render(t, &TableFormatter{}, &data)
	got := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[1:] {
		fields := strings.Fields(line)
		got[fields[0]] = strings.Join(fields[1:], " ")
	}
	want := map[string]string{
		"name":        "n",
		"inner.depth": "2",
		"ptr":         "-",
		"timeout":     "3s",
		"uris":        "a, b",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestTableFormatter_Map(t *testing.T) {
	out := render(t, &TableFormatter{}, map[string]int{"k": 1})
	if !strings.Contains(out, "KEY") || !strings.Contains(out, "k    1") {
		t.Errorf("got %q", out)
	}
}

func TestTableFormatter_FallbackToJSON(t *testing.T) {
	out := render(t, &TableFormatter{}, 42)
	if strings.TrimSpace(out) != "42" {
		t.Errorf("got %q, want JSON 42", out)
	}
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var nilPtr *int
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "x", "x"},
		{"empty string", "", "-"},
		{"int", 7, "7"},
		{"uint", uint64(9), "9"},
		{"float", 1.5, "1.50"},
		{"bool", true, "true"},
		{"time", ts, "2026-01-02T03:04:05Z"},
		{"zero time", time.Time{}, "-"},
		{"duration", time.Minute, "1m0s"},
		{"nil pointer", nilPtr, "-"},
		{"empty slice", []int{}, "-"},
		{"map", map[string]int{"a": 1}, "{1 keys}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(reflect.ValueOf(tt.in)); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if got := formatValue(reflect.Value{}); got != "-" {
		t.Errorf("formatValue(invalid) = %q", got)
	}
}
