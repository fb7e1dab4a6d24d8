package retrieval

import "testing"

func TestParseContentDispositionBasic(t *testing.T) {
	cases := []struct {
		name   string
		header string
		typ    string
		file   string
	}{
		{"plain inline", `inline`, "inline", ""},
		{"quoted filename", `attachment; filename="report.pdf"`, "attachment", "report.pdf"},
		{"unquoted filename", `attachment; filename=report.pdf`, "attachment", "report.pdf"},
		{"escaped quote", `attachment; filename="a \"b\".txt"`, "attachment", `a "b".txt`},
		{"extended utf8", `attachment; filename*=UTF-8''%e2%82%ac%20rates.txt`, "attachment", "€ rates.txt"},
		{"extended preferred over plain", `attachment; filename="fallback.txt"; filename*=UTF-8''real.txt`, "attachment", "real.txt"},
		{"mixed case type", `INLINE`, "inline", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := ParseContentDisposition(tc.header)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Type != tc.typ {
				t.Errorf("type = %q, want %q", d.Type, tc.typ)
			}
			if got := d.Filename(); got != tc.file {
				t.Errorf("filename = %q, want %q", got, tc.file)
			}
		})
	}
}

func TestParseContentDispositionEmptyErrors(t *testing.T) {
	if _, err := ParseContentDisposition(""); err == nil {
		t.Fatal("expected error for empty header")
	}
}

func TestFormatContentDispositionRoundTrips(t *testing.T) {
	header := FormatContentDisposition("inline", `weird "name".txt`)
	d, err := ParseContentDisposition(header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := d.Filename(); got != `weird "name".txt` {
		t.Errorf("round trip filename = %q", got)
	}
}
