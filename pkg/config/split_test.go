package config

import (
	"testing"
)

func TestSplitQuotedFields(t *testing.T) {
	in := `field'A' 'fieldB' fie'l\'d'C fieldD 'another field' fieldE`
	tgt := []string{"fieldA", "fieldB", "fiel'dC", "fieldD", "another field", "fieldE"}
	out := SplitQuotedFields(in, '\'')

	if len(tgt) != len(out) {
		t.Fatalf("expected %#v, got %#v (len mismatch)", tgt, out)
	}

	for i := range tgt {
		if tgt[i] != out[i] {
			t.Fatalf(" expected %#v, got %#v (mismatch at %d)", tgt, out, i)
		}
	}
}

func TestSplitDoubleQuotedFields(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected []string
	}{
		{
			name:     "generic test case",
			in:       `field"A" "fieldB" fie"l'd"C "field\"D" "yet another field"`,
			expected: []string{"fieldA", "fieldB", "fiel'dC", "field\"D", "yet another field"},
		},
		{
			name:     "with empty string in the end",
			in:       `field"A" "" `,
			expected: []string{"fieldA", ""},
		},
		{
			name:     "with empty string at the beginning",
			in:       ` "" field"A"`,
			expected: []string{"", "fieldA"},
		},
		{
			name:     "lots of spaces",
			in:       `    field"A"   `,
			expected: []string{"fieldA"},
		},
		{
			name:     "repeated spaces between fields",
			in:       `alias  print   "p q"  `,
			expected: []string{"alias", "print", "p q"},
		},
		{
			name:     "only empty string",
			in:       ` "" "" "" """" "" `,
			expected: []string{"", "", "", "", ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			tgt := tt.expected
			out := SplitQuotedFields(in, '"')
			if len(tgt) != len(out) {
				t.Fatalf("expected %#v, got %#v (len mismatch)", tgt, out)
			}

			for i := range tgt {
				if tgt[i] != out[i] {
					t.Fatalf(" expected %#v, got %#v (mismatch at %d)", tgt, out, i)
				}
			}
		})
	}
}

func TestConfigureListByName(t *testing.T) {
	type testConfig struct {
		partial bool     `cfgName:"partial-graph"`
		dirs    []string `cfgName:"debug-info-directories"`
	}

	tests := []struct {
		name    string
		conf    *testConfig
		cfgname string
		want    string
	}{
		{"basic bool", &testConfig{partial: true, dirs: []string{}}, "partial-graph", "partial-graph\ttrue\n"},
		{"list arg", &testConfig{dirs: []string{"/usr/lib/debug", "/opt/debug"}}, "debug-info-directories", "debug-info-directories\t[/usr/lib/debug /opt/debug]\n"},
		{"empty", &testConfig{}, "", ""},
		{"invalid", &testConfig{}, "nonexistent", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConfigureListByName(tt.conf, tt.cfgname, "cfgName"); got != tt.want {
				t.Errorf("ConfigureListByName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplit2PartsBySpace(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"max-string-len 100", []string{"max-string-len", "100"}},
		{"  partial-graph   true ", []string{"partial-graph", "true"}},
		{"aliases", []string{"aliases"}},
	} {
		got := Split2PartsBySpace(tc.in)
		if len(got) != len(tc.want) {
			t.Fatalf("%q: got %q", tc.in, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%q: got %q", tc.in, got)
			}
		}
	}
}
