package privacy

import "testing"

func TestRedact(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		matches map[string][]string
		samples map[string]string
		want    string
	}{
		{
			name:    "ssn sample",
			text:    "SSN 123-45-6789 here",
			matches: map[string][]string{"Social Security Number": {"123-45-6789"}},
			samples: map[string]string{"Social Security Number": "XXX-XX-XXXX"},
			want:    "SSN XXX-XX-XXXX here",
		},
		{
			name:    "default sample",
			text:    "token abc123",
			matches: map[string][]string{"Token": {"abc123"}},
			samples: map[string]string{},
			want:    "token REDACTED",
		},
		{
			name:    "no matches returns text unchanged",
			text:    "nothing to see",
			matches: map[string][]string{},
			samples: map[string]string{"Email Address": "user@example.com"},
			want:    "nothing to see",
		},
		{
			name:    "every occurrence is replaced",
			text:    "a@b.com then a@b.com",
			matches: map[string][]string{"Email Address": {"a@b.com", "a@b.com"}},
			samples: map[string]string{"Email Address": "user@example.com"},
			want:    "user@example.com then user@example.com",
		},
		{
			name: "multiple patterns",
			text: "mail a@b.com ssn 123-45-6789",
			matches: map[string][]string{
				"Email Address":          {"a@b.com"},
				"Social Security Number": {"123-45-6789"},
			},
			samples: map[string]string{
				"Email Address":          "EMAIL",
				"Social Security Number": "SSN",
			},
			want: "mail EMAIL ssn SSN",
		},
		{
			name:    "sample containing its own match terminates",
			text:    "id 7 end",
			matches: map[string][]string{"Digit": {"7"}},
			samples: map[string]string{"Digit": "77"},
			want:    "id 77 end",
		},
		{
			name: "sample containing another match is substituted again",
			text: "dog cat",
			matches: map[string][]string{
				"Cat": {"cat"},
				"Dog": {"dog"},
			},
			samples: map[string]string{"Cat": "dog", "Dog": "X"},
			want:    "X X",
		},
		{
			name:    "empty match ignored",
			text:    "abc",
			matches: map[string][]string{"Empty": {""}},
			samples: map[string]string{"Empty": "Z"},
			want:    "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.text, tt.matches, tt.samples)
			if got != tt.want {
				t.Errorf("Redact() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedactText(t *testing.T) {
	engine := newTestEngine()

	redacted, result := engine.RedactText("SSN 123-45-6789 here", DefaultPatterns())

	if redacted != "SSN XXX-XX-XXXX here" {
		t.Errorf("unexpected redaction: %q", redacted)
	}
	if result.TotalMatches() != 1 {
		t.Errorf("expected 1 match, got %d", result.TotalMatches())
	}
}
