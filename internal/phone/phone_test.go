package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"transport prefix", "whatsapp:+15551234567", "+15551234567"},
		{"already normalized", "+15551234567", "+15551234567"},
		{"no plus", "15551234567", "+15551234567"},
		{"internal spaces", "+1 555 123 4567", "+15551234567"},
		{"prefix and spaces", "whatsapp:+1 555 123 4567", "+15551234567"},
		{"surrounding whitespace", "  +15551234567  ", "+15551234567"},
		{"no digits", "abc", "+abc"},
		{"empty", "", "+"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Normalize(c.in); got != c.want {
				t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"whatsapp:+15551234567",
		"+1 555 123 4567",
		"15551234567",
		"",
		"whatsapp:whatsapp:+1",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestNormalizeAlwaysStartsWithPlus(t *testing.T) {
	inputs := []string{"whatsapp:123", "abc", "", "+", "  55 5 ", "whatsapp:"}
	for _, in := range inputs {
		if got := Normalize(in); len(got) == 0 || got[0] != '+' {
			t.Errorf("Normalize(%q) = %q, expected leading '+'", in, got)
		}
	}
}

func TestToTransport(t *testing.T) {
	if got := ToTransport("+15551234567"); got != "whatsapp:+15551234567" {
		t.Errorf("ToTransport = %q", got)
	}
	// Raw input is normalized before the prefix is applied.
	if got := ToTransport("1 555 123 4567"); got != "whatsapp:+15551234567" {
		t.Errorf("ToTransport raw = %q", got)
	}
}
