package util

import (
	"os"
	"testing"
)

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"garbage", true, true},
	}
	for _, c := range cases {
		if c.value == "" {
			os.Unsetenv("COACH_TEST_BOOL")
		} else {
			os.Setenv("COACH_TEST_BOOL", c.value)
		}
		if got := ParseBoolEnv("COACH_TEST_BOOL", c.def); got != c.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", c.value, c.def, got, c.want)
		}
	}
	os.Unsetenv("COACH_TEST_BOOL")
}

func TestGetEnvDefault(t *testing.T) {
	os.Unsetenv("COACH_TEST_VALUE")
	if got := GetEnvDefault("COACH_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
	os.Setenv("COACH_TEST_VALUE", "set")
	defer os.Unsetenv("COACH_TEST_VALUE")
	if got := GetEnvDefault("COACH_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("expected set value, got %q", got)
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"mood":"8"}`, `{"mood":"8"}`, true},
		{"leading prose", `Here is the data: {"mood":"8"} hope that helps`, `{"mood":"8"}`, true},
		{"nested object", `{"a":{"b":1}}`, `{"a":{"b":1}}`, true},
		{"brace in string", `{"notes":"used } carefully"}`, `{"notes":"used } carefully"}`, true},
		{"escaped quote in string", `{"notes":"say \"hi\" {now}"}`, `{"notes":"say \"hi\" {now}"}`, true},
		{"no object", "null", "", false},
		{"unbalanced", `{"mood":"8"`, "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(c.in)
			if ok != c.ok || got != c.want {
				t.Errorf("ExtractJSONObject(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	in := "Sure! Here you go:\n[{\"type\":\"weekly\"},{\"type\":\"monthly\"}]\nLet me know."
	got, ok := ExtractJSONArray(in)
	if !ok {
		t.Fatal("expected to find array")
	}
	if got != `[{"type":"weekly"},{"type":"monthly"}]` {
		t.Errorf("unexpected extraction: %q", got)
	}

	if _, ok := ExtractJSONArray("no array here"); ok {
		t.Error("expected no array")
	}
}
