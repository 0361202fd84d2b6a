package bot

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		name string
		args string
		ok   bool
	}{
		{"/start", "start", "", true},
		{"/ADD support_bots | Quiz | Fun", "add", "support_bots | Quiz | Fun", true},
		{"/score@kmbp_bot Quiz|+5", "score", "Quiz|+5", true},
		{"/score@other_bot Quiz|+5", "", "", false},
		{"/ban\n42 spam", "ban", "42 spam", true},
		{"/", "", "", false},
		{"hello", "", "", false},
	}
	for _, tt := range tests {
		name, args, ok := parseCommand(tt.text, "kmbp_bot")
		if name != tt.name || args != tt.args || ok != tt.ok {
			t.Errorf("parseCommand(%q) = %q, %q, %v", tt.text, name, args, ok)
		}
	}
}

func TestSplitFields(t *testing.T) {
	got := splitFields(" support_bots |  Quiz Bot | a | b ", 3)
	want := []string{"support_bots", "Quiz Bot", "a | b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitFields = %q, want %q", got, want)
	}
	if got := splitFields("   ", 3); got != nil {
		t.Fatalf("blank args should give no fields, got %q", got)
	}
}

func TestNormalizeCategory(t *testing.T) {
	for in, want := range map[string]string{
		"support_bots":   "support_bots",
		" Support_Bots ": "support_bots",
		"KMBP channels":  "kmbp_channels",
		"nope":           "nope",
	} {
		if got := normalizeCategory(in); got != want {
			t.Errorf("normalizeCategory(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCommandValidator(t *testing.T) {
	v := newCommandValidator()

	if err := v.Struct(addArgs{Category: "support_bots", Name: "Quiz"}); err != nil {
		t.Fatalf("valid args rejected: %v", err)
	}
	if err := v.Struct(addArgs{Category: "bogus", Name: "Quiz"}); err == nil {
		t.Fatal("unknown category accepted")
	}
	if err := v.Struct(idArgs{ID: "abc"}); err == nil {
		t.Fatal("non-numeric id accepted")
	}
	if err := v.Struct(nameArgs{Name: strings.Repeat("x", 101)}); err == nil {
		t.Fatal("overlong name accepted")
	}
}

func TestChunk(t *testing.T) {
	lines := []string{strings.Repeat("a", 6), strings.Repeat("b", 6), strings.Repeat("c", 6)}
	got := chunk(lines, 14)
	want := []string{"aaaaaa\nbbbbbb", "cccccc"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("chunk = %q, want %q", got, want)
	}
	if chunk(nil, 10) != nil {
		t.Fatal("no lines should give no chunks")
	}
}
