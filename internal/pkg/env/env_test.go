package env

import (
	"log/slog"
	"testing"
)

func TestGet(t *testing.T) {
	t.Setenv("STL_MORPHO_TEST_KEY", "value")
	if got := Get("STL_MORPHO_TEST_KEY", "default"); got != "value" {
		t.Errorf("Get() = %q, want value", got)
	}
	if got := Get("STL_MORPHO_TEST_MISSING", "default"); got != "default" {
		t.Errorf("Get() = %q, want default", got)
	}
}

func TestResolve_Precedence(t *testing.T) {
	defaults := map[string]string{"RPC_URL": "https://default.example"}

	tests := []struct {
		name      string
		flag      string
		envValue  string
		wantValue string
		wantIndex int
	}{
		{name: "flag wins", flag: "https://flag.example", envValue: "https://env.example", wantValue: "https://flag.example", wantIndex: 0},
		{name: "env when no flag", flag: "", envValue: "https://env.example", wantValue: "https://env.example", wantIndex: 1},
		{name: "blank flag ignored", flag: "   ", envValue: "https://env.example", wantValue: "https://env.example", wantIndex: 1},
		{name: "chain default last", flag: "", envValue: "", wantValue: "https://default.example", wantIndex: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STL_MORPHO_RPC_URL", tt.envValue)
			got, idx := Resolve(Value(tt.flag), Var("STL_MORPHO_RPC_URL"), Lookup(defaults, "RPC_URL"))
			if got != tt.wantValue {
				t.Errorf("Resolve() value = %q, want %q", got, tt.wantValue)
			}
			if idx != tt.wantIndex {
				t.Errorf("Resolve() index = %d, want %d", idx, tt.wantIndex)
			}
		})
	}
}

func TestResolve_NoSourceAnswers(t *testing.T) {
	got, idx := Resolve(Value(""), nil, Lookup(map[string]string{}, "missing"))
	if got != "" || idx != -1 {
		t.Errorf("Resolve() = (%q, %d), want (\"\", -1)", got, idx)
	}
	if v := ResolveOr("fallback", Value("")); v != "fallback" {
		t.Errorf("ResolveOr() = %q, want fallback", v)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for raw, want := range tests {
		if got := ParseLevel(raw, slog.LevelInfo); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}
