package config

import (
	"testing"
	"time"
)

func TestHelpers_FromEnvOrFlag(t *testing.T) {
	const key = "CFG_STR"
	tests := []struct {
		name   string
		env    string
		flag   string
		def    string
		expect string
	}{
		{
			name:   "env takes precedence over flag",
			env:    "  env-val  ",
			flag:   "flag-val",
			def:    "def",
			expect: "env-val",
		},
		{
			name:   "flag used when env empty",
			env:    "",
			flag:   "  flag-val  ",
			def:    "def",
			expect: "flag-val",
		},
		{
			name:   "default used when both empty",
			env:    "   ",
			flag:   "   ",
			def:    "def",
			expect: "def",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(key, tc.env)
			got := FromEnvOrFlag(key, tc.flag, tc.def)
			if got != tc.expect {
				t.Fatalf("got %q, want %q", got, tc.expect)
			}
		})
	}
}

func TestHelpers_FromEnvOrFlagDuration(t *testing.T) {
	const key = "CFG_DUR"
	tests := []struct {
		name         string
		env          string
		flagSeconds  int
		sentinel     int
		defSeconds   int
		expectDur    time.Duration
		expectCustom bool
	}{
		{
			name:         "env numeric seconds wins over flag/sentinel",
			env:          "15",
			flagSeconds:  42,
			sentinel:     0,
			defSeconds:   300,
			expectDur:    15 * time.Second,
			expectCustom: true,
		},
		{
			name:         "env duration string wins",
			env:          "1m30s",
			flagSeconds:  5,
			sentinel:     0,
			defSeconds:   300,
			expectDur:    90 * time.Second,
			expectCustom: true,
		},
		{
			name:         "env invalid -> falls through to flag",
			env:          "not-a-duration",
			flagSeconds:  10,
			sentinel:     0,
			defSeconds:   300,
			expectDur:    10 * time.Second,
			expectCustom: true,
		},
		{
			name:         "env fractional seconds",
			env:          "2.5",
			flagSeconds:  0,
			sentinel:     -1,
			defSeconds:   10,
			expectDur:    2500 * time.Millisecond,
			expectCustom: true,
		},
		{
			name:         "env with spaces numeric -> trimmed and used",
			env:          "   7   ",
			flagSeconds:  0,
			sentinel:     0,
			defSeconds:   300,
			expectDur:    7 * time.Second,
			expectCustom: true,
		},
		{
			name:         "flag used when env empty (sentinel=0, flag>0)",
			env:          "",
			flagSeconds:  10,
			sentinel:     0,
			defSeconds:   300,
			expectDur:    10 * time.Second,
			expectCustom: true,
		},
		{
			name:         "flag==sentinel -> default used, custom=false",
			env:          "",
			flagSeconds:  0,
			sentinel:     0,
			defSeconds:   300,
			expectDur:    300 * time.Second,
			expectCustom: false,
		},
		{
			name:         "sentinel=-1, flag=0 (off) is valid and used",
			env:          "",
			flagSeconds:  0,
			sentinel:     -1,
			defSeconds:   300,
			expectDur:    0 * time.Second,
			expectCustom: true,
		},
		{
			name:         "sentinel=-1, flag=-1 -> default",
			env:          "",
			flagSeconds:  -1,
			sentinel:     -1,
			defSeconds:   300,
			expectDur:    300 * time.Second,
			expectCustom: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(key, tc.env)
			got, custom := FromEnvOrFlagDuration(key, tc.flagSeconds, tc.sentinel, tc.defSeconds)
			if got != tc.expectDur || custom != tc.expectCustom {
				t.Fatalf("got (%v, %v), want (%v, %v)", got, custom, tc.expectDur, tc.expectCustom)
			}
		})
	}
}

func TestFromEnvOrFlagBool(t *testing.T) {
	const key = "TEST_BOOL_OPT"
	tests := []struct {
		env  string
		flag bool
		want bool
	}{
		{"", false, false},
		{"", true, true},
		{"true", false, true},
		{"no", true, false},
		{"maybe", true, true},
	}
	for _, tc := range tests {
		t.Setenv(key, tc.env)
		if got := FromEnvOrFlagBool(key, tc.flag); got != tc.want {
			t.Errorf("env=%q flag=%v: got %v, want %v", tc.env, tc.flag, got, tc.want)
		}
	}
}
