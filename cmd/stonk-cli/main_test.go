package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"

	"stonklytics/internal/domain"
)

func TestAsk(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"Yes\n", true},
		{"  y  \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := ask(strings.NewReader(tt.in), &out, "Sure?"); got != tt.want {
			t.Errorf("ask(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if out.String() != "Sure? [y/N] " {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

func TestParse(t *testing.T) {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	list := fs.String("list", "", "")
	rest, err := parse(fs, []string{"-list", "w1", "aapl"}, 1)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *list != "w1" || len(rest) != 1 || rest[0] != "aapl" {
		t.Errorf("list = %q, rest = %v", *list, rest)
	}

	fs = flag.NewFlagSet("quote", flag.ContinueOnError)
	_, err = parse(fs, nil, 1)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("missing argument: err = %v", err)
	}
}

func TestHostOr(t *testing.T) {
	for in, want := range map[string]string{
		"":          "localhost",
		"0.0.0.0":   "localhost",
		"10.0.0.5":  "10.0.0.5",
		"localhost": "localhost",
	} {
		if got := hostOr(in, "localhost"); got != want {
			t.Errorf("hostOr(%q) = %q, want %q", in, got, want)
		}
	}
}
