package cmd

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeArgs(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{nil, nil},
		{[]string{"a.xlsx"}, []string{"gen", "a.xlsx"}},
		{[]string{"--out", "dir", "a.csv"}, []string{"gen", "--out", "dir", "a.csv"}},
		{[]string{"-o", "dir"}, []string{"-o", "dir"}},
		{[]string{"--verbose", "--row-errors=continue", "a.csv"}, []string{"gen", "--verbose", "--row-errors=continue", "a.csv"}},
		{[]string{"--", "a.csv"}, []string{"gen", "--", "a.csv"}},
		{[]string{"--session", "team"}, []string{"--session", "team"}},
		{[]string{"export", "-o", "x"}, []string{"export", "-o", "x"}},
		{[]string{"set", "key", "k"}, []string{"set", "key", "k"}},
		{[]string{"--version"}, []string{"--version"}},
		{[]string{"--session", "team", "status"}, []string{"--session", "team", "status"}},
		{[]string{"--session", "team", "export"}, []string{"--session", "team", "export"}},
		{[]string{"--verbose", "status"}, []string{"--verbose", "status"}},
		{[]string{"-o", "out", "load", "a.csv"}, []string{"-o", "out", "load", "a.csv"}},
		{[]string{"--config", "c.yaml", "set", "key", "k"}, []string{"--config", "c.yaml", "set", "key", "k"}},
		{[]string{"--session", "team", "a.csv"}, []string{"gen", "--session", "team", "a.csv"}},
		{[]string{"--", "status"}, []string{"gen", "--", "status"}},
	}
	for _, c := range cases {
		if got := normalizeArgs(c.in); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("normalizeArgs(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFormatDurationMS(t *testing.T) {
	cases := map[int64]string{
		-5:      "0ms",
		250:     "250ms",
		1500:    "1.50s",
		120_000: "2m",
		125_500: "2m5.5s",
	}
	for in, want := range cases {
		if got := formatDurationMS(in); got != want {
			t.Fatalf("%d => %s, want %s", in, got, want)
		}
	}
}

func TestVersionOutput(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()
	Version, Commit = "1.2.3", "abc123"

	for _, args := range [][]string{{"version"}, {"--version"}, {"-v"}} {
		var out bytes.Buffer
		root := NewRootCmd(&out, &bytes.Buffer{})
		root.SetArgs(args)
		if err := root.Execute(); err != nil {
			t.Fatalf("%v failed: %v", args, err)
		}
		if !strings.Contains(out.String(), "luki-produkttexte 1.2.3 (commit abc123") {
			t.Fatalf("unexpected version output for %v: %s", args, out.String())
		}
	}
}

func TestRootWithoutArgsShowsHelp(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd(&out, &bytes.Buffer{})
	root.SetArgs(nil)
	if err := root.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(out.String(), "export") {
		t.Fatalf("expected help text, got %s", out.String())
	}
}

func TestGenRequiresOneFile(t *testing.T) {
	root := NewRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	root.SetArgs([]string{"gen"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected argument error")
	}
}
