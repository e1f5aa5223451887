package main

import (
	"path/filepath"
	"testing"
)

func TestResolveTargets(t *testing.T) {
	dir := t.TempDir()

	targets, err := resolveTargets([]string{dir, "relative/child"})
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0] != dir {
		t.Errorf("absolute path changed: %s", targets[0])
	}
	if !filepath.IsAbs(targets[1]) {
		t.Errorf("relative path not resolved: %s", targets[1])
	}
}

func TestResolveTargetsDefault(t *testing.T) {
	targets, err := resolveTargets(nil)
	if err != nil {
		t.Fatalf("resolveTargets: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected the working directory, got %v", targets)
	}
	if !filepath.IsAbs(targets[0]) {
		t.Errorf("default target not absolute: %s", targets[0])
	}
}

func TestCommandRegistration(t *testing.T) {
	want := map[string]bool{
		"size":    false,
		"status":  false,
		"start":   false,
		"stop":    false,
		"restart": false,
		"refresh": false,
		"config":  false,
		"version": false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}
