package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"run":      false,
		"validate": false,
		"version":  false,
		"audit":    false,
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

func TestVersionCommand(t *testing.T) {
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q", versionCmd.Use)
	}
	if versionCmd.Run == nil {
		t.Error("versionCmd.Run is nil")
	}
	if Version == "" {
		t.Error("Version is empty")
	}
}

func TestValidateCommandAcceptsMinimalConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "proxy:\n  listen_address: \"127.0.0.1:9999\"\naudit:\n  path: " + filepath.Join(dir, "audit.db") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	origCfg := cfgFile
	cfgFile = path
	defer func() { cfgFile = origCfg }()

	if err := validateConfig(validateCmd, nil); err != nil {
		t.Errorf("validateConfig: %v", err)
	}
}

func TestValidateCommandRejectsBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("upstream:\n  base_url: \"not a url\"\nallowlist:\n  - \"999.1.1.1\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	origCfg := cfgFile
	cfgFile = path
	defer func() { cfgFile = origCfg }()

	if err := validateConfig(validateCmd, nil); err == nil {
		t.Error("validateConfig accepted a broken upstream URL and allowlist entry")
	}
}
