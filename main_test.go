package main

import (
	"testing"

	"sqlgateway/cmd"
)

func TestVersionDefault(t *testing.T) {
	if version != "dev" {
		t.Errorf("expected default version to be 'dev', got %s", version)
	}
}

func TestVersionOverride(t *testing.T) {
	original := version
	defer func() { version = original }()

	version = "1.2.3"
	cmd.SetVersion(version)
	if version != "1.2.3" {
		t.Errorf("expected version to be 1.2.3, got %s", version)
	}
}
