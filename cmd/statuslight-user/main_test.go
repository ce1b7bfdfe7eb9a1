package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"dev.acmcsuf.com/statuslight/credentials"
)

func TestRootCmd(t *testing.T) {
	file := filepath.Join(t.TempDir(), "users.json")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--file", file, "--username", "admin", "--password", "hunter2"})

	if err := cmd.Execute(); err != nil {
		t.Fatal("command failed:", err)
	}
	if !strings.Contains(out.String(), `user "admin" updated`) {
		t.Errorf("unexpected output: %q", out.String())
	}

	store := &credentials.Store{Path: file}
	if ok, err := store.Verify("admin", "hunter2"); !ok || err != nil {
		t.Errorf("Verify = %v, %v", ok, err)
	}
}

func TestRootCmdRequiresUsername(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--file", filepath.Join(t.TempDir(), "users.json"), "--password", "x"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error without --username")
	}
}
