package skills

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	skillpkg "github.com/microclaw/microclaw/internal/skills"
)

func TestSyncToolReportsLoadedSkills(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, skillpkg.Filename), []byte(`---
name: deploy
description: deploys things
---
body
`), 0o644); err != nil {
		t.Fatal(err)
	}

	tool := &SyncTool{Manager: skillpkg.NewManager(root)}
	res, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("sync_skills reported a tool error: %s", res.Content)
	}
	if !strings.Contains(res.Content, "deploy") {
		t.Fatalf("expected result to mention the loaded skill, got %q", res.Content)
	}
}
