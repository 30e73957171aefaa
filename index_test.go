package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestUpdateIndex(t *testing.T) {
	dataDir := t.TempDir()
	apps := []AppConfig{
		{Name: "Girl Talk", Slug: "girl-talk"},
		{Name: "Sleepy", Slug: "sleepy"},
	}

	appDir := filepath.Join(dataDir, "girl-talk")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"2026-02-02.json", "2026-01-15.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(appDir, name), []byte("{}"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	now := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	index, err := updateIndex(dataDir, apps, now)
	if err != nil {
		t.Fatalf("update index: %v", err)
	}

	if len(index.Apps) != 2 {
		t.Fatalf("expected 2 apps, got %d", len(index.Apps))
	}
	if index.AppNames["girl-talk"] != "Girl Talk" {
		t.Fatalf("app names wrong: %+v", index.AppNames)
	}
	dates := index.Data["girl-talk"]
	if len(dates) != 2 || dates[0] != "2026-01-15" || dates[1] != "2026-02-02" {
		t.Fatalf("dates should be sorted json stems: %v", dates)
	}
	if _, ok := index.Data["sleepy"]; ok {
		t.Fatalf("app without snapshots should have no data entry")
	}
	if index.LastUpdated != "2026-03-01T06:00:00Z" {
		t.Fatalf("last_updated: got %s", index.LastUpdated)
	}

	// the file on disk round-trips
	raw, err := os.ReadFile(filepath.Join(dataDir, "index.json"))
	if err != nil {
		t.Fatalf("read index.json: %v", err)
	}
	var onDisk Index
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("unmarshal index.json: %v", err)
	}
	if len(onDisk.Data["girl-talk"]) != 2 {
		t.Fatalf("index.json content wrong: %s", raw)
	}
}
