package main

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Index is data/index.json: which apps have snapshots and for which
// dates. The frontend reads this file to know what it can chart.
type Index struct {
	Apps        []string            `json:"apps"`
	AppNames    map[string]string   `json:"app_names"`
	Data        map[string][]string `json:"data"`
	LastUpdated string              `json:"last_updated"`
}

// updateIndex regenerates the index from the snapshot files actually on
// disk, so a manual delete or a failed run can never leave it stale.
func updateIndex(dataDir string, apps []AppConfig, now time.Time) (Index, error) {
	index := Index{
		Apps:        make([]string, 0, len(apps)),
		AppNames:    make(map[string]string, len(apps)),
		Data:        map[string][]string{},
		LastUpdated: now.UTC().Format(time.RFC3339),
	}

	for _, app := range apps {
		index.Apps = append(index.Apps, app.Slug)
		index.AppNames[app.Slug] = app.Name

		entries, err := os.ReadDir(filepath.Join(dataDir, app.Slug))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Index{}, err
		}
		dates := []string{}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			dates = append(dates, strings.TrimSuffix(name, ".json"))
		}
		if len(dates) > 0 {
			sort.Strings(dates)
			index.Data[app.Slug] = dates
		}
	}

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return Index{}, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return Index{}, err
	}
	if err := os.WriteFile(filepath.Join(dataDir, "index.json"), data, 0644); err != nil {
		return Index{}, err
	}
	return index, nil
}
