package main

import "strings"

// AppConfig describes one application we expect to find exports for.
type AppConfig struct {
	Name        string `json:"name" koanf:"name"`
	Slug        string `json:"slug" koanf:"slug"`
	RCProjectID string `json:"rc_project_id" koanf:"rc_project_id"`
}

// detectionRows caps how far down an export we look for an identity;
// exports are homogeneous per app, so the first few rows settle it.
const detectionRows = 5

var identityColumns = []string{"project_name", "app_name", "project_id", "app_id"}

// detectApp scans the leading rows of an export for something that
// identifies which app it belongs to, returning the value and the
// column it came from.
func detectApp(tbl *Table) (string, string) {
	for _, name := range identityColumns {
		idx, ok := tbl.column(name)
		if !ok {
			continue
		}
		for i := 0; i < tbl.Len() && i < detectionRows; i++ {
			if value := tbl.value(i, idx); value != "" {
				return value, name
			}
		}
	}
	if idx, ok := tbl.column("product_identifier"); ok {
		for i := 0; i < tbl.Len() && i < detectionRows; i++ {
			if value := tbl.value(i, idx); value != "" {
				return value, "product_identifier"
			}
		}
	}
	return "", ""
}

// fallbackAppName is the single-file-mode default when no app name was
// passed on the command line.
func fallbackAppName(tbl *Table) string {
	for _, name := range []string{"project_name", "app_name"} {
		idx, ok := tbl.column(name)
		if !ok {
			continue
		}
		for i := 0; i < tbl.Len() && i < detectionRows; i++ {
			if value := tbl.value(i, idx); value != "" {
				return value
			}
		}
	}
	return "App"
}

// matchApp resolves a detected identifier against the configured apps.
// Matching is loose on purpose: project id, name and slug substring
// matches in either direction, then a compacted slug against a
// compacted product identifier (com.example.girltalk vs girl-talk).
func matchApp(detected string, apps []AppConfig) *AppConfig {
	if detected == "" {
		return nil
	}
	lower := strings.ToLower(detected)

	for i := range apps {
		app := &apps[i]
		if projectID := strings.ToLower(app.RCProjectID); projectID != "" {
			if strings.Contains(lower, projectID) || strings.Contains(projectID, lower) {
				return app
			}
		}
		if name := strings.ToLower(app.Name); name != "" {
			if strings.Contains(lower, name) || strings.Contains(name, lower) {
				return app
			}
		}
		if slug := strings.ToLower(app.Slug); slug != "" {
			if strings.Contains(lower, slug) || strings.Contains(slug, lower) {
				return app
			}
		}
		if compacted := compact(app.Slug); compacted != "" && strings.Contains(compact(detected), compacted) {
			return app
		}
	}
	return nil
}

func compact(value string) string {
	value = strings.ToLower(value)
	for _, cut := range []string{".", "-", "_", " "} {
		value = strings.ReplaceAll(value, cut, "")
	}
	return value
}
