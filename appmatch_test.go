package main

import "testing"

func TestDetectApp(t *testing.T) {
	tbl := tableFromCSV(t, "app_user_id,project_name,status\nu1,Girl Talk,active\n")
	detected, column := detectApp(tbl)
	if detected != "Girl Talk" || column != "project_name" {
		t.Fatalf("expected (Girl Talk, project_name), got (%s, %s)", detected, column)
	}
}

func TestDetectAppFromProductIdentifier(t *testing.T) {
	tbl := tableFromCSV(t, "app_user_id,product_identifier,price\nu1,com.tangent.girltalk.monthly,0\n")
	detected, column := detectApp(tbl)
	if detected != "com.tangent.girltalk.monthly" || column != "product_identifier" {
		t.Fatalf("expected product identifier detection, got (%s, %s)", detected, column)
	}
}

func TestDetectAppSkipsBlankLeadingRows(t *testing.T) {
	tbl := tableFromCSV(t, "app_user_id,app_name\nu1,\nu2,Sleepy\n")
	detected, _ := detectApp(tbl)
	if detected != "Sleepy" {
		t.Fatalf("expected Sleepy, got %q", detected)
	}
}

func TestMatchApp(t *testing.T) {
	apps := []AppConfig{
		{Name: "Girl Talk", Slug: "girl-talk", RCProjectID: "proj123abc"},
		{Name: "Sleepy", Slug: "sleepy"},
	}

	cases := []struct {
		detected string
		want     string
	}{
		{"proj123abc", "girl-talk"},
		{"Girl Talk Production", "girl-talk"},
		{"sleepy", "sleepy"},
		{"com.tangent.girltalk.monthly", "girl-talk"}, // compacted slug vs product prefix
		{"", ""},
		{"unknown-app", ""},
	}
	for _, tc := range cases {
		app := matchApp(tc.detected, apps)
		got := ""
		if app != nil {
			got = app.Slug
		}
		if got != tc.want {
			t.Fatalf("matchApp(%q): expected %q, got %q", tc.detected, tc.want, got)
		}
	}
}

func TestFallbackAppName(t *testing.T) {
	tbl := tableFromCSV(t, "app_user_id,status\nu1,active\n")
	if got := fallbackAppName(tbl); got != "App" {
		t.Fatalf("expected default App, got %q", got)
	}
}
