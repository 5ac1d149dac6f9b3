package dashboard

import (
	"context"
	"strings"
	"testing"
)

func TestAppAnalyzesCursorRow(t *testing.T) {
	srv := newAnalysisServer(t)
	app := NewApp(newModel(t, seeded()), newAnalyzeModel(srv))
	if app.Analyzing() {
		t.Fatal("app should start on the watchlist")
	}

	press(app, "A")
	if !app.Analyzing() {
		t.Fatal("A should open the analysis screen")
	}
	if a := app.analyze.Result(); a == nil || a.Ticker != "AAPL" {
		t.Fatalf("result = %+v, want the cursor row AAPL", a)
	}
	if !strings.Contains(app.View(), "Stock Analysis") {
		t.Error("view should show the analysis screen")
	}

	press(app, "esc")
	if app.Analyzing() {
		t.Error("esc should return to the watchlist")
	}
	if !strings.Contains(app.View(), "Portfolio") {
		t.Error("view should show the watchlist")
	}
}

func TestAppKeepsKeysInAddPrompt(t *testing.T) {
	srv := newAnalysisServer(t)
	m := newModel(t, seeded())
	app := NewApp(m, newAnalyzeModel(srv))

	press(app, "a", "A")
	if app.Analyzing() {
		t.Fatal("A typed into the add prompt should not switch screens")
	}
	if got := m.input.Value(); got != "A" {
		t.Errorf("prompt = %q, want A", got)
	}
	if srv.calls() != 0 {
		t.Errorf("analysis calls = %d, want 0", srv.calls())
	}
}

func TestAppAnalysisOnly(t *testing.T) {
	srv := newAnalysisServer(t)
	app := NewApp(nil, newAnalyzeModel(srv))
	if !app.Analyzing() {
		t.Fatal("without a watchlist the app should open on analysis")
	}
	press(app, "esc")
	if !app.Analyzing() {
		t.Error("esc has nowhere to go back to")
	}
	press(app, "/", "tsla", "enter")
	if a := app.analyze.Result(); a == nil || a.Ticker != "TSLA" {
		t.Errorf("result = %+v", a)
	}
}

func TestAppStartWith(t *testing.T) {
	srv := newAnalysisServer(t)
	m := New(context.Background(), Options{Client: seeded(), Lookup: fakeLookup()})
	app := NewApp(m, newAnalyzeModel(srv))
	app.StartWith("msft")
	for _, msg := range drain(app.Init()) {
		settle(app, msg)
	}
	if !app.Analyzing() {
		t.Fatal("StartWith should open the analysis screen")
	}
	if a := app.analyze.Result(); a == nil || a.Ticker != "MSFT" {
		t.Errorf("result = %+v", a)
	}
	if len(m.Rows()) != 3 {
		t.Errorf("watchlist rows = %d, want 3 loaded behind the analysis screen", len(m.Rows()))
	}
}
