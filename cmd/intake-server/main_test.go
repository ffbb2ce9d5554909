package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/config"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/domain/simulation"
	"github.com/ehr/intake/internal/platform/clock"
	"github.com/ehr/intake/internal/platform/storage"
	"github.com/ehr/intake/internal/platform/telemetry"
	"github.com/ehr/intake/internal/platform/websocket"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:              "test",
		StorageDriver:    storage.DriverMemory,
		SavedDisplayMS:   2000,
		RequestTimeoutMS: 5000,
		CORSOrigins:      []string{"http://localhost:3000"},
	}
}

func testOptions(st storage.Store) intake.Options {
	return registryOptions(testConfig(), st, simulation.BuiltinFixtures(), telemetry.New(),
		clock.NewManual(time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)), zerolog.Nop())
}

func TestServer_Routes(t *testing.T) {
	st := storage.NewMemory()
	metrics := telemetry.New()
	reg := intake.NewRegistry(testOptions(st))
	e := newServer(testConfig(), reg, websocket.NewHub(zerolog.Nop()), st, metrics, zerolog.Nop())

	cases := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/health/storage", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/v1/patients/p-1/sections/past_history", http.StatusOK},
		{"/api/v1/patients/p-1/obstetric/gtpal", http.StatusOK},
		{"/api/v1/patients/p-1/sections/unknown", http.StatusNotFound},
		{"/api/v1/patients/-bad/events", http.StatusBadRequest},
		{"/api/v1/patients/p-1/events", http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.path, tc.want, rec.Code)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing request id header", tc.path)
		}
	}
}

func TestRegistryOptions_SimulationMode(t *testing.T) {
	cfg := testConfig()
	f := simulation.BuiltinFixtures()
	if opts := registryOptions(cfg, storage.NewMemory(), f, nil, clock.Real{}, zerolog.Nop()); opts.Loader != nil {
		t.Error("no loader expected without SIMULATION_MODE")
	}
	cfg.SimulationMode = "has_previous_visit"
	if opts := registryOptions(cfg, storage.NewMemory(), f, nil, clock.Real{}, zerolog.Nop()); opts.Loader == nil {
		t.Error("expected fixture loader for has_previous_visit")
	}
}

type persistedVisit struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	Answer     string `json:"answer"`
	Conditions []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Since  string `json:"since"`
	} `json:"conditions"`
}

func TestRunScenario_FirstVisit(t *testing.T) {
	st := storage.NewMemory()
	var out bytes.Buffer
	if err := runScenario(context.Background(), testOptions(st), "demo", simulation.ModeFirstVisit, &out); err != nil {
		t.Fatalf("runScenario: %v", err)
	}

	var visits []persistedVisit
	if err := json.Unmarshal(out.Bytes(), &visits); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if len(visits) != 1 {
		t.Fatalf("expected 1 visit, got %d", len(visits))
	}
	v := visits[0]
	if v.Answer != "yes" || v.Date != "2026-10-17" {
		t.Errorf("unexpected visit header: %+v", v)
	}
	active := 0
	for _, c := range v.Conditions {
		if c.Status == "active" {
			active++
			if c.Since != "2020" {
				t.Errorf("expected since 2020, got %q", c.Since)
			}
		}
	}
	if active != 1 {
		t.Errorf("expected exactly one active condition, got %d", active)
	}
}

func TestRunScenario_PreviousVisit(t *testing.T) {
	st := storage.NewMemory()
	var out bytes.Buffer
	if err := runScenario(context.Background(), testOptions(st), "demo", simulation.ModeHasPreviousVisit, &out); err != nil {
		t.Fatalf("runScenario: %v", err)
	}
	if !strings.Contains(out.String(), "Hypothyroidism") {
		t.Errorf("expected copied fixture conditions, got %s", out.String())
	}
}

func TestPrintHistory(t *testing.T) {
	st := storage.NewMemory()
	ctx := context.Background()
	if err := runScenario(ctx, testOptions(st), "demo", simulation.ModeFirstVisit, &bytes.Buffer{}); err != nil {
		t.Fatalf("runScenario: %v", err)
	}

	var out bytes.Buffer
	if err := printHistory(ctx, st, "demo", "past_history", &out); err != nil {
		t.Fatalf("printHistory: %v", err)
	}
	if !strings.Contains(out.String(), "2026-10-17") || !strings.Contains(out.String(), "yes") {
		t.Errorf("unexpected output: %s", out.String())
	}

	out.Reset()
	if err := printHistory(ctx, st, "demo", "obstetric", &out); err != nil {
		t.Fatalf("printHistory: %v", err)
	}
	if !strings.Contains(out.String(), "No saved visits") {
		t.Errorf("unexpected output: %s", out.String())
	}

	if err := printHistory(ctx, st, "demo", "dental", &out); err == nil {
		t.Error("expected error for unknown section")
	}
}
