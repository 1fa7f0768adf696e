package config

import "testing"

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	SetConfigDir(t.TempDir())
	defer SetConfigDir("")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if *cfg != want {
		t.Fatalf("got %+v, want defaults %+v", *cfg, want)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	SetConfigDir(t.TempDir())
	defer SetConfigDir("")

	cfg := Defaults()
	cfg.Workers = 12
	cfg.SkipSystemLibs = false
	if err := Save(&cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Workers != 12 || got.SkipSystemLibs != false {
		t.Fatalf("got %+v, want Workers=12 SkipSystemLibs=false", *got)
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	SetConfigDir(t.TempDir())
	defer SetConfigDir("")

	if err := Set("history_cap", "42"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := Get("history_cap")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "42" {
		t.Fatalf("Get(history_cap) = %q, want 42", got)
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	if _, err := Get("not_a_real_key"); err == nil {
		t.Fatal("expected error for unknown key")
	}
	if err := Set("not_a_real_key", "x"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}
