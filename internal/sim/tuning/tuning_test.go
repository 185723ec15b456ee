package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeYAML(t, "hostile_radius: 35\nworld:\n  parties: 12\n")
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.HostileRadius != 35 || got.World.Parties != 12 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.SampleIntervalHours != 24 || got.World.Factions != 4 || got.LogDir != "logs" {
		t.Fatalf("defaults lost: %+v", got)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeYAML(t, "hostile_radius: [\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidate(t *testing.T) {
	tu := Defaults()
	tu.FlushEveryHours = 6
	tu.LogFormat = "xml"
	if err := tu.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestNormalize(t *testing.T) {
	tu := Tuning{LogDir: "x", World: World{Factions: 1}}
	tu.Normalize()
	if tu.SampleIntervalHours != 24 || tu.FlushEveryHours != 24 || tu.SeasonLengthDays != 30 {
		t.Fatalf("normalize: %+v", tu)
	}
}

func TestResolveAppliesEnv(t *testing.T) {
	t.Setenv("CAMPAIGNLAB_LOG_DIR", "/tmp/campaign-logs")
	t.Setenv("CAMPAIGNLAB_SEED", "99")
	t.Setenv("CAMPAIGNLAB_LOG_FORMAT", "json")
	path := writeYAML(t, "log_dir: ignored\n")

	got, err := Resolve(path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.LogDir != "/tmp/campaign-logs" || got.World.Seed != 99 || got.LogFormat != "json" {
		t.Fatalf("env not applied: %+v", got)
	}
}

func TestResolveBadEnv(t *testing.T) {
	t.Setenv("CAMPAIGNLAB_SEED", "not-a-number")
	if _, err := Resolve(""); err == nil {
		t.Fatalf("expected env parse error")
	}
}
