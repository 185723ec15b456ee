package tuning

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	SampleIntervalHours float64 `yaml:"sample_interval_hours"`
	HostileRadius       float64 `yaml:"hostile_radius"`
	FlushEveryHours     float64 `yaml:"flush_every_hours"`
	SeasonLengthDays    int     `yaml:"season_length_days"`

	LogDir    string `yaml:"log_dir"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	IndexDB        string `yaml:"index_db"`
	ArchiveSeasons bool   `yaml:"archive_seasons"`

	SnapshotPath      string `yaml:"snapshot_path"`
	SnapshotEveryDays int    `yaml:"snapshot_every_days"`

	World World `yaml:"world"`
}

type World struct {
	Seed                  int64   `yaml:"seed"`
	Factions              int     `yaml:"factions"`
	SettlementsPerFaction int     `yaml:"settlements_per_faction"`
	Parties               int     `yaml:"parties"`
	MapSize               float64 `yaml:"map_size"`
	GameVersion           string  `yaml:"game_version"`
}

func Defaults() Tuning {
	return Tuning{
		SampleIntervalHours: 24,
		HostileRadius:       20,
		FlushEveryHours:     24,
		SeasonLengthDays:    30,
		LogDir:              "logs",
		LogLevel:            "info",
		LogFormat:           "console",
		SnapshotEveryDays:   30,
		World: World{
			Seed:                  1337,
			Factions:              4,
			SettlementsPerFaction: 8,
			Parties:               40,
			MapSize:               600,
			GameVersion:           "Native@v1.2.9",
		},
	}
}

// Load reads a yaml file over Defaults; keys absent from the file keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize replaces non-positive cadences with their defaults.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.SampleIntervalHours <= 0 {
		t.SampleIntervalHours = d.SampleIntervalHours
	}
	if t.HostileRadius <= 0 {
		t.HostileRadius = d.HostileRadius
	}
	if t.FlushEveryHours <= 0 {
		t.FlushEveryHours = d.FlushEveryHours
	}
	if t.SeasonLengthDays <= 0 {
		t.SeasonLengthDays = d.SeasonLengthDays
	}
	if t.LogLevel == "" {
		t.LogLevel = d.LogLevel
	}
	if t.LogFormat == "" {
		t.LogFormat = d.LogFormat
	}
}

func (t Tuning) Validate() error {
	var errs []error
	if t.LogDir == "" {
		errs = append(errs, errors.New("log_dir is required"))
	}
	if t.FlushEveryHours < t.SampleIntervalHours {
		errs = append(errs, fmt.Errorf("flush_every_hours (%g) is shorter than sample_interval_hours (%g)", t.FlushEveryHours, t.SampleIntervalHours))
	}
	switch t.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be console or json", t.LogFormat))
	}
	if t.World.Factions < 1 {
		errs = append(errs, errors.New("world.factions must be at least 1"))
	}
	if t.World.Parties < 0 || t.World.SettlementsPerFaction < 0 {
		errs = append(errs, errors.New("world counts must not be negative"))
	}
	return errors.Join(errs...)
}

// Env holds the environment overrides. Zero values mean unset.
type Env struct {
	LogDir    string `env:"CAMPAIGNLAB_LOG_DIR"`
	LogLevel  string `env:"CAMPAIGNLAB_LOG_LEVEL"`
	LogFormat string `env:"CAMPAIGNLAB_LOG_FORMAT"`
	IndexDB   string `env:"CAMPAIGNLAB_INDEX_DB"`
	Seed      int64  `env:"CAMPAIGNLAB_SEED"`
	Parties   int    `env:"CAMPAIGNLAB_PARTIES"`
}

// ParseEnv loads overrides from the process environment.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return e, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Apply copies the set overrides onto t.
func (e Env) Apply(t *Tuning) {
	if e.LogDir != "" {
		t.LogDir = e.LogDir
	}
	if e.LogLevel != "" {
		t.LogLevel = e.LogLevel
	}
	if e.LogFormat != "" {
		t.LogFormat = e.LogFormat
	}
	if e.IndexDB != "" {
		t.IndexDB = e.IndexDB
	}
	if e.Seed != 0 {
		t.World.Seed = e.Seed
	}
	if e.Parties > 0 {
		t.World.Parties = e.Parties
	}
}

// Resolve loads path (or Defaults when path is empty) and applies environment overrides.
func Resolve(path string) (Tuning, error) {
	t := Defaults()
	if path != "" {
		var err error
		if t, err = Load(path); err != nil {
			return t, err
		}
	}
	e, err := ParseEnv()
	if err != nil {
		return t, err
	}
	e.Apply(&t)
	t.Normalize()
	return t, t.Validate()
}
