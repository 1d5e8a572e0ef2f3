package ops

import (
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/yanun0323/errors"

	"main/internal/risk"
	"main/internal/schema"
	"main/internal/wal"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Log        LogConfig        `json:"log"`
	Checkpoint CheckpointConfig `json:"checkpoint"`
	Position   PositionConfig   `json:"position"`
	Risk       risk.Config      `json:"risk"`
	Archive    ArchiveConfig    `json:"archive"`
	Simulator  SimulatorConfig  `json:"simulator"`
}

// LogConfig describes the write-ahead log location and durability mode.
type LogConfig struct {
	Dir               string `json:"dir"`
	FilePrefix        string `json:"filePrefix"`
	SegmentMaxBytes   int64  `json:"segmentMaxBytes"`
	SegmentMaxRecords int    `json:"segmentMaxRecords"`
	SyncOnAppend      *bool  `json:"syncOnAppend"`
	FlushIntervalMs   int    `json:"flushIntervalMs"`
	SyncIntervalMs    int    `json:"syncIntervalMs"`
	RetainSegments    int    `json:"retainSegments"`
	RetainAgeHours    int    `json:"retainAgeHours"`
}

// CheckpointConfig controls periodic snapshot records.
type CheckpointConfig struct {
	Interval int `json:"interval"`
}

// PositionConfig selects the cost basis method for the ledger.
type PositionConfig struct {
	CostBasis string `json:"costBasis"`
}

// ArchiveConfig describes the optional terminal-order archive database.
type ArchiveConfig struct {
	Enable   bool   `json:"enable"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbName"`
}

// SimulatorConfig describes the built-in exchange simulator.
type SimulatorConfig struct {
	Enable    bool   `json:"enable"`
	Seed      int64  `json:"seed"`
	Symbol    string `json:"symbol"`
	FillSlice int    `json:"fillSlice"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Log                wal.Config
	CheckpointInterval int
	CostBasis          schema.CostBasisMethod
	Risk               risk.Config
	Archive            ArchiveConfig
	Simulator          SimulatorConfig
}

// Load reads a JSON config file and resolves defaults.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "parse config")
	}
	return Resolve(cfg)
}

// Resolve turns a file config into runtime settings.
func Resolve(cfg FileConfig) (Loaded, error) {
	logCfg, err := resolveLog(cfg.Log)
	if err != nil {
		return Loaded{}, err
	}
	method, err := resolveCostBasis(cfg.Position.CostBasis)
	if err != nil {
		return Loaded{}, err
	}
	interval := cfg.Checkpoint.Interval
	if interval <= 0 {
		interval = 1000
	}
	sim := cfg.Simulator
	if sim.FillSlice <= 0 {
		sim.FillSlice = 1
	}
	if cfg.Archive.Enable {
		if cfg.Archive.Host == "" || cfg.Archive.DBName == "" {
			return Loaded{}, errors.New("archive requires host and dbName")
		}
	}
	return Loaded{
		Log:                logCfg,
		CheckpointInterval: interval,
		CostBasis:          method,
		Risk:               cfg.Risk,
		Archive:            cfg.Archive,
		Simulator:          sim,
	}, nil
}

func resolveLog(cfg LogConfig) (wal.Config, error) {
	if cfg.Dir == "" {
		return wal.Config{}, errors.New("log dir is empty")
	}
	out := wal.DefaultConfig(cfg.Dir)
	if cfg.FilePrefix != "" {
		out.FilePrefix = cfg.FilePrefix
	}
	if cfg.SegmentMaxBytes > 0 {
		out.SegmentMaxBytes = cfg.SegmentMaxBytes
	}
	if cfg.SegmentMaxRecords > 0 {
		out.SegmentMaxRecords = int64(cfg.SegmentMaxRecords)
	}
	if cfg.SyncOnAppend != nil {
		out.SyncOnAppend = *cfg.SyncOnAppend
	}
	if cfg.FlushIntervalMs > 0 {
		out.FlushInterval = time.Duration(cfg.FlushIntervalMs) * time.Millisecond
	}
	if cfg.SyncIntervalMs > 0 {
		out.SyncInterval = time.Duration(cfg.SyncIntervalMs) * time.Millisecond
	}
	if cfg.RetainSegments > 0 {
		out.RetainSegments = cfg.RetainSegments
	}
	if cfg.RetainAgeHours > 0 {
		out.RetainAge = time.Duration(cfg.RetainAgeHours) * time.Hour
	}
	if err := out.Validate(); err != nil {
		return wal.Config{}, err
	}
	return out, nil
}

func resolveCostBasis(name string) (schema.CostBasisMethod, error) {
	switch name {
	case "", "weightedAverage":
		return schema.CostBasisWeightedAverage, nil
	case "fifo":
		return schema.CostBasisFIFO, nil
	default:
		return 0, errors.Errorf("unknown cost basis method: %s", name)
	}
}
