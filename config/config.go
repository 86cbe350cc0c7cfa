package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
}

// EngineConfig is the project configuration.
type EngineConfig struct {
	Production bool            `yaml:"production"`
	Dataset    DatasetConfig   `yaml:"dataset"`
	EventLog   EventLogConfig  `yaml:"event_log"`
	Watermark  WatermarkConfig `yaml:"watermark"`
	Rules      RulesConfig     `yaml:"rules"`
	Pipeline   PipelineConfig  `yaml:"pipeline"`
	Output     OutputConfig    `yaml:"output"`
	Ingest     IngestConfig    `yaml:"ingest"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// DatasetConfig identifies the dataset this engine instance processes.
type DatasetConfig struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// EventLogConfig controls event log access. An empty DSN selects the
// in-memory log (events arrive only through the ingest API).
type EventLogConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// WatermarkConfig controls watermark persistence. An empty addr selects the
// in-memory store.
type WatermarkConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig controls Redis access.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RulesConfig points at the rule source directory.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// PipelineConfig controls pipeline behavior.
type PipelineConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	EventTimeout time.Duration `yaml:"event_timeout"`
	CallLimit    int64         `yaml:"call_limit"`
}

// OutputConfig controls the analytical store sink.
type OutputConfig struct {
	Mode       string           `yaml:"mode"` // clickhouse|file
	FactTable  string           `yaml:"fact_table"`
	LabelTable string           `yaml:"label_table"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	File       FileOutputConfig `yaml:"file"`
}

// ClickHouseConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// FileOutputConfig config for local JSONL output.
type FileOutputConfig struct {
	Dir string `yaml:"dir"`
}

// IngestConfig controls the ingestion HTTP API.
type IngestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
