package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/rtk-mem/rtk-mem/internal/atomicio"
)

// EnvPrefix is the prefix recognized for configuration overrides, e.g.
// RTK_MEM_CACHE_TTL_SECS overrides cache.ttl_secs.
const EnvPrefix = "RTK_MEM_"

// DBPathEnvVar overrides the store path independently of the rest of the
// config tree, matching the grounding source's standalone override.
const DBPathEnvVar = "RTK_MEM_DB_PATH"

// Load reads configuration from the given YAML file, then overlays
// RTK_MEM_* environment variable overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if section, rest, ok := strings.Cut(key, "_"); ok {
			switch section {
			case "write", "cache", "analyzer", "churn", "plan", "server", "watch", "episode":
				return section + "." + rest
			}
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if v := os.Getenv(DBPathEnvVar); v != "" {
		cfg.DBPath = v
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path. The write is
// atomic (temp file + fsync + rename via internal/atomicio) so a reader
// never observes a truncated or half-written config, and a concurrent
// writer to the same path is serialized by the sidecar flock rather than
// corrupting the file.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	guard, err := atomicio.AcquireFileLock(path)
	if err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	defer guard.Close()

	writer := atomicio.NewAtomicWriter(atomicio.DefaultWriteOptions())
	if _, err := writer.Write(path, data); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate rejects out-of-range TTLs, caps, and weights.
func (c *Config) Validate() error {
	if c.Cache.TTLSecs < 0 {
		return fmt.Errorf("cache.ttl_secs must be non-negative")
	}
	if c.Cache.MaxProjects <= 0 {
		return fmt.Errorf("cache.max_projects must be positive")
	}
	if c.Cache.BusyTimeoutMs < 0 {
		return fmt.Errorf("cache.busy_timeout_ms must be non-negative")
	}
	if c.Cache.RetryAttempts < 0 {
		return fmt.Errorf("cache.retry_attempts must be non-negative")
	}

	if c.Analyzer.MaxSymbolsPerFile <= 0 {
		return fmt.Errorf("analyzer.max_symbols_per_file must be positive")
	}
	if c.Analyzer.MaxImportsPerFile <= 0 {
		return fmt.Errorf("analyzer.max_imports_per_file must be positive")
	}
	if c.Analyzer.MaxTypeRelationsPerFile <= 0 {
		return fmt.Errorf("analyzer.max_type_relations_per_file must be positive")
	}
	if c.Analyzer.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("analyzer.max_file_size_bytes must be positive")
	}

	if c.Plan.CandidateCap <= 0 {
		return fmt.Errorf("plan.candidate_cap must be positive")
	}
	if c.Plan.SemanticCap < 0 {
		return fmt.Errorf("plan.semantic_cap must be non-negative")
	}
	if c.Plan.MinFinalScore < 0 || c.Plan.MinFinalScore > 1 {
		return fmt.Errorf("plan.min_final_score must be within [0,1]")
	}
	if c.Plan.InfraScoreFloor < 0 || c.Plan.InfraScoreFloor > 1 {
		return fmt.Errorf("plan.infra_score_floor must be within [0,1]")
	}
	if c.Plan.MaxInfraFiles < 0 {
		return fmt.Errorf("plan.max_infra_files must be non-negative")
	}
	if c.Plan.GraphWeight+c.Plan.SemanticWeight <= 0 {
		return fmt.Errorf("plan.graph_weight + plan.semantic_weight must be positive")
	}
	if c.Plan.Stage1Weight+c.Plan.RerankWeight <= 0 {
		return fmt.Errorf("plan.stage1_weight + plan.rerank_weight must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port")
	}
	if c.Server.ReadTimeoutSecs <= 0 {
		return fmt.Errorf("server.read_timeout_secs must be positive")
	}
	if c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server.idle_timeout_secs must be non-negative")
	}

	if c.Watch.DebounceMs < 1000 {
		return fmt.Errorf("watch.debounce_ms must be at least 1000")
	}

	if c.Episode.RetentionDays <= 0 {
		return fmt.Errorf("episode.retention_days must be positive")
	}

	switch c.Write.Mode {
	case WriteDurable, WriteFast:
	default:
		return fmt.Errorf("invalid write.mode %q: must be durable or fast", c.Write.Mode)
	}
	if c.Write.BufferSize <= 0 {
		return fmt.Errorf("write.buffer_size must be positive")
	}

	return nil
}
