package config

// WriteMode controls how the atomic writer durability-syncs a write.
type WriteMode string

const (
	WriteDurable WriteMode = "durable"
	WriteFast    WriteMode = "fast"
)

// Config is the top-level rtk-mem configuration, corresponding to
// .rtk-mem.yml. Every tunable named across the component sections lives
// here as a field, with the default given in its owning section.
type Config struct {
	ProjectRoot string `yaml:"project_root" koanf:"project_root"`
	DBPath      string `yaml:"db_path" koanf:"db_path"`

	Write    WriteConfig    `yaml:"write" koanf:"write"`
	Cache    CacheConfig    `yaml:"cache" koanf:"cache"`
	Analyzer AnalyzerConfig `yaml:"analyzer" koanf:"analyzer"`
	Churn    ChurnConfig    `yaml:"churn" koanf:"churn"`
	Plan     PlanConfig     `yaml:"plan" koanf:"plan"`
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	Watch    WatchConfig    `yaml:"watch" koanf:"watch"`
	Episode  EpisodeConfig  `yaml:"episode" koanf:"episode"`

	Include []string `yaml:"include" koanf:"include"`
	Exclude []string `yaml:"exclude" koanf:"exclude"`
}

// WriteConfig governs the atomic writer (component A).
type WriteConfig struct {
	Mode       WriteMode `yaml:"mode" koanf:"mode"`
	BufferSize int       `yaml:"buffer_size" koanf:"buffer_size"`
}

// CacheConfig governs the artifact store (component B).
type CacheConfig struct {
	TTLSecs       int64 `yaml:"ttl_secs" koanf:"ttl_secs"`
	MaxProjects   int   `yaml:"max_projects" koanf:"max_projects"`
	BusyTimeoutMs int   `yaml:"busy_timeout_ms" koanf:"busy_timeout_ms"`
	RetryAttempts int   `yaml:"retry_attempts" koanf:"retry_attempts"`
	RetryBaseMs   int   `yaml:"retry_base_ms" koanf:"retry_base_ms"`
}

// AnalyzerConfig governs the file analyzer (component C).
type AnalyzerConfig struct {
	MaxSymbolsPerFile       int   `yaml:"max_symbols_per_file" koanf:"max_symbols_per_file"`
	MaxImportsPerFile       int   `yaml:"max_imports_per_file" koanf:"max_imports_per_file"`
	MaxTypeRelationsPerFile int   `yaml:"max_type_relations_per_file" koanf:"max_type_relations_per_file"`
	MaxFileSizeBytes        int64 `yaml:"max_file_size_bytes" koanf:"max_file_size_bytes"`
}

// ChurnConfig governs the churn index (component F) and the VCS delta
// feature flag shared with the delta engine (component E).
type ChurnConfig struct {
	SinceWindow string `yaml:"since_window" koanf:"since_window"`
	GitDelta    bool   `yaml:"git_delta" koanf:"git_delta"`
}

// PlanConfig governs the plan pipeline (component L) and budget
// assembler (component K).
type PlanConfig struct {
	CandidateCap       int     `yaml:"candidate_cap" koanf:"candidate_cap"`
	SemanticCap        int     `yaml:"semantic_cap" koanf:"semantic_cap"`
	MinFinalScore      float64 `yaml:"min_final_score" koanf:"min_final_score"`
	InfraScoreFloor    float64 `yaml:"infra_score_floor" koanf:"infra_score_floor"`
	MaxInfraFiles      int     `yaml:"max_infra_files" koanf:"max_infra_files"`
	DefaultTokenBudget uint32  `yaml:"default_token_budget" koanf:"default_token_budget"`
	GraphWeight        float64 `yaml:"graph_weight" koanf:"graph_weight"`
	SemanticWeight     float64 `yaml:"semantic_weight" koanf:"semantic_weight"`
	Stage1Weight       float64 `yaml:"stage1_weight" koanf:"stage1_weight"`
	RerankWeight       float64 `yaml:"rerank_weight" koanf:"rerank_weight"`
}

// ServerConfig governs the HTTP API (component M) and its idle-timeout
// daemon lifecycle (component O).
type ServerConfig struct {
	Addr            string `yaml:"addr" koanf:"addr"`
	Port            int    `yaml:"port" koanf:"port"`
	ReadTimeoutSecs int    `yaml:"read_timeout_secs" koanf:"read_timeout_secs"`
	IdleTimeoutSecs int    `yaml:"idle_timeout_secs" koanf:"idle_timeout_secs"`
}

// WatchConfig governs the filesystem watcher (component N).
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms" koanf:"debounce_ms"`
}

// EpisodeConfig governs the episode store (component R).
type EpisodeConfig struct {
	RetentionDays int64 `yaml:"retention_days" koanf:"retention_days"`
}
