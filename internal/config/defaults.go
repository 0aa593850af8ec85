package config

// DefaultExcludes are glob patterns excluded from analysis by default.
var DefaultExcludes = []string{
	"vendor/**",
	"node_modules/**",
	".git/**",
	".rtk/**",
	"dist/**",
	"build/**",
	"target/**",
	"*.min.js",
	"*.min.css",
	"*.lock",
	"go.sum",
	"package-lock.json",
	"yarn.lock",
}

// DefaultConfig returns a Config with the defaults named throughout the
// component design: cache TTL of one day, a 60-candidate graph-first plan
// pool, a 12000-token default budget, and so on.
func DefaultConfig() *Config {
	return &Config{
		DBPath:  "",
		Include: []string{"**"},
		Exclude: DefaultExcludes,
		Write: WriteConfig{
			Mode:       WriteDurable,
			BufferSize: 64 * 1024,
		},
		Cache: CacheConfig{
			TTLSecs:       86400,
			MaxProjects:   64,
			BusyTimeoutMs: 2500,
			RetryAttempts: 3,
			RetryBaseMs:   100,
		},
		Analyzer: AnalyzerConfig{
			MaxSymbolsPerFile:       40,
			MaxImportsPerFile:       64,
			MaxTypeRelationsPerFile: 128,
			MaxFileSizeBytes:        256 << 10,
		},
		Churn: ChurnConfig{
			SinceWindow: "6 months ago",
			GitDelta:    true,
		},
		Plan: PlanConfig{
			CandidateCap:       60,
			SemanticCap:        30,
			MinFinalScore:      0.12,
			InfraScoreFloor:    0.22,
			MaxInfraFiles:      2,
			DefaultTokenBudget: 12000,
			GraphWeight:        0.65,
			SemanticWeight:     0.35,
			Stage1Weight:       0.6,
			RerankWeight:       0.4,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1",
			Port:            8731,
			ReadTimeoutSecs: 10,
			IdleTimeoutSecs: 0,
		},
		Watch: WatchConfig{
			DebounceMs: 1000,
		},
		Episode: EpisodeConfig{
			RetentionDays: 30,
		},
	}
}
