package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Artifact.Dir == "" {
		cfg.Artifact.Dir = "/usr/local/var/minedu-retrieval/artifacts"
	}
	if cfg.Artifact.ChunkStorePath == "" {
		cfg.Artifact.ChunkStorePath = "chunks.bin"
	}
	if cfg.Artifact.BM25Path == "" {
		cfg.Artifact.BM25Path = "bm25.bin"
	}
	if cfg.Artifact.TFIDFPath == "" {
		cfg.Artifact.TFIDFPath = "tfidf.bin"
	}
	if cfg.Artifact.DensePath == "" {
		cfg.Artifact.DensePath = "dense.bin"
	}
	if cfg.Artifact.MaxFileSizeMB == 0 {
		cfg.Artifact.MaxFileSizeMB = 100
	}
	if cfg.Artifact.ProvenancePath == "" {
		cfg.Artifact.ProvenancePath = "provenance.db"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/minedu-retrieval/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Safety.MaxQueryLength == 0 {
		cfg.Safety.MaxQueryLength = 512
	}
	if cfg.Safety.MaxResultsPerQuery == 0 {
		cfg.Safety.MaxResultsPerQuery = 100
	}
	if cfg.Safety.AllowedHoursStart == 0 && cfg.Safety.AllowedHoursEnd == 0 {
		cfg.Safety.AllowedHoursStart = 7
		cfg.Safety.AllowedHoursEnd = 20
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 30
	}
	if cfg.RateLimit.RequestsPerHour == 0 {
		cfg.RateLimit.RequestsPerHour = 500
	}
	if cfg.RateLimit.RequestsPerDay == 0 {
		cfg.RateLimit.RequestsPerDay = 2000
	}
	if cfg.Fusion.WeightBM25 == 0 && cfg.Fusion.WeightTFIDF == 0 && cfg.Fusion.WeightDense == 0 {
		cfg.Fusion.WeightBM25 = 0.4
		cfg.Fusion.WeightTFIDF = 0.3
		cfg.Fusion.WeightDense = 0.3
	}
	if cfg.Audit.AuditLogPath == "" {
		cfg.Audit.AuditLogPath = "/usr/local/var/minedu-retrieval/logs/audit.log"
	}
	if cfg.Audit.SecurityLogPath == "" {
		cfg.Audit.SecurityLogPath = "/usr/local/var/minedu-retrieval/logs/security.log"
	}
	if cfg.Audit.MaxSizeBytes == 0 {
		cfg.Audit.MaxSizeBytes = 50 * 1024 * 1024
	}
}
