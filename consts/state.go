package consts

const (
	SessionPrefix      = "analysis"
	MissingTicker      = "None"
	DefaultMaxTurns    = 10
	DefaultTermKeyword = "TERMINATE"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// LLM providers.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
)
