package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Auth     AuthConfig
	LLM      LLMConfig
	RAG      RAGConfig
	News     NewsConfig
	Session  SessionConfig
	Prompt   PromptConfig
	Realtime RealtimeConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	RefreshExp time.Duration
}

// AuthConfig selects how bearer tokens are verified.
// Mode "jwt" trusts tokens issued by this service, "oidc" trusts an external
// provider such as Firebase Authentication.
type AuthConfig struct {
	Mode         string
	OIDCIssuer   string
	OIDCClientID string
}

type LLMConfig struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RateLimit   float64 // requests per second, 0 disables limiting
	Burst       int
	GigaChat    GigaChatConfig
	OpenAI      OpenAIConfig
	Anthropic   AnthropicConfig
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	InsecureSkipVerify bool
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type AnthropicConfig struct {
	APIKey string
}

type RAGConfig struct {
	Embedder        string
	EmbeddingModel  string
	EmbedTimeout    time.Duration
	TopK            int
	RefreshInterval time.Duration
}

type NewsConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Limit   int
}

type SessionConfig struct {
	TTL            time.Duration
	SweepInterval  time.Duration
	FollowUpTokens int
}

type PromptConfig struct {
	PersonaFile string
}

type RealtimeConfig struct {
	SendBuffer  int
	EventBuffer int
}

func Load() (*Config, error) {
	// .env is optional, plain environment variables work the same (Docker/K8s)
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "90"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	refreshExp, _ := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168"))
	ragTopK, _ := strconv.Atoi(getEnv("RAG_TOP_K", "2"))
	newsLimit, _ := strconv.Atoi(getEnv("NEWS_LIMIT", "10"))
	maxTokens, _ := strconv.Atoi(getEnv("LLM_MAX_TOKENS", "1024"))
	burst, _ := strconv.Atoi(getEnv("LLM_BURST", "5"))
	rateLimit, _ := strconv.ParseFloat(getEnv("LLM_RATE_LIMIT", "2"), 64)
	temperature, _ := strconv.ParseFloat(getEnv("LLM_TEMPERATURE", "0.3"), 64)
	followUp, _ := strconv.Atoi(getEnv("SESSION_FOLLOW_UP_TOKENS", "3"))
	sendBuffer, _ := strconv.Atoi(getEnv("REALTIME_SEND_BUFFER", "16"))
	eventBuffer, _ := strconv.Atoi(getEnv("REALTIME_EVENT_BUFFER", "256"))
	insecureSkipVerify := getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "true") == "true"

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "fin_advisor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
			RefreshExp: time.Duration(refreshExp) * time.Hour,
		},
		Auth: AuthConfig{
			Mode:         getEnv("AUTH_MODE", "jwt"),
			OIDCIssuer:   getEnv("AUTH_OIDC_ISSUER", ""),
			OIDCClientID: getEnv("AUTH_OIDC_CLIENT_ID", ""),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", "gigachat"),
			Model:       getEnv("LLM_MODEL", ""),
			Temperature: temperature,
			MaxTokens:   maxTokens,
			Timeout:     getDuration("LLM_TIMEOUT", 60*time.Second),
			RateLimit:   rateLimit,
			Burst:       burst,
			GigaChat: GigaChatConfig{
				APIKey:             getEnv("GIGACHAT_API_KEY", ""),
				Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
				InsecureSkipVerify: insecureSkipVerify,
			},
			OpenAI: OpenAIConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", ""),
			},
			Anthropic: AnthropicConfig{
				APIKey: getEnv("ANTHROPIC_API_KEY", ""),
			},
		},
		RAG: RAGConfig{
			Embedder:        getEnv("RAG_EMBEDDER", "tfidf"),
			EmbeddingModel:  getEnv("RAG_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbedTimeout:    getDuration("RAG_EMBED_TIMEOUT", 0),
			TopK:            ragTopK,
			RefreshInterval: getDuration("RAG_REFRESH_INTERVAL", 0),
		},
		News: NewsConfig{
			URL:     getEnv("NEWS_URL", "https://finnhub.io/api/v1/news"),
			APIKey:  getEnv("FINNHUB_API_KEY", ""),
			Timeout: getDuration("NEWS_TIMEOUT", 10*time.Second),
			Limit:   newsLimit,
		},
		Session: SessionConfig{
			TTL:            getDuration("SESSION_TTL", 30*time.Minute),
			SweepInterval:  getDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			FollowUpTokens: followUp,
		},
		Prompt: PromptConfig{
			PersonaFile: getEnv("PROMPT_PERSONA_FILE", ""),
		},
		Realtime: RealtimeConfig{
			SendBuffer:  sendBuffer,
			EventBuffer: eventBuffer,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go duration strings ("90s", "5m"); invalid values fall back to the default.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
