package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/utils"
)

type Config struct {
	Port          string
	LogMode       string
	AllowOrigins  []string
	AgentAPIKey   string
	StoreDriver   string // "postgres" or "bolt"
	BoltPath      string
	AutoMigrate   bool
	RedisAddress  string
	RedisPassword string
	RedisChannel  string

	LiveKitAPIKey    string
	LiveKitAPISecret string
	TokenTTL         time.Duration
	TokenRPS         float64
	TokenBurst       int

	ClinicTimezone  string
	ClinicOpenHour  int
	ClinicCloseHour int
	SlotMinutes     int

	DeepgramAPIKey  string
	DeepgramURL     string
	GeminiAPIKey    string
	GeminiModel     string
	CartesiaAPIKey  string
	CartesiaURL     string
	CartesiaVoiceID string
	BeyAPIKey       string
	BeyURL          string
	BeyAvatarID     string
	MediaAgentURL   string
	VADThreshold    float64

	AvatarTimeout time.Duration
	SessionSettle time.Duration
	AvatarSettle  time.Duration
	GreetingDelay time.Duration
	Greeting      string
}

const defaultGreeting = "Hello! I'm your clinic appointment assistant. How can I help you today? Would you like to schedule, reschedule, or cancel an appointment?"

// Load reads .env (if present) and then the process environment.
func Load(log *logger.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded", "error", err)
	}
	cfg := &Config{
		Port:          utils.GetEnv("PORT", "8080", log),
		LogMode:       utils.GetEnv("LOG_MODE", "development", log),
		AllowOrigins:  splitList(utils.GetEnv("CORS_ORIGINS", "", log)),
		AgentAPIKey:   utils.GetEnv("AGENT_API_KEY", "", log),
		StoreDriver:   utils.GetEnv("STORE_DRIVER", "postgres", log),
		BoltPath:      utils.GetEnv("BOLT_PATH", "./data/clinic.bolt", log),
		AutoMigrate:   utils.GetEnvAsBool("AUTO_MIGRATE", true, log),
		RedisAddress:  utils.GetEnv("REDIS_ADDRESS", "", log),
		RedisPassword: utils.GetEnv("REDIS_PASSWORD", "", log),
		RedisChannel:  utils.GetEnv("REDIS_CHANNEL", "clinic_status_broadcast", log),

		LiveKitAPIKey:    utils.GetEnv("LIVEKIT_API_KEY", "", log),
		LiveKitAPISecret: utils.GetEnv("LIVEKIT_API_SECRET", "", log),
		TokenTTL:         utils.GetEnvAsDuration("TOKEN_TTL", 6*time.Hour, log),
		TokenRPS:         float64(utils.GetEnvAsInt("TOKEN_RPS", 5, log)),
		TokenBurst:       utils.GetEnvAsInt("TOKEN_BURST", 10, log),

		ClinicTimezone:  utils.GetEnv("CLINIC_TIMEZONE", "Asia/Kolkata", log),
		ClinicOpenHour:  utils.GetEnvAsInt("CLINIC_OPEN_HOUR", 9, log),
		ClinicCloseHour: utils.GetEnvAsInt("CLINIC_CLOSE_HOUR", 17, log),
		SlotMinutes:     utils.GetEnvAsInt("SLOT_MINUTES", 30, log),

		DeepgramAPIKey:  utils.GetEnv("DEEPGRAM_API_KEY", "", log),
		DeepgramURL:     utils.GetEnv("DEEPGRAM_URL", "https://api.deepgram.com", log),
		GeminiAPIKey:    utils.GetEnv("GOOGLE_API_KEY", "", log),
		GeminiModel:     utils.GetEnv("GEMINI_MODEL", "gemini-2.0-flash-exp", log),
		CartesiaAPIKey:  utils.GetEnv("CARTESIA_API_KEY", "", log),
		CartesiaURL:     utils.GetEnv("CARTESIA_URL", "https://api.cartesia.ai", log),
		CartesiaVoiceID: utils.GetEnv("CARTESIA_VOICE_ID", "a167e0f3-df7e-4d52-a9c3-f949145efdab", log),
		BeyAPIKey:       utils.GetEnv("BEY_API_KEY", "", log),
		BeyURL:          utils.GetEnv("BEY_URL", "https://api.bey.dev", log),
		BeyAvatarID:     utils.GetEnv("BEY_AVATAR_ID", "", log),
		MediaAgentURL:   utils.GetEnv("MEDIA_AGENT_URL", "http://localhost:8081", log),
		VADThreshold:    float64(utils.GetEnvAsInt("VAD_THRESHOLD_PERCENT", 50, log)) / 100,

		AvatarTimeout: utils.GetEnvAsDuration("AVATAR_TIMEOUT", 20*time.Second, log),
		SessionSettle: utils.GetEnvAsDuration("SESSION_SETTLE", time.Second, log),
		AvatarSettle:  utils.GetEnvAsDuration("AVATAR_SETTLE", 2*time.Second, log),
		GreetingDelay: utils.GetEnvAsDuration("GREETING_DELAY", time.Second, log),
		Greeting:      utils.GetEnv("GREETING", defaultGreeting, log),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres", "bolt":
	default:
		return fmt.Errorf("STORE_DRIVER must be 'postgres' or 'bolt', got %q", c.StoreDriver)
	}
	if c.LiveKitAPIKey == "" || c.LiveKitAPISecret == "" {
		return fmt.Errorf("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required")
	}
	if c.AgentAPIKey == "" {
		return fmt.Errorf("AGENT_API_KEY is required")
	}
	if c.ClinicOpenHour < 0 || c.ClinicCloseHour > 24 || c.ClinicOpenHour >= c.ClinicCloseHour {
		return fmt.Errorf("clinic hours %d-%d are invalid", c.ClinicOpenHour, c.ClinicCloseHour)
	}
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("SLOT_MINUTES must be positive")
	}
	if _, err := time.LoadLocation(c.ClinicTimezone); err != nil {
		return fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return nil
}

// Location returns the clinic time zone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
