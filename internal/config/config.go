package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	//App
	Env string // dev / staging / prod
	//HTTP
	HTTPAddr       string
	AllowedOrigins []string
	MaxBodyBytes   int64
	// TrustProxy honours X-Forwarded-For / X-Real-IP from a fronting proxy.
	TrustProxy bool
	HSTS       bool
	//Auth / Security
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
	// TemplateKey seals biometric embeddings at rest (32 bytes).
	TemplateKey []byte

	// Biometric policy
	FaceThreshold         float64
	FingerprintThreshold  float64
	FaceMinQuality        float64
	FingerprintMinQuality float64
	MaxEvidenceBytes      int
	MaxEvidencePixels     int
	ExtractionTimeout     time.Duration

	// Rate limits
	LoginRLLimit      int
	LoginRLWindow     time.Duration
	BiometricRLLimit  int
	BiometricRLWindow time.Duration

	// Infrastructure
	DBAddr         string
	DBDebug        bool
	RunMigrations  bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RabbitURL      string
	RabbitExchange string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		JWTIssuer:      getEnv("JWT_ISSUER", "biometric-auth"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "auth.events"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
	}
	isDev := cfg.Env == "dev"

	// required values
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}

	rawKey := os.Getenv("TEMPLATE_KEY")
	if rawKey == "" {
		return nil, fmt.Errorf("missing required env var: TEMPLATE_KEY")
	}
	key, err := base64.StdEncoding.DecodeString(rawKey)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("TEMPLATE_KEY must be 32 bytes, base64 encoded")
	}
	cfg.TemplateKey = key

	// optional with defaults
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL >= cfg.RefreshTokenTTL {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 12); err != nil {
		return nil, err
	}

	if cfg.FaceThreshold, err = getUnit("FACE_THRESHOLD", 0.80); err != nil {
		return nil, err
	}
	if cfg.FingerprintThreshold, err = getUnit("FINGERPRINT_THRESHOLD", 0.75); err != nil {
		return nil, err
	}
	if cfg.FaceMinQuality, err = getUnit("FACE_MIN_QUALITY", 0.50); err != nil {
		return nil, err
	}
	if cfg.FingerprintMinQuality, err = getUnit("FINGERPRINT_MIN_QUALITY", 0.40); err != nil {
		return nil, err
	}
	if cfg.MaxEvidenceBytes, err = getInt("MAX_EVIDENCE_BYTES", 8<<20); err != nil {
		return nil, err
	}
	if cfg.MaxEvidencePixels, err = getInt("MAX_EVIDENCE_PIXELS", 4096*4096); err != nil {
		return nil, err
	}
	if cfg.MaxEvidencePixels <= 0 || cfg.MaxEvidencePixels > 4096*4096 {
		return nil, fmt.Errorf("MAX_EVIDENCE_PIXELS must be within (0, %d]", 4096*4096)
	}
	// base64 inflates by 4/3; leave room for the JSON envelope
	maxBody, err := getInt("MAX_BODY_BYTES", cfg.MaxEvidenceBytes/3*4+64<<10)
	if err != nil {
		return nil, err
	}
	cfg.MaxBodyBytes = int64(maxBody)
	if cfg.ExtractionTimeout, err = getDuration("EXTRACTION_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	if cfg.LoginRLLimit, err = getInt("LOGIN_RL_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.LoginRLWindow, err = getDuration("LOGIN_RL_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.BiometricRLLimit, err = getInt("BIOMETRIC_RL_LIMIT", 30); err != nil {
		return nil, err
	}
	if cfg.BiometricRLWindow, err = getDuration("BIOMETRIC_RL_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	cfg.TrustProxy = getBool("TRUST_PROXY", false)
	cfg.HSTS = getBool("HSTS", !isDev)

	// Infrastructure dependencies.
	// Outside dev the service cannot operate correctly without its backing
	// services, so fail fast instead of starting half-initialized.
	cfg.DBAddr = os.Getenv("DB_ADDR")
	if cfg.DBAddr == "" && !isDev {
		return nil, fmt.Errorf("missing required env var: DB_ADDR")
	}
	if cfg.DBAddr != "" && !strings.HasPrefix(cfg.DBAddr, "postgres://") && !strings.HasPrefix(cfg.DBAddr, "postgresql://") {
		return nil, fmt.Errorf("DB_ADDR must be a postgres:// URL")
	}
	cfg.DBDebug = getBool("DB_DEBUG", false)
	cfg.RunMigrations = getBool("RUN_MIGRATIONS", isDev)

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" && !isDev {
		return nil, fmt.Errorf("missing required env var: REDIS_ADDR")
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.RabbitURL = os.Getenv("RABBIT_URL")
	if cfg.RabbitURL == "" && !isDev {
		return nil, fmt.Errorf("missing required env var: RABBIT_URL")
	}

	//Timeout values are optional and have a default value if not
	if cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q: %w", key, v, err)
	}
	return n, nil
}

// getUnit parses a float that must lie in [0,1].
func getUnit(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %q: %w", key, v, err)
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("%s must be within [0,1], got %v", key, f)
	}
	return f, nil
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
