package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"savor/internal/auth"
	"savor/internal/db"
	"savor/internal/geocoder"
	"savor/internal/mailer"
	"savor/internal/ratelimiter"
	"savor/internal/ratings"
	"savor/internal/store"
)

var version = "1.0.0"

// NewLogger creates a zap logger writing colored console output to stdout.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(os.Stdout),
		zapcore.InfoLevel,
	)
	return zap.New(core).Sugar(), nil
}

func envInt(key string, fallback int) int {
	if val, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
		log.Printf("invalid %s, defaulting to %d", key, fallback)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		log.Printf("invalid %s, defaulting to %s", key, fallback)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
		log.Printf("invalid %s, defaulting to %t", key, fallback)
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config{
		addr:        os.Getenv("ADDR"),
		env:         os.Getenv("ENV"),
		frontendURL: os.Getenv("FRONTEND_URL"),
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    int32(envInt("DB_MAX_CONNS", 25)),
			maxIdleTime: os.Getenv("DB_MAX_IDLE_TIME"),
		},
		mail: mailConfig{
			fromEmail: os.Getenv("MAIL_FROM_EMAIL"),
			host:      os.Getenv("MAIL_SMTP_HOST"),
			port:      envInt("MAIL_SMTP_PORT", 587),
			username:  os.Getenv("MAIL_SMTP_USERNAME"),
			password:  os.Getenv("MAIL_SMTP_PASSWORD"),
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret:          os.Getenv("AUTH_TOKEN_SECRET"),
				refreshSecret:   os.Getenv("AUTH_REFRESH_SECRET"),
				iss:             "savor",
				accessTokenExp:  envDuration("AUTH_ACCESS_TOKEN_EXP", time.Hour*24*3),
				refreshTokenExp: envDuration("AUTH_REFRESH_TOKEN_EXP", time.Hour*24*9),
			},
		},
		geocoder: geocoderConfig{
			baseURL:   os.Getenv("GEOCODER_BASE_URL"),
			userAgent: "savor-api/" + version,
		},
		rateLimiter: ratelimiter.Config{
			RequestsPerTimeFrame: envInt("RATELIMITER_REQUESTS_COUNT", 200),
			TimeFrame:            5 * time.Second,
			Enabled:              envBool("RATE_LIMITER_ENABLED", false),
		},
	}

	logger, err := NewLogger()
	if err != nil {
		log.Fatalf("could not create logger: %v", err)
	}
	defer logger.Sync()

	pool, err := db.New(cfg.db.addr, cfg.db.maxConns, cfg.db.maxIdleTime)
	if err != nil {
		logger.Fatalw("could not connect to database", "error", err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	storage := store.NewStorage(pool)

	cld, err := cloudinary.NewFromURL(os.Getenv("CLOUDINARY_URL"))
	if err != nil {
		logger.Fatalw("could not configure cloudinary", "error", err)
	}

	app := &application{
		config:  cfg,
		store:   storage,
		ratings: ratings.NewEngine(storage.Reviews, storage.Venues, logger),
		logger:  logger,
		cld:     cld,
		mailer: mailer.NewSMTP(
			cfg.mail.host,
			cfg.mail.port,
			cfg.mail.username,
			cfg.mail.password,
			cfg.mail.fromEmail,
		),
		authenticator: auth.NewJWTAuthenticator(
			cfg.auth.token.secret,
			cfg.auth.token.refreshSecret,
			"savor",
			cfg.auth.token.iss,
			cfg.auth.token.accessTokenExp,
			cfg.auth.token.refreshTokenExp,
		),
		geocoder: geocoder.NewHTTPClient(cfg.geocoder.baseURL, cfg.geocoder.userAgent, nil),
		rateLimiter: ratelimiter.NewFixedWindowLimiter(
			cfg.rateLimiter.RequestsPerTimeFrame,
			cfg.rateLimiter.TimeFrame,
		),
	}

	logger.Fatal(app.run(app.mount()))
}
