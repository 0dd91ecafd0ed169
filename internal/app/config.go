package app

import (
	"strings"
	"time"

	"github.com/repstack/repstack-backend/internal/logger"
	"github.com/repstack/repstack-backend/internal/utils"
)

type Config struct {
	JWTSecretKey        string
	AllowedOrigins      []string
	SessionSweepEvery   time.Duration
	NewBadgeSweepEvery  time.Duration
	StartBackgroundJobs bool
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	origins := utils.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5174", log)
	sessionSweepSeconds := utils.GetEnvAsInt("SESSION_SWEEP_INTERVAL_SECONDS", 300, log)
	badgeSweepSeconds := utils.GetEnvAsInt("NEW_BADGE_SWEEP_INTERVAL_SECONDS", 3600, log)
	startJobs := utils.GetEnvAsBool("START_BACKGROUND_JOBS", true, log)

	allowed := []string{}
	for _, origin := range strings.Split(origins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed = append(allowed, origin)
		}
	}

	return Config{
		JWTSecretKey:        jwtSecretKey,
		AllowedOrigins:      allowed,
		SessionSweepEvery:   time.Duration(sessionSweepSeconds) * time.Second,
		NewBadgeSweepEvery:  time.Duration(badgeSweepSeconds) * time.Second,
		StartBackgroundJobs: startJobs,
	}
}
