package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"workoutmap/backend/internal/model"
)

var defaultFallbackCenter = model.Coords{Lat: 35.69404895695763, Lng: 51.38721244128801}

type Config struct {
	Port           string
	DBPath         string
	JWTSecret      string
	TokenTTL       time.Duration
	CORSOrigins    []string
	GinMode        string
	LogLevel       slog.Level
	StorageKey     string
	FallbackCenter model.Coords
	MapZoom        int
	TrackerIdleTTL time.Duration
}

func Load() Config {
	return Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/workoutmap.db"),
		JWTSecret:      getEnv("JWT_SECRET", "change-this-secret"),
		TokenTTL:       time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24*365)) * time.Hour,
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:8080", "http://127.0.0.1:8080"}),
		GinMode:        getEnv("GIN_MODE", "release"),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		StorageKey:     getEnv("STORAGE_KEY", "workouts"),
		FallbackCenter: getEnvCoords("MAP_FALLBACK_LAT", "MAP_FALLBACK_LNG", defaultFallbackCenter),
		MapZoom:        getEnvInt("MAP_ZOOM", 13),
		TrackerIdleTTL: time.Duration(getEnvInt("TRACKER_IDLE_TTL_MINUTES", 30)) * time.Minute,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvCoords reads a lat/lng pair and keeps fallback unless the pair is a
// real position; NaN, Inf and out-of-range values parse but cannot be served.
func getEnvCoords(latKey, lngKey string, fallback model.Coords) model.Coords {
	coords := model.Coords{
		Lat: getEnvFloat(latKey, fallback.Lat),
		Lng: getEnvFloat(lngKey, fallback.Lng),
	}
	if !coords.Valid() {
		return fallback
	}
	return coords
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return fallback
	}
	return level
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
