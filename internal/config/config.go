package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	LocalDBPath           string
	RemoteDatabaseURL     string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	StoreID               string
	SyncIntervalSeconds   int
	TaxRatePercent        float64
	AuthSecret            string
	AccessTokenTTLMinutes int
	AdminPIN              string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	syncInterval, err := strconv.Atoi(getEnv("SYNC_INTERVAL_SECONDS", "15"))
	if err != nil || syncInterval < 1 {
		syncInterval = 15
	}
	taxRate, err := strconv.ParseFloat(getEnv("TAX_RATE_PERCENT", "0"), 64)
	if err != nil || taxRate < 0 || taxRate > 100 {
		taxRate = 0
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		LocalDBPath:           os.Getenv("LOCAL_DB_PATH"),
		RemoteDatabaseURL:     os.Getenv("REMOTE_DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		StoreID:               getEnv("STORE_ID", "outlet-1"),
		SyncIntervalSeconds:   syncInterval,
		TaxRatePercent:        taxRate,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		AdminPIN:              strings.TrimSpace(os.Getenv("ADMIN_PIN")),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
