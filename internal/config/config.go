package config

import (
	"os"
	"time"
)

type Config struct {
	Port         string
	BackendURL   string
	RestaurantID string
	BridgeURL    string
	CashierName  string
	PollInterval time.Duration
	PrintTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8090"),
		BackendURL:   getEnv("BACKEND_URL", "https://masapp-backend.onrender.com/api"),
		RestaurantID: getEnv("RESTAURANT_ID", ""),
		BridgeURL:    getEnv("BRIDGE_URL", "http://localhost:3005"),
		CashierName:  getEnv("CASHIER_NAME", "Kasa"),
		PollInterval: getDuration("POLL_INTERVAL", 5*time.Second),
		PrintTimeout: getDuration("PRINT_TIMEOUT", 15*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
