package config

import (
	"os"
	"strconv"
	"time"

	"eventsphere/gateway"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	TicketEventChannel string

	// Payment gateway configuration
	GatewayMode string // mock or yespay
	YesPay      gateway.YesPayConfig

	// Event bus configuration
	EventBusBuffer  int
	EventBusWorkers int

	// Reconcile configuration
	ReconcileInterval time.Duration

	// Rate limiting
	PurchaseRateLimit  int
	PurchaseRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		TicketEventChannel: getEnv("TICKET_EVENT_CHANNEL", "ticket-events"),

		// Payment gateway
		GatewayMode: getEnv("GATEWAY_MODE", "mock"),
		YesPay: gateway.YesPayConfig{
			BaseURL:    getEnv("YESPAY_BASE_URL", ""),
			PartnerID:  getEnv("YESPAY_PARTNER_ID", ""),
			ClientID:   getEnv("YESPAY_CLIENT_ID", ""),
			ClientKey:  getEnv("YESPAY_CLIENT_KEY", ""),
			HMACKey:    getEnv("YESPAY_HMAC_KEY", ""),
			MerchantID: getEnv("YESPAY_MERCHANT_ID", ""),
			Currency:   getEnv("YESPAY_CURRENCY", "LAK"),
			PNSubKey:   getEnv("YESPAY_PN_SUBKEY", ""),
			PNUUID:     getEnv("YESPAY_PN_UUID", ""),
			PNChannel:  getEnv("YESPAY_PN_CHANNEL", ""),
		},

		// Event bus
		EventBusBuffer:  getEnvAsInt("EVENT_BUS_BUFFER", 1024),
		EventBusWorkers: getEnvAsInt("EVENT_BUS_WORKERS", 2),

		// Reconcile
		ReconcileInterval: getEnvAsDuration("RECONCILE_INTERVAL", "1m"),

		// Rate limiting
		PurchaseRateLimit:  getEnvAsInt("PURCHASE_RATE_LIMIT", 10),
		PurchaseRateWindow: getEnvAsDuration("PURCHASE_RATE_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
