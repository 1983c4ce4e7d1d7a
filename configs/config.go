package config

import "os"

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type Config struct {
	Instagram   OAuthClient
	LinkedIn    OAuthClient
	Pinterest   OAuthClient
	Google      OAuthClient
	PostgresURI string
	RedisURI    string
	AppURL      string
	FrontendURL string
	R2          R2
	SecretKey   string
	CronSecret  string
}

func LoadConfig() *Config {
	appURL := getEnv("APP_URL", "http://localhost:3000")
	return &Config{
		Instagram: OAuthClient{
			ClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
			ClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
			RedirectURI:  appURL + "/auth/instagram/callback",
		},
		LinkedIn: OAuthClient{
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
			RedirectURI:  appURL + "/auth/linkedin/callback",
		},
		Pinterest: OAuthClient{
			ClientID:     getEnv("PINTEREST_CLIENT_ID", ""),
			ClientSecret: getEnv("PINTEREST_CLIENT_SECRET", ""),
			RedirectURI:  appURL + "/auth/pinterest/callback",
		},
		Google: OAuthClient{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  appURL + "/auth/youtube/callback",
		},
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", ""),
		AppURL:      appURL,
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CronSecret: getEnv("CRON_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
