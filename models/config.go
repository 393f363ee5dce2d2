package models

// Config holds database connection settings and the two listen ports.
type Config struct {
	DBHost        string `json:"db_host"`
	DBUser        string `json:"db_user"`
	DBPassword    string `json:"db_password"`
	DBName        string `json:"db_name"`
	DBSSLMode     string `json:"db_sslmode"`
	VoicePort     int    `json:"voice_port"`
	HTTPPort      int    `json:"http_port"`
	JWTSecret     string `json:"jwt_secret"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}
