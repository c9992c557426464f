package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kartikgopal01/coedit/internal/storage"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Metadata  MetadataConfig
	MongoDB   MongoDBConfig
	Firestore FirestoreConfig
	Storage   StorageConfig
	MinIO     storage.MinIOConfig
	S3        storage.S3Config
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Snapshot  SnapshotConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	PublicURL    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Driver names for METADATA_DRIVER and STORAGE_DRIVER.
const (
	DriverMemory    = "memory"
	DriverMongo     = "mongo"
	DriverFirestore = "firestore"
	DriverMinIO     = "minio"
	DriverS3        = "s3"
)

type MetadataConfig struct {
	Driver string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type FirestoreConfig struct {
	ProjectID string
}

type StorageConfig struct {
	Driver         string
	KeyPrefix      string
	SignedURLTTL   time.Duration
	UploadMaxBytes int64
	MemorySecret   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type KeycloakConfig struct {
	URL      string
	Realm    string
	ClientID string
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	Enabled  bool
	UseRedis bool
	RPS      float64
	Burst    int
	Window   time.Duration
}

type SnapshotConfig struct {
	OperationTimeout time.Duration
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5010")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("METADATA_DRIVER", DriverMemory)
	viper.SetDefault("MONGODB_DATABASE", "coedit")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("STORAGE_DRIVER", DriverMemory)
	viper.SetDefault("STORAGE_KEY_PREFIX", "documents")
	viper.SetDefault("SIGNED_URL_TTL", 3600)
	viper.SetDefault("UPLOAD_MAX_BYTES", 10<<20)
	viper.SetDefault("MINIO_BUCKET", "coedit")
	viper.SetDefault("MINIO_REGION", "us-east-1")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_RPS", 5)
	viper.SetDefault("RATE_LIMIT_BURST", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW", 60)
	viper.SetDefault("SNAPSHOT_OPERATION_TIMEOUT", 30)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			PublicURL:    viper.GetString("SERVER_PUBLIC_URL"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
		Metadata: MetadataConfig{
			Driver: viper.GetString("METADATA_DRIVER"),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Firestore: FirestoreConfig{
			ProjectID: viper.GetString("FIRESTORE_PROJECT"),
		},
		Storage: StorageConfig{
			Driver:         viper.GetString("STORAGE_DRIVER"),
			KeyPrefix:      viper.GetString("STORAGE_KEY_PREFIX"),
			SignedURLTTL:   time.Duration(viper.GetInt("SIGNED_URL_TTL")) * time.Second,
			UploadMaxBytes: viper.GetInt64("UPLOAD_MAX_BYTES"),
			MemorySecret:   viper.GetString("STORAGE_MEMORY_SECRET"),
		},
		MinIO: storage.MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: viper.GetString("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
			Region:    viper.GetString("MINIO_REGION"),
		},
		S3: storage.S3Config{
			Region:    viper.GetString("S3_REGION"),
			Bucket:    viper.GetString("S3_BUCKET"),
			Endpoint:  viper.GetString("S3_ENDPOINT"),
			AccessKey: viper.GetString("S3_ACCESS_KEY"),
			SecretKey: viper.GetString("S3_SECRET_KEY"),
			PathStyle: viper.GetBool("S3_PATH_STYLE"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:      viper.GetString("KEYCLOAK_URL"),
			Realm:    viper.GetString("KEYCLOAK_REALM"),
			ClientID: viper.GetString("KEYCLOAK_CLIENT_ID"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis: viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:      viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:    viper.GetInt("RATE_LIMIT_BURST"),
			Window:   time.Duration(viper.GetInt("RATE_LIMIT_WINDOW")) * time.Second,
		},
		Snapshot: SnapshotConfig{
			OperationTimeout: time.Duration(viper.GetInt("SNAPSHOT_OPERATION_TIMEOUT")) * time.Second,
		},
	}

	return cfg, nil
}

// UseOIDC reports whether tokens are verified against Keycloak rather than
// the shared JWT secret.
func (c *Config) UseOIDC() bool {
	return c.Keycloak.URL != "" && c.Keycloak.Realm != ""
}

// Validate rejects driver selections that cannot work with the rest of the
// configuration.
func (c *Config) Validate() error {
	switch c.Metadata.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("METADATA_DRIVER=mongo requires MONGODB_URI")
		}
	case DriverFirestore:
		if c.Firestore.ProjectID == "" {
			return fmt.Errorf("METADATA_DRIVER=firestore requires FIRESTORE_PROJECT")
		}
	default:
		return fmt.Errorf("unknown METADATA_DRIVER %q", c.Metadata.Driver)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("STORAGE_DRIVER=minio requires MINIO_ENDPOINT and MINIO_BUCKET")
		}
	case DriverS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("STORAGE_DRIVER=s3 requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if c.Keycloak.URL != "" && c.Keycloak.ClientID == "" {
		return fmt.Errorf("KEYCLOAK_URL requires KEYCLOAK_CLIENT_ID")
	}
	if !c.UseOIDC() && c.JWT.Secret == "" {
		return fmt.Errorf("either KEYCLOAK_URL/KEYCLOAK_REALM or JWT_SECRET must be set")
	}
	if c.Storage.SignedURLTTL <= 0 {
		return fmt.Errorf("SIGNED_URL_TTL must be positive")
	}
	if c.Storage.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}
