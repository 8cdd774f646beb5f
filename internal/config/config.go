package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Purchase PurchaseConfig
	Workers  WorkersConfig
	API      APIConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type TelegramConfig struct {
	Token        string
	AdminChannel int64
}

type PurchaseConfig struct {
	ReferralReward int64
}

// WorkersConfig drives the four reconciliation workers. Cron specs use
// the six-field form with seconds.
type WorkersConfig struct {
	ExpiryWarnCron  string
	VolumeWarnCron  string
	CleanupCron     string
	TestCleanupCron string

	ExpiryWarnDays   []int
	VolumeWarnGB     float64
	RemoveGraceDays  int
	ExpiryBatchSize  int
	VolumeBatchSize  int
	CleanupBatchSize int
	TestBatchSize    int
	Concurrency      int
	RatePerMinute    int
	JobTimeout       time.Duration
}

type APIConfig struct {
	Key string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REFERRAL_REWARD", 5000)
	viper.SetDefault("WORKER_EXPIRY_CRON", "0 */10 * * * *")
	viper.SetDefault("WORKER_VOLUME_CRON", "0 */10 * * * *")
	viper.SetDefault("WORKER_CLEANUP_CRON", "0 0 * * * *")
	viper.SetDefault("WORKER_TEST_CRON", "0 */10 * * * *")
	viper.SetDefault("WORKER_EXPIRY_WARN_DAYS", []int{1, 3, 7})
	viper.SetDefault("WORKER_VOLUME_WARN_GB", 1.0)
	viper.SetDefault("WORKER_REMOVE_GRACE_DAYS", 7)
	viper.SetDefault("WORKER_EXPIRY_BATCH", 5)
	viper.SetDefault("WORKER_VOLUME_BATCH", 5)
	viper.SetDefault("WORKER_CLEANUP_BATCH", 10)
	viper.SetDefault("WORKER_TEST_BATCH", 10)
	viper.SetDefault("WORKER_CONCURRENCY", 5)
	viper.SetDefault("WORKER_RATE_PER_MINUTE", 10)
	viper.SetDefault("WORKER_JOB_TIMEOUT", "5m")

	jobTimeout, err := time.ParseDuration(viper.GetString("WORKER_JOB_TIMEOUT"))
	if err != nil {
		jobTimeout = 5 * time.Minute
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Telegram: TelegramConfig{
			Token:        viper.GetString("BOT_TOKEN"),
			AdminChannel: viper.GetInt64("ADMIN_CHANNEL_ID"),
		},
		Purchase: PurchaseConfig{
			ReferralReward: viper.GetInt64("REFERRAL_REWARD"),
		},
		Workers: WorkersConfig{
			ExpiryWarnCron:   viper.GetString("WORKER_EXPIRY_CRON"),
			VolumeWarnCron:   viper.GetString("WORKER_VOLUME_CRON"),
			CleanupCron:      viper.GetString("WORKER_CLEANUP_CRON"),
			TestCleanupCron:  viper.GetString("WORKER_TEST_CRON"),
			ExpiryWarnDays:   viper.GetIntSlice("WORKER_EXPIRY_WARN_DAYS"),
			VolumeWarnGB:     viper.GetFloat64("WORKER_VOLUME_WARN_GB"),
			RemoveGraceDays:  viper.GetInt("WORKER_REMOVE_GRACE_DAYS"),
			ExpiryBatchSize:  viper.GetInt("WORKER_EXPIRY_BATCH"),
			VolumeBatchSize:  viper.GetInt("WORKER_VOLUME_BATCH"),
			CleanupBatchSize: viper.GetInt("WORKER_CLEANUP_BATCH"),
			TestBatchSize:    viper.GetInt("WORKER_TEST_BATCH"),
			Concurrency:      viper.GetInt("WORKER_CONCURRENCY"),
			RatePerMinute:    viper.GetInt("WORKER_RATE_PER_MINUTE"),
			JobTimeout:       jobTimeout,
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Telegram.Token == "" {
		log.Println("WARNING: BOT_TOKEN is not set")
	}

	return cfg, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
