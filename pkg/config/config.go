package config

import "time"

// APIGateway definition api_gateway YAML structure
type APIGateway struct {
	Port        string        `mapstructure:"port" validate:"required"`
	JWTSecret   string        `mapstructure:"jwt_secret" validate:"required"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	PlaybackTTL time.Duration `mapstructure:"playback_ttl"`
	UploadTTL   time.Duration `mapstructure:"upload_ttl"`

	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	MinIO      MinIOConfig    `mapstructure:"minio"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Queue      QueueConfig    `mapstructure:"queue"`
}

// Ingestor definition ingestor YAML structure
type Ingestor struct {
	HealthPort        string        `mapstructure:"health_port"`
	MetricsPort       string        `mapstructure:"metrics_port"`
	Transport         string        `mapstructure:"transport" validate:"required,oneof=amqp sqs"`
	BatchSize         int           `mapstructure:"batch_size"`
	WaitTime          time.Duration `mapstructure:"wait_time"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`

	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	RabbitMQ   RabbitMQConfig `mapstructure:"rabbitmq"`
	SQS        SQSConfig      `mapstructure:"sqs"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Queue      QueueConfig    `mapstructure:"queue"`
}

// Worker definition transcode_worker YAML structure
type Worker struct {
	HealthPort  string `mapstructure:"health_port"`
	MetricsPort string `mapstructure:"metrics_port"`
	ScratchDir  string `mapstructure:"scratch_dir"`

	PostgreSQL DatabaseConfig   `mapstructure:"pg"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Transcode  TranscodeConfig  `mapstructure:"transcode"`
	DeadLetter DeadLetterConfig `mapstructure:"dead_letter"`
}

// Inspector definition deadletter_inspector YAML structure
type Inspector struct {
	PostgreSQL DatabaseConfig   `mapstructure:"pg"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	DeadLetter DeadLetterConfig `mapstructure:"dead_letter"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host" validate:"required"`
	Port          int    `mapstructure:"port" validate:"required"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database" validate:"required"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// MinIOConfig definition object store setting
type MinIOConfig struct {
	Host          string `mapstructure:"host" validate:"required"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	BucketName    string `mapstructure:"bucket_name" validate:"required"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// RabbitMQConfig definition rabbitmq setting, the queue receives bucket notifications
type RabbitMQConfig struct {
	IP            string `mapstructure:"ip"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Queue         string `mapstructure:"queue"`
	DeadLetter    string `mapstructure:"dead_letter_exchange"`
	DeliveryLimit int    `mapstructure:"delivery_limit"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// SQSConfig definition aws sqs setting
type SQSConfig struct {
	Region   string `mapstructure:"region"`
	QueueURL string `mapstructure:"queue_url"`
	Endpoint string `mapstructure:"endpoint"`
}

// RedisConfig definition redis setting, MasterName switches to sentinel mode
type RedisConfig struct {
	Addr          string   `mapstructure:"addr"`
	Password      string   `mapstructure:"password"`
	RedisDB       int      `mapstructure:"redis_db"`
	MasterName    string   `mapstructure:"master_name"`
	SentinelAddrs []string `mapstructure:"sentinel_addrs"`
}

// QueueConfig definition job queue retry policy
type QueueConfig struct {
	Name          string        `mapstructure:"name"`
	Workers       int           `mapstructure:"workers"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	BackoffMax    time.Duration `mapstructure:"backoff_max"`
	LeaseTimeout  time.Duration `mapstructure:"lease_timeout"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
}

// TranscodeConfig definition ffmpeg setting
type TranscodeConfig struct {
	FFmpegPath      string        `mapstructure:"ffmpeg_path"`
	FFprobePath     string        `mapstructure:"ffprobe_path"`
	EngineTimeout   time.Duration `mapstructure:"engine_timeout"`
	ThumbnailOffset time.Duration `mapstructure:"thumbnail_offset"`
	HighResMinimum  int           `mapstructure:"high_res_minimum"`
}

// DeadLetterConfig definition dead letter sink, driver is mongo or kafka
type DeadLetterConfig struct {
	Driver string      `mapstructure:"driver" validate:"omitempty,oneof=mongo kafka"`
	Mongo  MongoConfig `mapstructure:"mongo"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// MongoConfig definition mongo setting
type MongoConfig struct {
	URI           string        `mapstructure:"uri"`
	Database      string        `mapstructure:"database"`
	Collection    string        `mapstructure:"collection"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryCount    int      `mapstructure:"retry_count"`
	RetryInterval int      `mapstructure:"retry_interval"`
}
