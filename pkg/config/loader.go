package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvInfo 集合服務端口 from .env
type EnvInfo struct {
	// service name
	APIGateway      string
	Ingestor        string
	TranscodeWorker string
	Inspector       string

	// service ports
	APIGatewayPort string

	// service yaml path
	APIGatewayYAMLPath      string
	IngestorYAMLPath        string
	TranscodeWorkerYAMLPath string
	InspectorYAMLPath       string

	// service log path
	APIGatewayLogPath      string
	IngestorLogPath        string
	TranscodeWorkerLogPath string
	InspectorLogPath       string
}

// EnvConfig 集合服務端口
var (
	EnvConfig = initEnv()
	envConfig EnvInfo
	once      sync.Once
	env       string

	validate = validator.New()
)

func initEnv() EnvInfo {
	once.Do(func() {
		path, err := GetPath(".env", 5)
		if err != nil {
			log.Printf("Warning: Could not get .env path: %v", err)
		}

		if path != "" {
			if err := godotenv.Load(path); err != nil {
				log.Printf("Warning: Could not load .env file: %v", err)
			}
		}

		env = os.Getenv("ENV")

		envConfig = EnvInfo{
			APIGateway:      getEnv("API_GATEWAY", "api_gateway"),
			Ingestor:        getEnv("INGESTOR", "ingestor"),
			TranscodeWorker: getEnv("TRANSCODE_WORKER", "transcode_worker"),
			Inspector:       getEnv("DEADLETTER_INSPECTOR", "deadletter_inspector"),

			APIGatewayPort: getEnv("API_GATEWAY_PORT", "8080"),

			APIGatewayYAMLPath:      getEnv("API_GATEWAY_YAML", "./config"),
			IngestorYAMLPath:        getEnv("INGESTOR_YAML", "./config"),
			TranscodeWorkerYAMLPath: getEnv("TRANSCODE_WORKER_YAML", "./config"),
			InspectorYAMLPath:       getEnv("DEADLETTER_INSPECTOR_YAML", "./config"),

			APIGatewayLogPath:      getEnv("API_GATEWAY_LOG", "./log"),
			IngestorLogPath:        getEnv("INGESTOR_LOG", "./log"),
			TranscodeWorkerLogPath: getEnv("TRANSCODE_WORKER_LOG", "./log"),
			InspectorLogPath:       getEnv("DEADLETTER_INSPECTOR_LOG", "./log"),
		}
	})

	return envConfig
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IsProduction check run env
func IsProduction() bool {
	return env == "production"
}

// IsLocal check run env
func IsLocal() bool {
	return env == "local"
}

// LoadConfig 加載配置, exit when the file is missing or invalid
func LoadConfig[T any](serviceName string, configPath string) T {
	cfg, err := Load[T](serviceName, configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return cfg
}

// Load read <configPath>/<serviceName>.yaml, expand ${VAR} placeholders and validate the result
func Load[T any](serviceName string, configPath string) (T, error) {
	var cfg T

	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// 自動讀取環境變數
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	rawConfig, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return cfg, fmt.Errorf("read raw config file: %w", err)
	}

	// 替換 ${} 占位符為環境變數的值
	expandedConfig := os.ExpandEnv(string(rawConfig))
	if err := v.ReadConfig(bytes.NewBufferString(expandedConfig)); err != nil {
		return cfg, fmt.Errorf("read expanded config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate run the struct tag rules over cfg
func Validate(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetPath use fileName loop maxCount find file path
func GetPath(fileName string, maxCount int) (string, error) {
	path := "./" + fileName

	for i := 0; i < maxCount; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = "../" + path
	}
	return "", errors.New(fileName + " can't find path")
}
