package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Tagger   Tagger   `yaml:"tagger"`
	OpenAI   OpenAI   `yaml:"openai"`
	Log      Log      `yaml:"log"`
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Minio    Minio    `yaml:"minio"`
	Redis    Redis    `yaml:"redis"`
	Scraper  Scraper  `yaml:"scraper"`
}

type Tagger struct {
	ImagesDir   string        `yaml:"imagesDir"`
	StorePath   string        `yaml:"storePath"`
	Extension   string        `yaml:"extension"`
	Pattern     string        `yaml:"pattern"`
	IgnoreFile  string        `yaml:"ignoreFile"`
	Category    string        `yaml:"category"`
	Pacing      time.Duration `yaml:"pacing"`
	StopOnQuota bool          `yaml:"stopOnQuota"`
}

type OpenAI struct {
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseURL"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature float32       `yaml:"temperature"`
	Detail      string        `yaml:"detail"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Server struct {
	Port      int `yaml:"port"`
	RateLimit int `yaml:"rateLimit"` // requests per second per client, 0 disables
}

type Database struct {
	Driver   string `yaml:"driver"` // mysql | postgres | sqlite, empty disables
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite file
	SSLMode  string `yaml:"sslMode"`
}

type Minio struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	BucketName string `yaml:"bucketName"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"useSSL"`
	Prefix     string `yaml:"prefix"`
}

type Redis struct {
	Addr     string `yaml:"addr"` // empty disables progress reporting
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type Scraper struct {
	StartURL  string        `yaml:"startURL"`
	Pages     int           `yaml:"pages"`
	PageParam string        `yaml:"pageParam"`
	OutputDir string        `yaml:"outputDir"`
	MinDelay  time.Duration `yaml:"minDelay"`
	MaxDelay  time.Duration `yaml:"maxDelay"`
	PageDelay time.Duration `yaml:"pageDelay"`
	UserAgent string        `yaml:"userAgent"`
	Referer   string        `yaml:"referer"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Default is what an empty config.yaml means.
func Default() Config {
	return Config{
		Tagger: Tagger{
			ImagesDir:  "shopbop_images",
			StorePath:  "shopbop_analysis.json",
			Extension:  ".jpg",
			IgnoreFile: ".taggerignore",
			Category:   "sweaters",
			Pacing:     time.Second,
		},
		OpenAI: OpenAI{
			Model:       "gpt-4o",
			MaxTokens:   1500,
			Temperature: 0.5,
			Detail:      "high",
			Timeout:     2 * time.Minute,
		},
		Log: Log{
			Level: "info",
			File:  "image_analysis.log",
		},
		Server: Server{Port: 8080, RateLimit: 20},
		Minio:  Minio{Prefix: "analysis"},
		Redis:  Redis{Key: "tagger:progress"},
		Scraper: Scraper{
			StartURL:  "https://www.shopbop.com/clothing-sweaters-knits/br/v=1/13317.htm",
			Pages:     5,
			PageParam: "page",
			OutputDir: "shopbop_images",
			MinDelay:  2 * time.Second,
			MaxDelay:  5 * time.Second,
			PageDelay: 5 * time.Second,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			Referer:   "https://www.shopbop.com/",
			Timeout:   60 * time.Second,
		},
	}
}

// Load baca file config.yaml. A missing file means defaults only.
// Values left empty in the file are filled from Default; OPENAI_API_KEY overrides the file.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return nil, fmt.Errorf("merge config defaults: %w", err)
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	return &cfg, nil
}

// LoadEnv loads a dotenv file into the process environment when it exists.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
