package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Http      HttpConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Backend   BackendConfig   `yaml:"backend"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Webcam    WebcamConfig    `yaml:"webcam"`
	Cameras   []CameraConfig  `yaml:"cameras"`
	Slack     SlackConfig     `yaml:"slack"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Mqtt      MqttConfig      `yaml:"mqtt"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type HttpConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BackendConfig describes the remote detection service polled for alerts.
type BackendConfig struct {
	Enabled      bool          `yaml:"enabled"`
	URL          string        `yaml:"url"`
	StreamURL    string        `yaml:"stream_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	// BackoffMax caps the retry delay after consecutive poll failures.
	// Zero keeps the fixed poll interval.
	BackoffMax time.Duration `yaml:"backoff_max"`
}

type SimulatorConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	Probability   float64       `yaml:"probability"`
	MinConfidence float64       `yaml:"min_confidence"`
	MaxConfidence float64       `yaml:"max_confidence"`
	Weapons       []string      `yaml:"weapons"`
}

type WebcamConfig struct {
	AutoStart            bool          `yaml:"auto_start"`
	SampleInterval       time.Duration `yaml:"sample_interval"`
	DetectionProbability float64       `yaml:"detection_probability"`
	Width                int           `yaml:"width"`
	Height               int           `yaml:"height"`
	MinConfidence        float64       `yaml:"min_confidence"`
	MaxConfidence        float64       `yaml:"max_confidence"`
	Weapons              []string      `yaml:"weapons"`
	Camera               string        `yaml:"camera"`
	Location             string        `yaml:"location"`
}

type CameraConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Status   string `yaml:"status"`
}

type SlackConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	Channels       map[string]string    `yaml:"channels"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	FailureThreshold    int `yaml:"failure_threshold"`
	TimeoutDuration     int `yaml:"timeout_duration"`
	HalfOpenMaxRequests int `yaml:"half_open_max_requests"`
}

type KafkaConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Brokers         []string `yaml:"brokers"`
	EventsTopic     string   `yaml:"events_topic"`
	DetectionsTopic string   `yaml:"detections_topic"`
	GroupID         string   `yaml:"group_id"`
}

type MqttConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

type TracingConfig struct {
	Enabled           bool    `yaml:"enabled"`
	ServiceName       string  `yaml:"service_name"`
	CollectorEndpoint string  `yaml:"collector_endpoint"`
	SampleRate        float64 `yaml:"sample_rate"`
}

// Default returns a configuration that runs the dashboard with the local
// simulator and the remote poller against localhost.
func Default() Config {
	return Config{
		Http: HttpConfig{Port: 8080},
		Log:  LogConfig{Level: "info", Format: "json"},
		Backend: BackendConfig{
			Enabled:      true,
			URL:          "http://localhost:5000",
			StreamURL:    "http://localhost:5000/video_feed",
			PollInterval: 2 * time.Second,
			Timeout:      5 * time.Second,
		},
		Simulator: SimulatorConfig{
			Enabled:       true,
			Interval:      5 * time.Second,
			Probability:   0.1,
			MinConfidence: 0.6,
			MaxConfidence: 1.0,
			Weapons:       []string{"knife", "gun"},
		},
		Webcam: WebcamConfig{
			SampleInterval:       100 * time.Millisecond,
			DetectionProbability: 0.05,
			Width:                640,
			Height:               480,
			MinConfidence:        0.6,
			MaxConfidence:        1.0,
			Weapons:              []string{"knife", "gun"},
			Camera:               "Primary Webcam",
			Location:             "Local Device",
		},
		Cameras: []CameraConfig{
			{ID: "cam-001", Name: "Main Entrance", Location: "Building A - Ground Floor", Status: "active"},
			{ID: "cam-002", Name: "Parking Garage", Location: "Underground Level B1", Status: "active"},
			{ID: "cam-003", Name: "Lobby Security", Location: "Building A - Lobby", Status: "active"},
			{ID: "cam-004", Name: "Emergency Exit", Location: "Building A - West Wing", Status: "active"},
		},
		Slack: SlackConfig{
			Channels: map[string]string{"default": "#security-alerts", "critical": "#security-critical"},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:    5,
				TimeoutDuration:     60,
				HalfOpenMaxRequests: 3,
			},
		},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			EventsTopic:     "weapon-alert-events",
			DetectionsTopic: "weapon-detections",
			GroupID:         "weaponwatch-dashboard",
		},
		Mqtt: MqttConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "weaponwatch-dashboard",
			Topic:    "cameras/+/status",
			QoS:      1,
		},
		Tracing: TracingConfig{
			ServiceName:       "weaponwatch-dashboard",
			CollectorEndpoint: "http://jaeger:14268/api/traces",
			SampleRate:        1,
		},
	}
}

func Load() (Config, error) {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		// Default: try relative path from project root
		configPath = "configs/prod.yaml"

		// If that doesn't exist, try from cmd/dashboard
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "../../configs/prod.yaml"
		}
	}

	byteYaml, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("could not read %s: %w", configPath, err)
	}

	return Parse(byteYaml)
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates the result.
func Parse(byteYaml []byte) (Config, error) {
	config := Default()
	if err := yaml.Unmarshal(byteYaml, &config); err != nil {
		return Config{}, fmt.Errorf("could not unmarshal config: %w", err)
	}

	applyEnv(&config)

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.EventsTopic = v
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.Http.Port))
	}
	if c.Backend.Enabled {
		if c.Backend.URL == "" {
			errs = append(errs, errors.New("backend.url is required when the backend is enabled"))
		}
		if c.Backend.PollInterval <= 0 {
			errs = append(errs, errors.New("backend.poll_interval must be positive"))
		}
		if c.Backend.BackoffMax < 0 {
			errs = append(errs, errors.New("backend.backoff_max must not be negative"))
		}
	}
	if c.Simulator.Enabled {
		if c.Simulator.Interval <= 0 {
			errs = append(errs, errors.New("simulator.interval must be positive"))
		}
		errs = append(errs, checkProbability("simulator.probability", c.Simulator.Probability))
		errs = append(errs, checkConfidenceRange("simulator", c.Simulator.MinConfidence, c.Simulator.MaxConfidence))
		if len(c.Simulator.Weapons) == 0 {
			errs = append(errs, errors.New("simulator.weapons must not be empty"))
		}
	}

	if c.Webcam.SampleInterval <= 0 {
		errs = append(errs, errors.New("webcam.sample_interval must be positive"))
	}
	errs = append(errs, checkProbability("webcam.detection_probability", c.Webcam.DetectionProbability))
	errs = append(errs, checkConfidenceRange("webcam", c.Webcam.MinConfidence, c.Webcam.MaxConfidence))
	if c.Webcam.Width <= 0 || c.Webcam.Height <= 0 {
		errs = append(errs, errors.New("webcam frame size must be positive"))
	}
	if len(c.Webcam.Weapons) == 0 {
		errs = append(errs, errors.New("webcam.weapons must not be empty"))
	}

	seen := make(map[string]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.ID == "" {
			errs = append(errs, errors.New("camera id is required"))
			continue
		}
		if seen[cam.ID] {
			errs = append(errs, fmt.Errorf("duplicate camera id %q", cam.ID))
		}
		seen[cam.ID] = true
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if c.Mqtt.Enabled && c.Mqtt.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}

	return errors.Join(errs...)
}

func checkProbability(name string, p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("%s must be within [0,1], got %v", name, p)
	}
	return nil
}

func checkConfidenceRange(name string, lo, hi float64) error {
	if lo < 0 || hi > 1 || lo > hi {
		return fmt.Errorf("%s confidence range [%v,%v] must be an ordered sub-range of [0,1]", name, lo, hi)
	}
	return nil
}

func GetSlackToken() string {
	return os.Getenv("SLACK_BOT_TOKEN")
}
