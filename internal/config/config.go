package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	MinFPS       = 1
	MaxFPS       = 60
	MinCacheSize = 10
	MaxCacheSize = 1000
)

type Config struct {
	ShotList          string      `yaml:"shot_list"`
	AudioPath         string      `yaml:"audio_path"`
	Department        string      `yaml:"department"`
	FPS               int         `yaml:"fps"`
	MaxCacheSize      int         `yaml:"max_cache_size"` // 0 = suggest from free memory
	StartIndex        int         `yaml:"start_index"`
	AudioOffsetFrames *int        `yaml:"audio_offset_frames,omitempty"`
	Loop              bool        `yaml:"loop"`
	SceneMode         bool        `yaml:"scene_mode"`
	HTTPAddr          string      `yaml:"http_addr"`
	HistoryDB         string      `yaml:"history_db"`
	Preview           PreviewSize `yaml:"preview"`
	MQTT              MQTTConfig  `yaml:"mqtt"`
}

type PreviewSize struct {
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	JPEGQuality int `yaml:"jpeg_quality"`
}

type MQTTConfig struct {
	Broker       string `yaml:"broker"` // host:port, empty disables the control plane
	ClientID     string `yaml:"client_id"`
	ControlTopic string `yaml:"control_topic"`
	StatusTopic  string `yaml:"status_topic"`
	QoS          byte   `yaml:"qos"`
}

// Default returns the settings the review station ships with.
func Default() *Config {
	return &Config{
		Department:   "animazione",
		FPS:          25,
		MaxCacheSize: 150,
		Preview: PreviewSize{
			Width:       960,
			Height:      540,
			JPEGQuality: 80,
		},
		MQTT: MQTTConfig{
			ClientID:     "shotplayer",
			ControlTopic: "shotplayer/control",
			StatusTopic:  "shotplayer/status",
		},
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Write stores the config as YAML.
func Write(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks ranges. A zero MaxCacheSize is allowed and resolved by the caller.
func (c *Config) Validate() error {
	var errs []error
	if c.FPS < MinFPS || c.FPS > MaxFPS {
		errs = append(errs, fmt.Errorf("fps %d out of range [%d, %d]", c.FPS, MinFPS, MaxFPS))
	}
	if c.MaxCacheSize != 0 && (c.MaxCacheSize < MinCacheSize || c.MaxCacheSize > MaxCacheSize) {
		errs = append(errs, fmt.Errorf("max_cache_size %d out of range [%d, %d]", c.MaxCacheSize, MinCacheSize, MaxCacheSize))
	}
	if c.StartIndex < 0 {
		errs = append(errs, fmt.Errorf("start_index %d is negative", c.StartIndex))
	}
	if c.Department == "" {
		errs = append(errs, errors.New("department is empty"))
	}
	if c.MQTT.Broker != "" && c.MQTT.ControlTopic == "" {
		errs = append(errs, errors.New("mqtt.control_topic is required when mqtt.broker is set"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d is not 0, 1 or 2", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}

// AudioOffset returns the initial audio position in frames.
func (c *Config) AudioOffset() int {
	if c.AudioOffsetFrames != nil {
		return *c.AudioOffsetFrames
	}
	return c.StartIndex
}
