package mqttv3

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config defines the structure of client configuration data parsed
// from a YAML config source. Every field is optional; zero values fall
// back to the client defaults.
type Config struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	CleanSession *bool  `yaml:"clean_session" json:"clean_session"`

	// KeepAliveSeconds is the keep-alive interval; 0 disables
	// keep-alive, absence means the default.
	KeepAliveSeconds *int `yaml:"keep_alive_seconds" json:"keep_alive_seconds"`

	Will *WillConfig `yaml:"will" json:"will"`

	ProxyURL string `yaml:"proxy_url" json:"proxy_url"`

	// TLSErrorAllowList names tolerated certificate verification
	// failures: unknown_authority, certificate_expired,
	// hostname_mismatch, certificate_invalid.
	TLSErrorAllowList []string `yaml:"tls_error_allow_list" json:"tls_error_allow_list"`

	PublishRate *PublishRateConfig `yaml:"publish_rate" json:"publish_rate"`
}

// WillConfig configures the last-will message.
type WillConfig struct {
	Topic   string `yaml:"topic" json:"topic"`
	Payload string `yaml:"payload" json:"payload"`
	Retain  bool   `yaml:"retain" json:"retain"`
	QoS     byte   `yaml:"qos" json:"qos"`
}

// PublishRateConfig configures outbound publish pacing.
type PublishRateConfig struct {
	PerSecond float64 `yaml:"per_second" json:"per_second"`
	Burst     int     `yaml:"burst" json:"burst"`
}

// FromBytes parses a YAML config document into client options.
func FromBytes(data []byte) ([]Option, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return cfg.ToOptions()
}

// FromFile reads and parses a YAML config file into client options.
func FromFile(path string) ([]Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(data)
}

// ToOptions converts the parsed configuration into client options.
func (c *Config) ToOptions() ([]Option, error) {
	var opts []Option

	if c.ClientID != "" {
		opts = append(opts, WithClientID(c.ClientID))
	}

	if c.Username != "" {
		opts = append(opts, WithCredentials(c.Username, []byte(c.Password)))
	}

	if c.CleanSession != nil {
		opts = append(opts, WithCleanSession(*c.CleanSession))
	}

	if c.KeepAliveSeconds != nil {
		opts = append(opts, WithKeepAlive(time.Duration(*c.KeepAliveSeconds)*time.Second))
	}

	if c.Will != nil {
		will := Will{
			Topic:   c.Will.Topic,
			Payload: []byte(c.Will.Payload),
			Retain:  c.Will.Retain,
			QoS:     QoS(c.Will.QoS),
		}
		if err := will.Validate(); err != nil {
			return nil, err
		}
		opts = append(opts, WithWill(will))
	}

	if c.ProxyURL != "" {
		opts = append(opts, WithProxy(c.ProxyURL))
	}

	if len(c.TLSErrorAllowList) > 0 {
		codes := make([]TLSErrorCode, 0, len(c.TLSErrorAllowList))
		for _, name := range c.TLSErrorAllowList {
			code, err := parseTLSErrorCode(name)
			if err != nil {
				return nil, err
			}
			codes = append(codes, code)
		}
		opts = append(opts, WithTLSErrorAllowList(codes...))
	}

	if c.PublishRate != nil {
		if c.PublishRate.PerSecond <= 0 || c.PublishRate.Burst <= 0 {
			return nil, fmt.Errorf("publish_rate requires positive per_second and burst")
		}
		opts = append(opts, WithPublishRateLimit(rate.Limit(c.PublishRate.PerSecond), c.PublishRate.Burst))
	}

	return opts, nil
}

// parseTLSErrorCode maps a config name to its TLS error code.
func parseTLSErrorCode(name string) (TLSErrorCode, error) {
	switch name {
	case "unknown_authority":
		return TLSErrUnknownAuthority, nil
	case "certificate_expired":
		return TLSErrCertificateExpired, nil
	case "hostname_mismatch":
		return TLSErrHostnameMismatch, nil
	case "certificate_invalid":
		return TLSErrCertificateInvalid, nil
	default:
		return TLSErrUnknown, fmt.Errorf("unknown TLS error code %q", name)
	}
}
