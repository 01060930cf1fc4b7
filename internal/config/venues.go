package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// VenueConfig describes a single catalog venue.
type VenueConfig struct {
	Name           string               `yaml:"name"`
	Type           string               `yaml:"type"`
	Description    string               `yaml:"description"`
	Location       string               `yaml:"location"`
	Price          float64              `yaml:"price"`
	PriceUnit      string               `yaml:"price_unit"`
	NeedApproval   bool                 `yaml:"need_approval"`
	MinCancelHours *int                 `yaml:"min_cancel_hours,omitempty"`
	Enabled        *bool                `yaml:"enabled,omitempty"`
	Schedule       *VenueScheduleConfig `yaml:"schedule,omitempty"`
}

// VenueScheduleConfig holds the daily opening hours.
type VenueScheduleConfig struct {
	OpenTime            string `yaml:"open_time"`             // "08:00"
	CloseTime           string `yaml:"close_time"`            // "22:00"
	SlotDurationMinutes int    `yaml:"slot_duration_minutes"` // 60
}

// VenuesConfig is the root configuration for venues.yaml.
type VenuesConfig struct {
	Venues   []VenueConfig `yaml:"venues"`
	Defaults struct {
		Schedule *VenueScheduleConfig `yaml:"schedule"`
	} `yaml:"defaults"`
}

// LoadVenuesConfig loads and validates the venue catalog seed.
func LoadVenuesConfig(path string) (*VenuesConfig, error) {
	if path == "" {
		path = "configs/venues.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read venues config: %w", err)
	}
	return ParseVenuesConfig(data)
}

// ParseVenuesConfig decodes, defaults and validates a venues.yaml document.
func ParseVenuesConfig(data []byte) (*VenuesConfig, error) {
	var cfg VenuesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse venues config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate venues config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *VenuesConfig) Validate() error {
	names := make(map[string]bool)

	for i, v := range c.Venues {
		if v.Name == "" {
			return fmt.Errorf("venue[%d]: name is required", i)
		}
		if names[v.Name] {
			return fmt.Errorf("venue[%d]: duplicate name '%s'", i, v.Name)
		}
		names[v.Name] = true

		if v.Type == "" {
			return fmt.Errorf("venue[%d]: type is required", i)
		}
		if v.Price < 0 {
			return fmt.Errorf("venue[%d]: price cannot be negative", i)
		}
		if v.MinCancelHours != nil && *v.MinCancelHours < 0 {
			return fmt.Errorf("venue[%d]: min_cancel_hours cannot be negative", i)
		}
		if v.Schedule == nil {
			return fmt.Errorf("venue[%d]: schedule is required (set defaults.schedule)", i)
		}
		if err := validateSchedule(v.Schedule, fmt.Sprintf("venue[%d].schedule", i)); err != nil {
			return err
		}
	}

	return nil
}

func validateSchedule(s *VenueScheduleConfig, prefix string) error {
	openTime, err := time.Parse("15:04", s.OpenTime)
	if err != nil {
		return fmt.Errorf("%s.open_time: invalid format '%s', expected HH:MM", prefix, s.OpenTime)
	}

	closeTime, err := time.Parse("15:04", s.CloseTime)
	if err != nil {
		return fmt.Errorf("%s.close_time: invalid format '%s', expected HH:MM", prefix, s.CloseTime)
	}

	if !closeTime.After(openTime) {
		return fmt.Errorf("%s: close_time must be after open_time", prefix)
	}

	if s.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%s.slot_duration_minutes must be positive", prefix)
	}

	return nil
}

func (c *VenuesConfig) applyDefaults() {
	for i := range c.Venues {
		if c.Venues[i].Schedule == nil && c.Defaults.Schedule != nil {
			sched := *c.Defaults.Schedule
			c.Venues[i].Schedule = &sched
		}
	}
}

// IsEnabled reports the configured enabled flag, true when omitted.
func (v VenueConfig) IsEnabled() bool {
	return v.Enabled == nil || *v.Enabled
}
