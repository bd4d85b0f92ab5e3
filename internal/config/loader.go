package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the transport service.
type Config struct {
	HTTPPort                  int
	SQLiteDSN                 string
	SessionSecret             string
	SessionTTL                time.Duration
	Timezone                  string
	ChangeLeadDays            int
	EnforceSubmissionDeadline bool
	AMQPURL                   string
	RedisAddr                 string
	PlacesBaseURL             string
	PlacesAPIKey              string
	PushEndpoint              string
	PushAPIKey                string
}

// Load parses configuration values from the current process environment.
//
// Optional integrations (broker, cache, geocoding, push gateway) default to
// empty and disable the corresponding component; required values and invalid
// entries are reported together.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:       8080,
		SQLiteDSN:      "file:transport.db?_foreign_keys=on",
		SessionTTL:     24 * time.Hour,
		ChangeLeadDays: 7,
		PlacesBaseURL:  "https://maps.googleapis.com/maps/api/place",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("TRANSPORT_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "TRANSPORT_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("TRANSPORT_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("TRANSPORT_SESSION_SECRET")); secret == "" {
		missing = append(missing, "TRANSPORT_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if ttlValue := strings.TrimSpace(os.Getenv("TRANSPORT_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "TRANSPORT_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	cfg.Timezone = strings.TrimSpace(os.Getenv("TRANSPORT_TIMEZONE"))

	if leadValue := strings.TrimSpace(os.Getenv("TRANSPORT_CHANGE_LEAD_DAYS")); leadValue != "" {
		lead, err := strconv.Atoi(leadValue)
		if err != nil || lead <= 0 {
			invalid = append(invalid, "TRANSPORT_CHANGE_LEAD_DAYS")
		} else {
			cfg.ChangeLeadDays = lead
		}
	}

	if enforceValue := strings.TrimSpace(os.Getenv("TRANSPORT_ENFORCE_DEADLINE")); enforceValue != "" {
		enforce, err := strconv.ParseBool(enforceValue)
		if err != nil {
			invalid = append(invalid, "TRANSPORT_ENFORCE_DEADLINE")
		} else {
			cfg.EnforceSubmissionDeadline = enforce
		}
	}

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("TRANSPORT_AMQP_URL"))
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("TRANSPORT_REDIS_ADDR"))
	if baseURL := strings.TrimSpace(os.Getenv("TRANSPORT_PLACES_BASE_URL")); baseURL != "" {
		cfg.PlacesBaseURL = baseURL
	}
	cfg.PlacesAPIKey = strings.TrimSpace(os.Getenv("TRANSPORT_PLACES_API_KEY"))
	cfg.PushEndpoint = strings.TrimSpace(os.Getenv("TRANSPORT_PUSH_ENDPOINT"))
	cfg.PushAPIKey = strings.TrimSpace(os.Getenv("TRANSPORT_PUSH_API_KEY"))

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Location resolves the configured timezone, falling back to the process
// local zone when unset.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
