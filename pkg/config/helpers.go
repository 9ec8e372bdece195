package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// SetValue sets a configuration value by key
// Supported keys:
//   - base_url: string - root URL of the dump server
//   - user_agent: string - User-Agent header sent with every request
//   - http_timeout: duration - timeout of a single request, e.g. 30s
//   - retry_backoff: duration - wait before the first retry
//   - max_attempts: int - transfer requests per file
//   - block_size: int - copy buffer size in bytes
//   - concurrency: int - languages processed at once
//   - resume, force: bool
//   - log_level: string - Logging level (debug, info, warn, error)
//   - log_format: string - text or json
//   - log_file: string - rotating log file, empty for stdout only
func (c *Config) SetValue(key, value string) error {
	switch key {
	case "base_url":
		c.BaseURL = value
	case "user_agent":
		c.Settings.UserAgent = value
	case "http_timeout", "retry_backoff":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %s", key, value)
		}
		if key == "http_timeout" {
			c.Settings.HTTPTimeout = d
		} else {
			c.Settings.RetryBackoff = d
		}
	case "max_attempts", "block_size", "concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		switch key {
		case "max_attempts":
			c.Settings.MaxAttempts = n
		case "block_size":
			c.Settings.BlockSize = n
		default:
			c.Settings.Concurrency = n
		}
	case "resume", "force":
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %s", key, value)
		}
		if key == "resume" {
			c.Settings.Resume = boolPtr(boolVal)
		} else {
			c.Settings.Force = boolVal
		}
	case "log_level":
		c.Settings.LogLevel = value
	case "log_format":
		c.Settings.LogFormat = value
	case "log_file":
		c.Settings.LogFile = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// GetValue returns the value of key as a string.
func (c *Config) GetValue(key string) (string, error) {
	if key == "base_url" {
		return c.BaseURL, nil
	}
	value, ok := c.ToMap()[key]
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	return value, nil
}

// ToMap returns the settings keyed by their YAML names.
// This is useful for displaying the configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)

	settingsValue := reflect.ValueOf(c.Settings)
	settingsType := settingsValue.Type()

	for i := 0; i < settingsValue.NumField(); i++ {
		field := settingsType.Field(i)
		yamlTag := field.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		// Handle yaml tags with options (e.g., "log_file,omitempty")
		yamlKey := strings.Split(yamlTag, ",")[0]

		fieldValue := settingsValue.Field(i)
		var strValue string

		switch fieldValue.Kind() {
		case reflect.Bool:
			strValue = strconv.FormatBool(fieldValue.Bool())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if d, ok := fieldValue.Interface().(time.Duration); ok {
				strValue = d.String()
			} else {
				strValue = strconv.FormatInt(fieldValue.Int(), 10)
			}
		case reflect.Pointer:
			if fieldValue.IsNil() {
				strValue = "<nil>"
			} else {
				strValue = fmt.Sprintf("%v", fieldValue.Elem().Interface())
			}
		case reflect.String:
			strValue = fieldValue.String()
		default:
			strValue = fmt.Sprintf("%v", fieldValue.Interface())
		}

		result[yamlKey] = strValue
	}

	return result
}
