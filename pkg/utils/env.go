package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func GetEnvTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func GetEnvTrimmedOrDefault(key, defaultValue string) string {
	if v := GetEnvTrimmed(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvUnquoted trims the value and strips one pair of matching quotes, as
// left behind by some .env editors and secret stores.
func GetEnvUnquoted(key string) string {
	return Unquote(os.Getenv(key))
}

func GetEnvUnquotedOrDefault(key, defaultValue string) string {
	if v := GetEnvUnquoted(key); v != "" {
		return v
	}
	return defaultValue
}

func Unquote(v string) string {
	s := strings.TrimSpace(v)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return s
}

// GetEnvPositiveInt falls back to defaultValue when unset, malformed or not positive.
func GetEnvPositiveInt(key string, defaultValue int64) int64 {
	parsed, err := strconv.ParseInt(GetEnvTrimmed(key), 10, 64)
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}

// GetEnvPositiveDuration falls back to defaultValue when unset, malformed or not positive.
func GetEnvPositiveDuration(key string, defaultValue time.Duration) time.Duration {
	parsed, err := time.ParseDuration(GetEnvTrimmed(key))
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}

func GetEnvBool(key string, defaultValue bool) bool {
	parsed, err := strconv.ParseBool(GetEnvTrimmed(key))
	if err != nil {
		return defaultValue
	}
	return parsed
}

// GetEnvList splits a comma separated value, dropping empty items.
func GetEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
