package config

import "fmt"

func (c *Config) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("%s is required", KeyServerURL)
	}
	for key, val := range map[string]int{
		KeyStatusIntervalSeconds:  c.StatusIntervalSeconds,
		KeyHistoryIntervalSeconds: c.HistoryIntervalSeconds,
		KeyConsoleIntervalSeconds: c.ConsoleIntervalSeconds,
		KeyRequestTimeoutSeconds:  c.RequestTimeoutSeconds,
		KeyRetentionHours:         c.RetentionHours,
		KeyMaxRetainedSamples:     c.MaxRetainedSamples,
	} {
		if val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, val)
		}
	}
	if c.DebounceWindowSeconds < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyDebounceWindowSeconds, c.DebounceWindowSeconds)
	}
	if c.BucketCount < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", KeyBucketCount, c.BucketCount)
	}
	if c.PushMaxReconnects < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyPushMaxReconnects, c.PushMaxReconnects)
	}
	return nil
}
