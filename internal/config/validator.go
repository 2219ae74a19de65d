package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks every configuration invariant. A failure here is fatal
// for the whole run; nothing is processed with a broken configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Sprintf("confidence threshold must be in [0,1], got %.2f", c.ConfidenceThreshold))
	}
	if c.NERTriggerThreshold < 0 || c.NERTriggerThreshold > 1 {
		errs = append(errs, fmt.Sprintf("ner trigger threshold must be in [0,1], got %.2f", c.NERTriggerThreshold))
	}
	if err := c.SimilarityWeights.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.NERTimeoutSeconds < 1 {
		errs = append(errs, "ner timeout must be at least 1 second")
	}
	if c.BatchSize < 1 {
		errs = append(errs, "batch size must be at least 1")
	}
	if c.Workers < 1 {
		errs = append(errs, "workers must be at least 1")
	}
	if c.CanonicalDatabasePath == "" {
		errs = append(errs, "canonical database path is required")
	}
	if c.Port != "" {
		if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("invalid port: %s", c.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
