package models

import "time"

// ConfigurationType defines supported types for configuration values.
type ConfigurationType string

const (
	ConfigurationTypeString  ConfigurationType = "STRING"
	ConfigurationTypeBoolean ConfigurationType = "BOOLEAN"
)

// Configuration represents a persisted configuration entry.
type Configuration struct {
	Key         string            `db:"key" json:"key"`
	Value       string            `db:"value" json:"value"`
	Type        ConfigurationType `db:"type" json:"type"`
	Description *string           `db:"description" json:"description,omitempty"`
	UpdatedBy   *string           `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// FieldRule states whether a payload field of a workflow operation is mandatory.
// It is persisted as a BOOLEAN configuration keyed "{operation}.{field}".
type FieldRule struct {
	Key         string     `json:"key"`
	Operation   string     `json:"operation"`
	Field       string     `json:"field"`
	Required    bool       `json:"required"`
	Default     bool       `json:"default"`
	Description string     `json:"description"`
	UpdatedBy   *string    `json:"updated_by,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
