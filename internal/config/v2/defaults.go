package v2

import (
	"fmt"
	"strings"
)

// DefaultsEngine provides defaults for component configurations
type DefaultsEngine struct {
	componentDefaults map[string]map[string]interface{}
}

// NewDefaultsEngine creates a new defaults engine
func NewDefaultsEngine() *DefaultsEngine {
	return &DefaultsEngine{
		componentDefaults: getComponentDefaults(),
	}
}

// ApplyDefaults returns a copy of config with component defaults filled in.
// User values always win.
func (e *DefaultsEngine) ApplyDefaults(componentType string, config map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	if defaults, ok := e.componentDefaults[componentType]; ok {
		for key, value := range defaults {
			result[key] = value
		}
	}

	for key, value := range config {
		result[key] = value
	}

	e.applySmartDefaults(componentType, result)

	return result
}

// applySmartDefaults derives settings from other fields
func (e *DefaultsEngine) applySmartDefaults(componentType string, config map[string]interface{}) {
	switch componentType {
	case "SaveToParquet":
		storageType, _ := config["storage_type"].(string)
		if strings.EqualFold(storageType, "S3") {
			if _, hasRegion := config["region"]; !hasRegion {
				config["region"] = "us-east-1"
			}
		}
	}
}

// GetDefaultsForComponent returns the default values for a component type
func (e *DefaultsEngine) GetDefaultsForComponent(componentType string) map[string]interface{} {
	if defaults, ok := e.componentDefaults[componentType]; ok {
		result := make(map[string]interface{})
		for k, v := range defaults {
			result[k] = v
		}
		return result
	}
	return make(map[string]interface{})
}

func getComponentDefaults() map[string]map[string]interface{} {
	return map[string]map[string]interface{}{
		// Source defaults
		"NDJSONFileSourceAdapter": {
			"skip_malformed": false,
		},

		// Processor defaults
		"TransformFlights": {
			"debug":             false,
			"quiet_diagnostics": false,
		},

		// Consumer defaults
		"SaveToParquet": {
			"storage_type":   "FS",
			"compression":    "snappy",
			"row_group_size": 65536,
			"max_retries":    3,
		},
		"SaveToDuckDB": {
			"db_path":    "flights.duckdb",
			"table_name": "flights",
			"replace":    false,
		},
		"SaveToSQLite": {
			"table_name": "flights",
		},
		"SaveToPostgreSQL": {
			"table_name": "flights",
			"max_conns":  4,
		},
		"SaveToExcel": {
			"sheet_name": "Flights",
		},
	}
}

// requiredFields lists the config keys a component cannot run without.
var requiredFields = map[string][]string{
	"NDJSONFileSourceAdapter": {"file_path"},
	"SaveToParquet":           {"output_path"},
	"SaveToSQLite":            {"db_path"},
	"SaveToPostgreSQL":        {"connection_string"},
	"SaveToExcel":             {"file_path"},
	"SaveDiagnostics":         {"file_path"},
}

var validCompressions = []string{"snappy", "gzip", "zstd", "lz4", "brotli", "none", "uncompressed"}

var validStorageTypes = []string{"FS", "GCS", "S3"}

// ValidateDefaults checks a fully defaulted component config
func (e *DefaultsEngine) ValidateDefaults(componentType string, config map[string]interface{}) []error {
	var errors []error

	for _, field := range requiredFields[componentType] {
		value, ok := config[field]
		if s, isString := value.(string); !ok || (isString && s == "") {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   value,
				Problem: fmt.Sprintf("%s requires '%s'", componentType, field),
			})
		}
	}

	switch componentType {
	case "SaveToParquet":
		if compression, ok := config["compression"].(string); ok && !containsFold(validCompressions, compression) {
			errors = append(errors, ValidationError{
				Field:       "compression",
				Value:       compression,
				Problem:     "invalid compression",
				Suggestion:  closest(compression, validCompressions),
				ValidValues: validCompressions,
			})
		}
		storageType, _ := config["storage_type"].(string)
		if storageType != "" && !containsFold(validStorageTypes, storageType) {
			errors = append(errors, ValidationError{
				Field:       "storage_type",
				Value:       storageType,
				Problem:     "invalid storage type",
				ValidValues: validStorageTypes,
			})
		}
		if strings.EqualFold(storageType, "GCS") || strings.EqualFold(storageType, "S3") {
			if bucket, _ := config["bucket_name"].(string); bucket == "" {
				errors = append(errors, ValidationError{
					Field:   "bucket_name",
					Value:   nil,
					Problem: fmt.Sprintf("bucket_name is required for %s storage", strings.ToUpper(storageType)),
				})
			}
		}
	}

	return errors
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}
