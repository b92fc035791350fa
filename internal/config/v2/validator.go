package v2

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a configuration validation error with helpful information
type ValidationError struct {
	Field       string
	Value       interface{}
	Problem     string
	Suggestion  string
	ValidValues []string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	var msg strings.Builder
	msg.WriteString("\nError in configuration:\n\n")
	msg.WriteString(fmt.Sprintf("  %s: %v  # <-- %s\n\n", e.Field, e.Value, e.Problem))

	if e.Suggestion != "" {
		msg.WriteString(fmt.Sprintf("Did you mean '%s'?\n\n", e.Suggestion))
	}

	if len(e.ValidValues) > 0 {
		msg.WriteString("Valid options:\n")
		for _, v := range e.ValidValues {
			msg.WriteString(fmt.Sprintf("  - %s\n", v))
		}
		msg.WriteString("\n")
	}

	return msg.String()
}

// ValidationResult holds multiple validation errors
type ValidationResult struct {
	Errors   []error
	Warnings []string
}

// HasErrors returns true if there are any errors
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// AddError adds a validation error
func (r *ValidationResult) AddError(err error) {
	r.Errors = append(r.Errors, err)
}

// AddWarning adds a validation warning
func (r *ValidationResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// knownFields lists the config keys each component reads.
var knownFields = map[string][]string{
	"NDJSONFileSourceAdapter": {"file_path", "skip_malformed", "max_line_bytes"},
	"TransformFlights":        {"debug", "quiet_diagnostics"},
	"SaveToParquet": {
		"storage_type", "output_path", "bucket_name", "path_prefix", "compression",
		"row_group_size", "max_retries", "region", "credentials_file", "debug", "dry_run",
	},
	"SaveToDuckDB":     {"db_path", "table_name", "replace"},
	"SaveToSQLite":     {"db_path", "table_name"},
	"SaveToPostgreSQL": {"connection_string", "table_name", "max_conns"},
	"SaveToExcel":      {"file_path", "sheet_name"},
	"StdoutConsumer":   {"limit"},
	"SaveDiagnostics":  {"file_path"},
}

// Validator provides configuration validation with helpful error messages
type Validator struct {
	resolver       *AliasResolver
	defaultsEngine *DefaultsEngine
	transformer    *Transformer
}

// NewValidator creates a new configuration validator
func NewValidator(resolver *AliasResolver, defaultsEngine *DefaultsEngine) *Validator {
	return &Validator{
		resolver:       resolver,
		defaultsEngine: defaultsEngine,
		transformer:    NewTransformer(resolver, defaultsEngine),
	}
}

// Validate validates a complete configuration
func (v *Validator) Validate(config map[string]interface{}) *ValidationResult {
	result := &ValidationResult{}

	format := DetectFormat(config)
	if format == FormatUnknown {
		result.AddError(fmt.Errorf("unknown configuration format: expected 'pipelines' key (legacy) or 'source'/'process'/'save_to' keys (v2)"))
		return result
	}

	transformed, err := v.transformer.Transform(config)
	if err != nil {
		result.AddError(err)
		return result
	}

	v.ValidateTransformed(format, transformed, result)
	return result
}

// ValidateTransformed checks component types and their resolved configs.
func (v *Validator) ValidateTransformed(format FormatVersion, config *TransformedConfig, result *ValidationResult) {
	if len(config.Pipelines) == 0 {
		result.AddError(fmt.Errorf("configuration defines no pipelines"))
		return
	}

	names := make([]string, 0, len(config.Pipelines))
	for name := range config.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pipeline := config.Pipelines[name]
		label := fieldLabeler(format, name)

		if _, found := v.resolver.ResolveSourceType(pipeline.Source.Type); !found {
			result.AddError(ValidationError{
				Field:      label("source", -1),
				Value:      pipeline.Source.Type,
				Problem:    "unknown source type",
				Suggestion: v.resolver.ClosestSource(pipeline.Source.Type),
			})
		} else {
			v.validateComponent(label("source", -1), pipeline.Source, result)
		}

		if len(pipeline.Processors) == 0 {
			result.AddWarning(fmt.Sprintf("Pipeline '%s': no processors - records reach consumers untransformed", name))
		}
		for i, proc := range pipeline.Processors {
			if _, found := v.resolver.ResolveProcessorType(proc.Type); !found {
				result.AddError(ValidationError{
					Field:      label("process", i),
					Value:      proc.Type,
					Problem:    "unknown processor type",
					Suggestion: v.resolver.ClosestProcessor(proc.Type),
				})
				continue
			}
			v.validateComponent(label("process", i), proc, result)
		}

		if len(pipeline.Consumers) == 0 {
			result.AddWarning(fmt.Sprintf("Pipeline '%s': no consumers - pipeline output will not be persisted", name))
		}
		for i, cons := range pipeline.Consumers {
			if _, found := v.resolver.ResolveConsumerType(cons.Type); !found {
				result.AddError(ValidationError{
					Field:      label("save_to", i),
					Value:      cons.Type,
					Problem:    "unknown consumer type",
					Suggestion: v.resolver.ClosestConsumer(cons.Type),
				})
				continue
			}
			v.validateComponent(label("save_to", i), cons, result)
		}
	}
}

// validateComponent reports unknown fields and invalid settings
func (v *Validator) validateComponent(label string, component TransformedComponent, result *ValidationResult) {
	fields := knownFields[component.Type]

	keys := make([]string, 0, len(component.Config))
	for key := range component.Config {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !isKnownField(key, fields) {
			result.AddError(ValidationError{
				Field:       fmt.Sprintf("%s.%s", label, key),
				Value:       component.Config[key],
				Problem:     fmt.Sprintf("unknown field for %s", component.Type),
				Suggestion:  closest(key, fields),
				ValidValues: fields,
			})
		}
	}

	for _, err := range v.defaultsEngine.ValidateDefaults(component.Type, component.Config) {
		if ve, ok := err.(ValidationError); ok {
			ve.Field = fmt.Sprintf("%s.%s", label, ve.Field)
			err = ve
		}
		result.AddError(err)
	}
}

// fieldLabeler names config locations the way the user wrote them.
func fieldLabeler(format FormatVersion, pipeline string) func(section string, index int) string {
	legacySections := map[string]string{
		"source":  "source",
		"process": "processors",
		"save_to": "consumers",
	}
	return func(section string, index int) string {
		var label string
		if format == FormatLegacy {
			label = fmt.Sprintf("pipelines.%s.%s", pipeline, legacySections[section])
		} else {
			label = section
		}
		if index >= 0 {
			label = fmt.Sprintf("%s[%d]", label, index)
		}
		return label
	}
}

func isKnownField(field string, fields []string) bool {
	for _, known := range fields {
		if field == known {
			return true
		}
	}
	return false
}
