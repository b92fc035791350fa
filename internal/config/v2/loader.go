package v2

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ConfigLoader is the main entry point for loading configurations
type ConfigLoader struct {
	resolver       *AliasResolver
	defaultsEngine *DefaultsEngine
	validator      *Validator
	transformer    *Transformer
	options        LoaderOptions
}

// LoaderOptions configures the config loader behavior
type LoaderOptions struct {
	ShowWarnings     bool
	StrictValidation bool // treat warnings as errors
	ExpandEnvVars    bool
}

// DefaultLoaderOptions returns default loader options
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ShowWarnings:     true,
		StrictValidation: false,
		ExpandEnvVars:    true,
	}
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader(options LoaderOptions) (*ConfigLoader, error) {
	resolver, err := NewAliasResolver()
	if err != nil {
		return nil, fmt.Errorf("initializing alias resolver: %w", err)
	}

	defaultsEngine := NewDefaultsEngine()

	return &ConfigLoader{
		resolver:       resolver,
		defaultsEngine: defaultsEngine,
		validator:      NewValidator(resolver, defaultsEngine),
		transformer:    NewTransformer(resolver, defaultsEngine),
		options:        options,
	}, nil
}

// LoadResult contains the loaded configuration and metadata
type LoadResult struct {
	Config     *TransformedConfig
	Format     FormatVersion
	Warnings   []string
	SourceFile string
}

// PipelineNames returns the loaded pipeline names in sorted order.
func (r *LoadResult) PipelineNames() []string {
	names := make([]string, 0, len(r.Config.Pipelines))
	for name := range r.Config.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load loads a configuration from a file path
func (l *ConfigLoader) Load(path string) (*LoadResult, error) {
	raw, err := readYAML(path)
	if err != nil {
		return nil, err
	}

	result, err := l.LoadFromData(raw)
	if err != nil {
		return nil, err
	}

	result.SourceFile = path
	return result, nil
}

// LoadFromData loads a configuration from parsed data
func (l *ConfigLoader) LoadFromData(data map[string]interface{}) (*LoadResult, error) {
	data = l.prepare(data)

	result := &LoadResult{
		Format:   DetectFormat(data),
		Warnings: []string{},
	}

	validationResult := l.validator.Validate(data)
	if validationResult.HasErrors() {
		// Return the first error with context
		return nil, validationResult.Errors[0]
	}
	if l.options.StrictValidation && len(validationResult.Warnings) > 0 {
		return nil, fmt.Errorf("strict validation: %s", validationResult.Warnings[0])
	}
	if l.options.ShowWarnings {
		result.Warnings = append(result.Warnings, validationResult.Warnings...)
	}

	transformed, err := l.transformer.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("transforming configuration: %w", err)
	}

	result.Config = transformed
	return result, nil
}

// ValidateFile validates a configuration file without loading it
func (l *ConfigLoader) ValidateFile(path string) (*ValidationResult, error) {
	raw, err := readYAML(path)
	if err != nil {
		return nil, err
	}
	return l.validator.Validate(l.prepare(raw)), nil
}

func (l *ConfigLoader) prepare(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	if l.options.ExpandEnvVars {
		if expanded, ok := ExpandEnvVars(data).(map[string]interface{}); ok {
			return expanded
		}
	}
	return data
}

func readYAML(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return raw, nil
}

// ExplainConfig provides detailed information about a configuration
func (l *ConfigLoader) ExplainConfig(path string) (*ExplanationResult, error) {
	loadResult, err := l.Load(path)
	if err != nil {
		return nil, err
	}

	explanation := &ExplanationResult{
		Format:    loadResult.Format,
		Pipelines: make(map[string]PipelineExplanation),
	}

	for name, pipeline := range loadResult.Config.Pipelines {
		pipelineExpl := PipelineExplanation{
			Name: name,
			Source: ComponentExplanation{
				Type:        pipeline.Source.Type,
				Aliases:     l.resolver.GetAllSourceAliases(pipeline.Source.Type),
				Description: getComponentDescription(pipeline.Source.Type),
				Defaults:    l.getAppliedDefaults(pipeline.Source.Type, pipeline.Source.Config),
			},
		}

		for _, proc := range pipeline.Processors {
			pipelineExpl.Processors = append(pipelineExpl.Processors, ComponentExplanation{
				Type:        proc.Type,
				Aliases:     l.resolver.GetAllProcessorAliases(proc.Type),
				Description: getComponentDescription(proc.Type),
				Defaults:    l.getAppliedDefaults(proc.Type, proc.Config),
			})
		}

		for _, cons := range pipeline.Consumers {
			pipelineExpl.Consumers = append(pipelineExpl.Consumers, ComponentExplanation{
				Type:        cons.Type,
				Aliases:     l.resolver.GetAllConsumerAliases(cons.Type),
				Description: getComponentDescription(cons.Type),
				Defaults:    l.getAppliedDefaults(cons.Type, cons.Config),
			})
		}

		explanation.Pipelines[name] = pipelineExpl
	}

	return explanation, nil
}

// ExplanationResult contains detailed configuration explanation
type ExplanationResult struct {
	Format    FormatVersion
	Pipelines map[string]PipelineExplanation
}

// PipelineExplanation explains a single pipeline
type PipelineExplanation struct {
	Name       string
	Source     ComponentExplanation
	Processors []ComponentExplanation
	Consumers  []ComponentExplanation
}

// ComponentExplanation explains a single component
type ComponentExplanation struct {
	Type        string
	Aliases     []string
	Description string
	Defaults    map[string]DefaultInfo
}

// DefaultInfo contains information about a default value
type DefaultInfo struct {
	Value        interface{}
	IsDefault    bool
	DefaultValue interface{}
}

// getComponentDescription returns a description for a component type
func getComponentDescription(componentType string) string {
	descriptions := map[string]string{
		// Sources
		"NDJSONFileSourceAdapter": "Reads flight records from a newline-delimited JSON file",

		// Processors
		"TransformFlights": "Parses dates and clock times, derives speed, delay and calendar fields, renames columns",

		// Consumers
		"SaveToParquet":    "Writes the typed flight table to a Parquet file (local, GCS or S3)",
		"SaveToDuckDB":     "Appends typed rows to a DuckDB table",
		"SaveToSQLite":     "Inserts typed rows into a SQLite table",
		"SaveToPostgreSQL": "Copies typed rows into a PostgreSQL table",
		"SaveToExcel":      "Writes typed rows to an Excel sheet",
		"StdoutConsumer":   "Prints typed rows as JSON lines",
		"SaveDiagnostics":  "Writes per-record transform diagnostics as JSON lines",
	}

	if desc, ok := descriptions[componentType]; ok {
		return desc
	}

	return "No description available"
}

// getAppliedDefaults identifies which values are defaults
func (l *ConfigLoader) getAppliedDefaults(componentType string, config map[string]interface{}) map[string]DefaultInfo {
	defaults := l.defaultsEngine.GetDefaultsForComponent(componentType)
	result := make(map[string]DefaultInfo)

	for key, value := range config {
		info := DefaultInfo{
			Value: value,
		}

		if defaultValue, hasDefault := defaults[key]; hasDefault {
			info.DefaultValue = defaultValue
			info.IsDefault = fmt.Sprintf("%v", value) == fmt.Sprintf("%v", defaultValue)
		}

		result[key] = info
	}

	return result
}
