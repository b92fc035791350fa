package v2

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPipelineName names the single pipeline of a v2 configuration
// that does not set 'name'.
const DefaultPipelineName = "default"

// TransformedConfig represents the internal configuration format
type TransformedConfig struct {
	Pipelines map[string]TransformedPipeline
}

// TransformedPipeline represents an internal pipeline configuration
type TransformedPipeline struct {
	Source     TransformedComponent
	Processors []TransformedComponent
	Consumers  []TransformedComponent
}

// TransformedComponent represents an internal component configuration
type TransformedComponent struct {
	Type   string
	Config map[string]interface{}
}

// primaryFields is the config key a bare string value fills in, e.g.
// `parquet: output/flights.parquet`.
var primaryFields = map[string]string{
	"NDJSONFileSourceAdapter": "file_path",
	"SaveToParquet":           "output_path",
	"SaveToDuckDB":            "db_path",
	"SaveToSQLite":            "db_path",
	"SaveToPostgreSQL":        "connection_string",
	"SaveToExcel":             "file_path",
	"SaveDiagnostics":         "file_path",
}

// extensionConsumers maps output file extensions to the consumer that
// writes them.
var extensionConsumers = map[string]string{
	".parquet": "SaveToParquet",
	".duckdb":  "SaveToDuckDB",
	".ddb":     "SaveToDuckDB",
	".sqlite":  "SaveToSQLite",
	".sqlite3": "SaveToSQLite",
	".db":      "SaveToSQLite",
	".xlsx":    "SaveToExcel",
}

var sourceExtensions = map[string]bool{
	".json":   true,
	".jsonl":  true,
	".ndjson": true,
}

// Transformer converts legacy and v2 configurations to internal format
type Transformer struct {
	resolver *AliasResolver
	defaults *DefaultsEngine
}

// NewTransformer creates a new configuration transformer
func NewTransformer(resolver *AliasResolver, defaults *DefaultsEngine) *Transformer {
	return &Transformer{
		resolver: resolver,
		defaults: defaults,
	}
}

// Transform transforms a parsed configuration to internal format
func (t *Transformer) Transform(config map[string]interface{}) (*TransformedConfig, error) {
	switch DetectFormat(config) {
	case FormatLegacy:
		return t.transformLegacy(config)
	case FormatV2:
		name := DefaultPipelineName
		if n, ok := config["name"].(string); ok && n != "" {
			name = n
		}
		pipeline, err := t.transformV2Pipeline(config)
		if err != nil {
			return nil, err
		}
		return &TransformedConfig{
			Pipelines: map[string]TransformedPipeline{name: pipeline},
		}, nil
	default:
		return nil, fmt.Errorf("unknown configuration format")
	}
}

// transformLegacy handles legacy format configurations. A pipeline entry
// written in v2 syntax is accepted too.
func (t *Transformer) transformLegacy(config map[string]interface{}) (*TransformedConfig, error) {
	result := &TransformedConfig{
		Pipelines: make(map[string]TransformedPipeline),
	}

	pipelines, ok := config["pipelines"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid legacy configuration: 'pipelines' must be a map")
	}

	for name, pipeline := range pipelines {
		pipelineMap, ok := pipeline.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("pipeline '%s': pipeline must be a map", name)
		}

		var transformed TransformedPipeline
		var err error
		if isV2Pipeline(pipelineMap) {
			transformed, err = t.transformV2Pipeline(pipelineMap)
		} else {
			transformed, err = t.transformLegacyPipeline(pipelineMap)
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline '%s': %w", name, err)
		}
		result.Pipelines[name] = transformed
	}

	return result, nil
}

func isV2Pipeline(pipeline map[string]interface{}) bool {
	_, hasProcess := pipeline["process"]
	_, hasSaveTo := pipeline["save_to"]
	return hasProcess || hasSaveTo
}

// transformLegacyPipeline transforms a single legacy pipeline
func (t *Transformer) transformLegacyPipeline(pipeline map[string]interface{}) (TransformedPipeline, error) {
	var result TransformedPipeline

	if source, ok := pipeline["source"].(map[string]interface{}); ok {
		component, err := t.transformLegacyComponent(source, t.resolver.ResolveSourceType)
		if err != nil {
			return result, fmt.Errorf("source: %w", err)
		}
		result.Source = component
	} else {
		return result, fmt.Errorf("source must be a map with a 'type' field")
	}

	if processors, ok := pipeline["processors"].([]interface{}); ok {
		for i, proc := range processors {
			procMap, ok := proc.(map[string]interface{})
			if !ok {
				return result, fmt.Errorf("processor[%d]: must be a map", i)
			}
			component, err := t.transformLegacyComponent(procMap, t.resolver.ResolveProcessorType)
			if err != nil {
				return result, fmt.Errorf("processor[%d]: %w", i, err)
			}
			result.Processors = append(result.Processors, component)
		}
	}

	if consumers, ok := pipeline["consumers"].([]interface{}); ok {
		for i, cons := range consumers {
			consMap, ok := cons.(map[string]interface{})
			if !ok {
				return result, fmt.Errorf("consumer[%d]: must be a map", i)
			}
			component, err := t.transformLegacyComponent(consMap, t.resolver.ResolveConsumerType)
			if err != nil {
				return result, fmt.Errorf("consumer[%d]: %w", i, err)
			}
			result.Consumers = append(result.Consumers, component)
		}
	}

	return result, nil
}

// transformLegacyComponent handles a {type, config} component
func (t *Transformer) transformLegacyComponent(component map[string]interface{}, resolveType func(string) (string, bool)) (TransformedComponent, error) {
	typ, ok := component["type"].(string)
	if !ok || typ == "" {
		return TransformedComponent{}, fmt.Errorf("component must have a 'type' field")
	}
	componentType, _ := resolveType(typ)

	config := make(map[string]interface{})
	if c, ok := component["config"].(map[string]interface{}); ok {
		for k, v := range c {
			config[k] = v
		}
	}

	return TransformedComponent{
		Type:   componentType,
		Config: t.defaults.ApplyDefaults(componentType, config),
	}, nil
}

// transformV2Pipeline transforms source/process/save_to keys
func (t *Transformer) transformV2Pipeline(config map[string]interface{}) (TransformedPipeline, error) {
	var result TransformedPipeline

	source, ok := config["source"]
	if !ok {
		return result, fmt.Errorf("source is required")
	}
	component, err := t.transformV2Source(source)
	if err != nil {
		return result, fmt.Errorf("source: %w", err)
	}
	result.Source = component

	if process, ok := config["process"]; ok && process != nil {
		processors, err := t.transformV2Processors(process)
		if err != nil {
			return result, err
		}
		result.Processors = processors
	}

	if saveTo, ok := config["save_to"]; ok && saveTo != nil {
		consumers, err := t.transformV2Consumers(saveTo)
		if err != nil {
			return result, err
		}
		result.Consumers = consumers
	}

	return result, nil
}

// transformV2Source handles the string and map source forms
func (t *Transformer) transformV2Source(source interface{}) (TransformedComponent, error) {
	switch s := source.(type) {
	case string:
		return t.transformStringSource(s)
	case map[string]interface{}:
		return t.transformMapSource(s)
	default:
		return TransformedComponent{}, fmt.Errorf("source must be a string or map")
	}
}

// transformStringSource handles `ndjson://path`, a bare file path, or a
// bare alias.
func (t *Transformer) transformStringSource(source string) (TransformedComponent, error) {
	if strings.Contains(source, "://") {
		parts := strings.SplitN(source, "://", 2)
		sourceType, _ := t.resolver.ResolveSourceType(parts[0])
		return t.component(sourceType, primaryConfig(sourceType, parts[1])), nil
	}

	if sourceExtensions[strings.ToLower(filepath.Ext(source))] {
		return t.component("NDJSONFileSourceAdapter", map[string]interface{}{"file_path": source}), nil
	}

	sourceType, _ := t.resolver.ResolveSourceType(source)
	return t.component(sourceType, map[string]interface{}{}), nil
}

// transformMapSource handles {ndjson: path}, {ndjson: {...}} and
// {type: ..., ...} sources.
func (t *Transformer) transformMapSource(source map[string]interface{}) (TransformedComponent, error) {
	if len(source) == 1 {
		for name, value := range source {
			if sourceType, found := t.resolver.ResolveSourceType(name); found {
				return t.namedComponent(sourceType, value)
			}
		}
	}

	resolved := t.resolver.ResolveFieldNames(source)
	if typ, ok := resolved["type"].(string); ok {
		delete(resolved, "type")
		sourceType, _ := t.resolver.ResolveSourceType(typ)
		return t.component(sourceType, resolved), nil
	}
	if _, ok := resolved["file_path"]; ok {
		return t.component("NDJSONFileSourceAdapter", resolved), nil
	}
	if _, ok := resolved["path"]; ok {
		return t.component("NDJSONFileSourceAdapter", resolved), nil
	}
	return TransformedComponent{}, fmt.Errorf("cannot determine source type from configuration")
}

// transformV2Processors transforms v2 processor configurations
func (t *Transformer) transformV2Processors(process interface{}) ([]TransformedComponent, error) {
	var result []TransformedComponent

	switch p := process.(type) {
	case string:
		processorType, _ := t.resolver.ResolveProcessorType(p)
		result = append(result, t.component(processorType, map[string]interface{}{}))

	case []interface{}:
		for i, proc := range p {
			component, err := t.transformV2Processor(proc)
			if err != nil {
				return nil, fmt.Errorf("processor[%d]: %w", i, err)
			}
			result = append(result, component)
		}

	case map[string]interface{}:
		component, err := t.transformV2Processor(p)
		if err != nil {
			return nil, err
		}
		result = append(result, component)

	default:
		return nil, fmt.Errorf("process must be a string, list, or map")
	}

	return result, nil
}

// transformV2Processor transforms a single v2 processor
func (t *Transformer) transformV2Processor(proc interface{}) (TransformedComponent, error) {
	switch p := proc.(type) {
	case string:
		processorType, _ := t.resolver.ResolveProcessorType(p)
		return t.component(processorType, map[string]interface{}{}), nil

	case map[string]interface{}:
		// Processor with config (e.g., {flights: {debug: true}})
		if len(p) == 1 {
			for name, config := range p {
				if name == "type" {
					break
				}
				processorType, _ := t.resolver.ResolveProcessorType(name)
				return t.namedComponent(processorType, config)
			}
		}
		resolved := t.resolver.ResolveFieldNames(p)
		typ, ok := resolved["type"].(string)
		if !ok {
			return TransformedComponent{}, fmt.Errorf("cannot determine processor type from configuration")
		}
		delete(resolved, "type")
		processorType, _ := t.resolver.ResolveProcessorType(typ)
		return t.component(processorType, resolved), nil

	default:
		return TransformedComponent{}, fmt.Errorf("processor must be a string or map")
	}
}

// transformV2Consumers transforms v2 consumer configurations
func (t *Transformer) transformV2Consumers(saveTo interface{}) ([]TransformedComponent, error) {
	var result []TransformedComponent

	switch s := saveTo.(type) {
	case string:
		component, err := t.transformStringConsumer(s)
		if err != nil {
			return nil, err
		}
		result = append(result, component)

	case []interface{}:
		for i, cons := range s {
			component, err := t.transformV2Consumer(cons)
			if err != nil {
				return nil, fmt.Errorf("consumer[%d]: %w", i, err)
			}
			result = append(result, component)
		}

	case map[string]interface{}:
		component, err := t.transformV2Consumer(s)
		if err != nil {
			return nil, err
		}
		result = append(result, component)

	default:
		return nil, fmt.Errorf("save_to must be a string, list, or map")
	}

	return result, nil
}

// transformV2Consumer transforms a single v2 consumer
func (t *Transformer) transformV2Consumer(cons interface{}) (TransformedComponent, error) {
	switch c := cons.(type) {
	case string:
		return t.transformStringConsumer(c)

	case map[string]interface{}:
		if len(c) == 1 {
			for name, config := range c {
				if name == "type" {
					break
				}
				return t.TransformNamedConsumer(name, config)
			}
		}
		return t.transformMapConsumer(c)

	default:
		return TransformedComponent{}, fmt.Errorf("consumer must be a string or map")
	}
}

// transformStringConsumer handles URLs, output paths and bare aliases
func (t *Transformer) transformStringConsumer(target string) (TransformedComponent, error) {
	if target == "" {
		return TransformedComponent{}, fmt.Errorf("empty consumer")
	}

	if strings.Contains(target, "://") {
		scheme := strings.ToLower(strings.SplitN(target, "://", 2)[0])
		switch scheme {
		case "gs", "gcs", "s3":
			return t.component("SaveToParquet", parquetLocation(target)), nil
		}
		consumerType, _ := t.resolver.ResolveConsumerType(scheme)
		if consumerType == "SaveToPostgreSQL" {
			// Keep the full URL as the DSN
			return t.component(consumerType, map[string]interface{}{"connection_string": target}), nil
		}
		return t.component(consumerType, primaryConfig(consumerType, strings.SplitN(target, "://", 2)[1])), nil
	}

	if consumerType, ok := extensionConsumers[strings.ToLower(filepath.Ext(target))]; ok {
		return t.component(consumerType, primaryConfig(consumerType, target)), nil
	}

	consumerType, _ := t.resolver.ResolveConsumerType(target)
	return t.component(consumerType, map[string]interface{}{}), nil
}

// TransformNamedConsumer transforms a named consumer with config (exported for testing)
func (t *Transformer) TransformNamedConsumer(name string, config interface{}) (TransformedComponent, error) {
	consumerType, _ := t.resolver.ResolveConsumerType(name)
	return t.namedComponent(consumerType, config)
}

// transformMapConsumer handles {type: ..., ...} consumers
func (t *Transformer) transformMapConsumer(cons map[string]interface{}) (TransformedComponent, error) {
	resolved := t.resolver.ResolveFieldNames(cons)

	if typ, ok := resolved["type"].(string); ok {
		delete(resolved, "type")
		consumerType, _ := t.resolver.ResolveConsumerType(typ)
		return t.component(consumerType, resolved), nil
	}
	if p, ok := resolved["output_path"].(string); ok {
		if consumerType, ok := extensionConsumers[strings.ToLower(filepath.Ext(p))]; ok {
			return t.component(consumerType, resolved), nil
		}
	}
	if _, ok := resolved["connection_string"]; ok {
		return t.component("SaveToPostgreSQL", resolved), nil
	}
	return TransformedComponent{}, fmt.Errorf("cannot determine consumer type from configuration")
}

// namedComponent builds a component from the value under its alias key:
// nil, a string for the primary field, a number (stdout limit), or a map.
func (t *Transformer) namedComponent(componentType string, value interface{}) (TransformedComponent, error) {
	config := make(map[string]interface{})
	switch v := value.(type) {
	case nil:
	case string:
		if componentType == "SaveToParquet" && isRemoteURL(v) {
			config = parquetLocation(v)
		} else {
			config = primaryConfig(componentType, v)
		}
	case int, int64, float64:
		if componentType != "StdoutConsumer" {
			return TransformedComponent{}, fmt.Errorf("%s: unexpected numeric value %v", componentType, v)
		}
		config["limit"] = v
	case bool:
		// `stdout: true` enables a consumer without settings
		if !v {
			return TransformedComponent{}, fmt.Errorf("%s: disabling a component with false is not supported", componentType)
		}
	case map[string]interface{}:
		config = t.resolver.ResolveFieldNames(v)
		if componentType == "SaveToParquet" {
			if p, ok := config["output_path"].(string); ok && isRemoteURL(p) {
				for k, val := range parquetLocation(p) {
					config[k] = val
				}
			}
		}
	default:
		return TransformedComponent{}, fmt.Errorf("%s: config must be a string or map", componentType)
	}
	return t.component(componentType, config), nil
}

// component moves a generic 'path' key to the primary field and applies
// defaults.
func (t *Transformer) component(componentType string, config map[string]interface{}) TransformedComponent {
	if field, ok := primaryFields[componentType]; ok {
		if p, hasPath := config["path"]; hasPath {
			if _, hasPrimary := config[field]; !hasPrimary {
				config[field] = p
				delete(config, "path")
			}
		}
	}
	return TransformedComponent{
		Type:   componentType,
		Config: t.defaults.ApplyDefaults(componentType, config),
	}
}

func primaryConfig(componentType, value string) map[string]interface{} {
	config := make(map[string]interface{})
	if field, ok := primaryFields[componentType]; ok {
		config[field] = value
	}
	return config
}

func isRemoteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "gs://") || strings.HasPrefix(lower, "gcs://") || strings.HasPrefix(lower, "s3://")
}

// parquetLocation splits gs://bucket/key or s3://bucket/key into Parquet
// storage settings.
func parquetLocation(url string) map[string]interface{} {
	parts := strings.SplitN(url, "://", 2)
	scheme := strings.ToLower(parts[0])
	bucketAndKey := strings.SplitN(parts[1], "/", 2)

	config := map[string]interface{}{
		"bucket_name": bucketAndKey[0],
	}
	if scheme == "s3" {
		config["storage_type"] = "S3"
	} else {
		config["storage_type"] = "GCS"
	}
	if len(bucketAndKey) > 1 {
		config["output_path"] = bucketAndKey[1]
	}
	return config
}

// ExpandEnvVars recursively expands environment variables in the configuration
func ExpandEnvVars(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case map[string]interface{}:
		result := make(map[string]interface{})
		for k, v := range val {
			result[k] = ExpandEnvVars(v)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, v := range val {
			result[i] = ExpandEnvVars(v)
		}
		return result
	default:
		return v
	}
}
