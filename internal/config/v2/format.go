package v2

// FormatVersion represents the configuration format version
type FormatVersion int

const (
	FormatUnknown FormatVersion = iota
	FormatLegacy
	FormatV2
)

func (f FormatVersion) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatV2:
		return "v2"
	default:
		return "unknown"
	}
}

// DetectFormat determines whether a configuration is legacy or v2 format
func DetectFormat(config map[string]interface{}) FormatVersion {
	// Legacy format always has a top-level "pipelines" key
	if _, hasPipelines := config["pipelines"]; hasPipelines {
		return FormatLegacy
	}

	if isSimplifiedConfig(config) {
		return FormatV2
	}

	return FormatUnknown
}

func isSimplifiedConfig(config map[string]interface{}) bool {
	_, hasSource := config["source"]
	_, hasProcess := config["process"]
	_, hasSaveTo := config["save_to"]

	return hasSource || hasProcess || hasSaveTo
}

// GetSimplifiedExample returns an example of simplified configuration
func GetSimplifiedExample() string {
	return `# Simplified v2 configuration example
source:
  ndjson: src/flights.json

process: flights

save_to:
  - parquet: output/flights.parquet
  - diagnostics: output/flights.diagnostics.jsonl
  - duckdb:
      db: output/flights.duckdb
      replace: true`
}

// GetLegacyExample returns an example of legacy configuration
func GetLegacyExample() string {
	return `# Legacy configuration example
pipelines:
  flights:
    source:
      type: NDJSONFileSourceAdapter
      config:
        file_path: src/flights.json
    processors:
      - type: TransformFlights
    consumers:
      - type: SaveToParquet
        config:
          storage_type: FS
          output_path: output/flights.parquet
          compression: snappy
      - type: SaveDiagnostics
        config:
          file_path: output/flights.diagnostics.jsonl`
}
