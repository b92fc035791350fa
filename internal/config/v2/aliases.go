package v2

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var aliasesYAML string

// AliasDefinitions holds all alias mappings
type AliasDefinitions struct {
	Version int `yaml:"version"`
	Aliases struct {
		Sources    map[string]string `yaml:"sources"`
		Processors map[string]string `yaml:"processors"`
		Consumers  map[string]string `yaml:"consumers"`
		Fields     map[string]string `yaml:"fields"`
	} `yaml:"aliases"`
}

// AliasResolver handles alias resolution for configurations
type AliasResolver struct {
	definitions *AliasDefinitions
	// Reverse mappings for finding aliases from types
	sourceAliases    map[string][]string
	processorAliases map[string][]string
	consumerAliases  map[string][]string
}

// NewAliasResolver creates a new alias resolver
func NewAliasResolver() (*AliasResolver, error) {
	var defs AliasDefinitions
	if err := yaml.Unmarshal([]byte(aliasesYAML), &defs); err != nil {
		return nil, fmt.Errorf("parsing alias definitions: %w", err)
	}

	resolver := &AliasResolver{
		definitions:      &defs,
		sourceAliases:    reverse(defs.Aliases.Sources),
		processorAliases: reverse(defs.Aliases.Processors),
		consumerAliases:  reverse(defs.Aliases.Consumers),
	}
	return resolver, nil
}

func reverse(aliases map[string]string) map[string][]string {
	out := make(map[string][]string)
	for alias, typ := range aliases {
		out[typ] = append(out[typ], alias)
	}
	for typ := range out {
		sort.Strings(out[typ])
	}
	return out
}

// ResolveSourceType resolves a source alias to its actual type. The
// boolean reports whether the input named a known source.
func (r *AliasResolver) ResolveSourceType(alias string) (string, bool) {
	return resolve(alias, r.definitions.Aliases.Sources, r.sourceAliases)
}

// ResolveProcessorType resolves a processor alias to its actual type
func (r *AliasResolver) ResolveProcessorType(alias string) (string, bool) {
	return resolve(alias, r.definitions.Aliases.Processors, r.processorAliases)
}

// ResolveConsumerType resolves a consumer alias to its actual type
func (r *AliasResolver) ResolveConsumerType(alias string) (string, bool) {
	return resolve(alias, r.definitions.Aliases.Consumers, r.consumerAliases)
}

func resolve(name string, aliases map[string]string, types map[string][]string) (string, bool) {
	if typ, ok := aliases[strings.ToLower(name)]; ok {
		return typ, true
	}
	if _, ok := types[name]; ok {
		return name, true
	}
	// If not an alias, return as-is
	return name, false
}

// ResolveFieldName resolves a field alias to its actual field name
func (r *AliasResolver) ResolveFieldName(field string) string {
	if actual, ok := r.definitions.Aliases.Fields[field]; ok {
		return actual
	}
	return field
}

// ResolveFieldNames resolves all field aliases in a configuration map
func (r *AliasResolver) ResolveFieldNames(config map[string]interface{}) map[string]interface{} {
	resolved := make(map[string]interface{})
	for key, value := range config {
		resolvedKey := r.ResolveFieldName(key)

		if nestedMap, ok := value.(map[string]interface{}); ok {
			resolved[resolvedKey] = r.ResolveFieldNames(nestedMap)
		} else {
			resolved[resolvedKey] = value
		}
	}
	return resolved
}

// SourceNames lists every accepted source alias and type, sorted.
func (r *AliasResolver) SourceNames() []string {
	return names(r.definitions.Aliases.Sources)
}

// ProcessorNames lists every accepted processor alias and type, sorted.
func (r *AliasResolver) ProcessorNames() []string {
	return names(r.definitions.Aliases.Processors)
}

// ConsumerNames lists every accepted consumer alias and type, sorted.
func (r *AliasResolver) ConsumerNames() []string {
	return names(r.definitions.Aliases.Consumers)
}

func names(aliases map[string]string) []string {
	seen := make(map[string]bool)
	var out []string
	for alias, typ := range aliases {
		for _, n := range []string{alias, typ} {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ClosestSource returns the known source name nearest to input, or "".
func (r *AliasResolver) ClosestSource(input string) string {
	return closest(input, r.SourceNames())
}

// ClosestProcessor returns the known processor name nearest to input.
func (r *AliasResolver) ClosestProcessor(input string) string {
	return closest(input, r.ProcessorNames())
}

// ClosestConsumer returns the known consumer name nearest to input.
func (r *AliasResolver) ClosestConsumer(input string) string {
	return closest(input, r.ConsumerNames())
}

// closest picks the candidate with the smallest edit distance to input.
// Candidates further than half the input length are not suggested.
func closest(input string, candidates []string) string {
	in := strings.ToLower(input)
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := editDistance(in, strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	limit := len(in) / 2
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}

// editDistance is the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// GetAllSourceAliases returns all aliases for a given source type
func (r *AliasResolver) GetAllSourceAliases(sourceType string) []string {
	return r.sourceAliases[sourceType]
}

// GetAllProcessorAliases returns all aliases for a given processor type
func (r *AliasResolver) GetAllProcessorAliases(processorType string) []string {
	return r.processorAliases[processorType]
}

// GetAllConsumerAliases returns all aliases for a given consumer type
func (r *AliasResolver) GetAllConsumerAliases(consumerType string) []string {
	return r.consumerAliases[consumerType]
}
