package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/production-service/internal/domain"
)

//go:embed rules.schema.json
var rulesSchemaJSON []byte

const rulesSchemaURI = "https://wms-platform.dev/schemas/production/rules.schema.json"

var rulesSchema = mustCompileRulesSchema()

func mustCompileRulesSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(rulesSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("rules schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(rulesSchemaURI, doc); err != nil {
		panic(fmt.Sprintf("rules schema: %v", err))
	}
	schema, err := compiler.Compile(rulesSchemaURI)
	if err != nil {
		panic(fmt.Sprintf("rules schema: %v", err))
	}
	return schema
}

type rulesFile struct {
	Rules      json.RawMessage     `json:"rules"`
	SizeCharts []*domain.SizeChart `json:"sizeCharts"`
}

// LoadRulesFile reads the rules file at path. An empty path yields the
// default rules and no size charts.
func LoadRulesFile(path string) (*domain.SKURules, []*domain.SizeChart, error) {
	if path == "" {
		return domain.DefaultSKURules(), nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rules, charts, err := ParseRules(data)
	if err != nil {
		return nil, nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, charts, nil
}

// ParseRules validates a YAML rules document and overlays it on the default
// rules. A table present in the document replaces the default table.
func ParseRules(data []byte) (*domain.SKURules, []*domain.SizeChart, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc == nil {
		return domain.DefaultSKURules(), nil, nil
	}

	// The schema validator works on JSON values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to convert YAML: %w", err)
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to convert YAML: %w", err)
	}
	if err := rulesSchema.Validate(value); err != nil {
		return nil, nil, fmt.Errorf("invalid rules: %w", err)
	}

	var file rulesFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	rules := domain.DefaultSKURules()
	if len(file.Rules) > 0 {
		if err := overlayRules(rules, file.Rules); err != nil {
			return nil, nil, err
		}
	}
	if err := rules.Check(); err != nil {
		return nil, nil, fmt.Errorf("invalid rules: %w", err)
	}

	for _, chart := range file.SizeCharts {
		if err := checkChart(chart); err != nil {
			return nil, nil, err
		}
	}
	return rules, file.SizeCharts, nil
}

func overlayRules(rules *domain.SKURules, raw json.RawMessage) error {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(raw, &present); err != nil {
		return fmt.Errorf("failed to decode rules: %w", err)
	}
	// json.Unmarshal merges into non-nil maps.
	if _, ok := present["washInterchange"]; ok {
		rules.WashInterchange = nil
	}
	if _, ok := present["shapeInterchange"]; ok {
		rules.ShapeInterchange = nil
	}
	if _, ok := present["washGroups"]; ok {
		rules.WashGroups = nil
	}
	if err := json.Unmarshal(raw, rules); err != nil {
		return fmt.Errorf("failed to decode rules: %w", err)
	}
	return nil
}

func checkChart(chart *domain.SizeChart) error {
	for name, tol := range chart.Dimensions {
		if tol.Min.GreaterThan(tol.Target) || tol.Target.GreaterThan(tol.Max) {
			return fmt.Errorf("size chart %s: %s tolerance must satisfy min <= target <= max", chart.Key, name)
		}
	}
	return nil
}
