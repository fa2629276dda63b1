package models

// GeneratorTypeIncrementing selects the incrementing generator family.
// Any other type is a dotted provider path.
const GeneratorTypeIncrementing = "incrementing"

// GeneratorConfig declares one named field generator
type GeneratorConfig struct {
	Name   string           `json:"name" yaml:"name"`
	Type   string           `json:"type" yaml:"type"`
	Config *GeneratorParams `json:"config,omitempty" yaml:"config,omitempty"`
}

// GeneratorParams holds the optional generator settings
type GeneratorParams struct {
	Prefix string        `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix string        `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	Start  string        `json:"start,omitempty" yaml:"start,omitempty"`
	Args   []interface{} `json:"args,omitempty" yaml:"args,omitempty"`
}

// GeneratorSummary describes a compiled generator for the admin API
type GeneratorSummary struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
