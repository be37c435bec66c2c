package schema

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// modelsFile is the on-disk form of a Registry.
type modelsFile struct {
	AppLabel string      `yaml:"app_label,omitempty"`
	Models   []modelSpec `yaml:"models"`
}

type modelSpec struct {
	Name        string           `yaml:"name"`
	App         string           `yaml:"app,omitempty"`
	Table       string           `yaml:"table,omitempty"`
	PrimaryKey  string           `yaml:"primary_key,omitempty"`
	Fields      []string         `yaml:"fields"`
	ForeignKeys []foreignKeySpec `yaml:"foreign_keys,omitempty"`
	ManyToMany  []manyToManySpec `yaml:"many_to_many,omitempty"`
}

type foreignKeySpec struct {
	Attribute string `yaml:"attribute"`
	Column    string `yaml:"column,omitempty"`
	Target    string `yaml:"target"`
}

type manyToManySpec struct {
	Attribute    string `yaml:"attribute"`
	Target       string `yaml:"target"`
	Through      string `yaml:"through"`
	SourceColumn string `yaml:"source_column"`
	TargetColumn string `yaml:"target_column"`
}

// LoadModelsFile reads a YAML models file into a validated Registry.
func LoadModelsFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read models file %s: %w", path, err)
	}
	reg, err := ParseModels(data)
	if err != nil {
		return nil, fmt.Errorf("models file %s: %w", path, err)
	}
	return reg, nil
}

// ParseModels decodes YAML model declarations. Relation targets may be
// written as "app.model" or as a bare model name inside app_label.
func ParseModels(data []byte) (*Registry, error) {
	var file modelsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse models: %w", err)
	}

	reg := NewRegistry()
	for i, spec := range file.Models {
		app := spec.App
		if app == "" {
			app = file.AppLabel
		}
		if spec.Name == "" || app == "" {
			return nil, fmt.Errorf("models[%d]: name and app (or app_label) are required", i)
		}

		m := &Model{
			Type:       NewLogicalType(app, spec.Name),
			Table:      spec.Table,
			PrimaryKey: spec.PrimaryKey,
			Fields:     spec.Fields,
		}
		for _, fk := range spec.ForeignKeys {
			target, err := parseTarget(fk.Target, app)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", m.Type, fk.Attribute, err)
			}
			m.ForeignKeys = append(m.ForeignKeys, ForeignKey{
				Attribute: fk.Attribute,
				Column:    fk.Column,
				Target:    target,
			})
		}
		for _, mm := range spec.ManyToMany {
			target, err := parseTarget(mm.Target, app)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", m.Type, mm.Attribute, err)
			}
			m.ManyToMany = append(m.ManyToMany, ManyToMany{
				Attribute:    mm.Attribute,
				Target:       target,
				Through:      mm.Through,
				SourceColumn: mm.SourceColumn,
				TargetColumn: mm.TargetColumn,
			})
		}

		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}

	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func parseTarget(name, app string) (LogicalType, error) {
	if name == "" {
		return LogicalType{}, fmt.Errorf("relation target is required")
	}
	if t, err := ParseLogicalType(name); err == nil {
		return t, nil
	}
	if app == "" {
		return LogicalType{}, fmt.Errorf("relation target %q needs an app label", name)
	}
	return NewLogicalType(app, name), nil
}

// MarshalModels renders a registry in the models file format, so an
// introspected schema can be reviewed and edited by hand.
func MarshalModels(reg *Registry) ([]byte, error) {
	var file modelsFile
	for _, m := range reg.Models() {
		spec := modelSpec{
			Name:       m.Type.Model,
			App:        m.Type.App,
			Table:      m.Table,
			PrimaryKey: m.PrimaryKey,
			Fields:     m.Fields,
		}
		for _, fk := range m.ForeignKeys {
			spec.ForeignKeys = append(spec.ForeignKeys, foreignKeySpec{
				Attribute: fk.Attribute,
				Column:    fk.Column,
				Target:    fk.Target.String(),
			})
		}
		for _, mm := range m.ManyToMany {
			spec.ManyToMany = append(spec.ManyToMany, manyToManySpec{
				Attribute:    mm.Attribute,
				Target:       mm.Target.String(),
				Through:      mm.Through,
				SourceColumn: mm.SourceColumn,
				TargetColumn: mm.TargetColumn,
			})
		}
		file.Models = append(file.Models, spec)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&file); err != nil {
		return nil, fmt.Errorf("failed to encode models: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
