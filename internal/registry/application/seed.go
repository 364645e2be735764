package application

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"digitaltwin-cloud/internal/eav"
	registry "digitaltwin-cloud/internal/registry/domain"
)

// SeedAttribute declares one attribute in a seed file.
type SeedAttribute struct {
	Name     string `yaml:"name"`
	Units    string `yaml:"units"`
	Datatype string `yaml:"datatype"`
}

// SeedGrouping declares one grouping with its attributes.
type SeedGrouping struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Attributes  []SeedAttribute `yaml:"attributes"`
}

// SeedConfig is the declarative catalog applied at startup.
type SeedConfig struct {
	LocationSchemas []SeedGrouping  `yaml:"location_schemas"`
	SensorTypes     []SeedGrouping  `yaml:"sensor_types"`
	ModelMeasures   []SeedAttribute `yaml:"model_measures"`
}

// ModelMeasureStore is the slice of the models repository the seeder needs.
type ModelMeasureStore interface {
	EnsureMeasure(ctx context.Context, name, units string, datatype eav.Datatype) (int64, error)
}

// LoadSeedConfig reads and parses a yaml seed file.
func LoadSeedConfig(path string) (SeedConfig, error) {
	var cfg SeedConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("seed: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Seeder applies a seed config idempotently: groupings and attributes are
// created when missing and linked; existing rows are left untouched.
type Seeder struct {
	locations registry.Catalog
	sensors   registry.Catalog
	models    ModelMeasureStore
}

// NewSeeder constructs a seeder over the three catalogs.
func NewSeeder(locations, sensors registry.Catalog, models ModelMeasureStore) *Seeder {
	return &Seeder{locations: locations, sensors: sensors, models: models}
}

// Apply pushes the seed config into the registries.
func (s *Seeder) Apply(ctx context.Context, cfg SeedConfig) error {
	if err := s.applyGroupings(ctx, s.locations, cfg.LocationSchemas); err != nil {
		return fmt.Errorf("seed: location schemas: %w", err)
	}
	if err := s.applyGroupings(ctx, s.sensors, cfg.SensorTypes); err != nil {
		return fmt.Errorf("seed: sensor types: %w", err)
	}
	for _, measure := range cfg.ModelMeasures {
		datatype, err := eav.ParseDatatype(measure.Datatype)
		if err != nil {
			return fmt.Errorf("seed: model measure %q: %w", measure.Name, err)
		}
		if _, err := s.models.EnsureMeasure(ctx, measure.Name, measure.Units, datatype); err != nil {
			return fmt.Errorf("seed: model measure %q: %w", measure.Name, err)
		}
	}
	return nil
}

func (s *Seeder) applyGroupings(ctx context.Context, catalog registry.Catalog, groupings []SeedGrouping) error {
	for _, grouping := range groupings {
		groupingID, err := catalog.EnsureGrouping(ctx, grouping.Name, grouping.Description)
		if err != nil {
			return fmt.Errorf("grouping %q: %w", grouping.Name, err)
		}
		for _, attr := range grouping.Attributes {
			datatype, err := eav.ParseDatatype(attr.Datatype)
			if err != nil {
				return fmt.Errorf("attribute %q: %w", attr.Name, err)
			}
			attributeID, err := catalog.EnsureAttribute(ctx, attr.Name, attr.Units, datatype)
			if err != nil {
				return fmt.Errorf("attribute %q: %w", attr.Name, err)
			}
			if err := catalog.LinkAttribute(ctx, groupingID, attributeID); err != nil {
				return fmt.Errorf("link %q to %q: %w", attr.Name, grouping.Name, err)
			}
		}
	}
	return nil
}
