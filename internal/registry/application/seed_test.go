package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"digitaltwin-cloud/internal/eav"
	registry "digitaltwin-cloud/internal/registry/domain"
)

type fakeCatalog struct {
	groupings  map[string]int64
	attributes map[string]int64
	links      map[[2]int64]int
	nextID     int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		groupings:  map[string]int64{},
		attributes: map[string]int64{},
		links:      map[[2]int64]int{},
	}
}

func (c *fakeCatalog) GroupingID(_ context.Context, name string) (int64, bool, error) {
	id, ok := c.groupings[name]
	return id, ok, nil
}

func (c *fakeCatalog) AttributesForGrouping(context.Context, string) ([]eav.AttributeSpec, error) {
	return nil, nil
}

func (c *fakeCatalog) Groupings(context.Context) ([]registry.Grouping, error) {
	return nil, nil
}

func (c *fakeCatalog) Entries(context.Context) ([]registry.CatalogEntry, error) {
	return nil, nil
}

func (c *fakeCatalog) EnsureGrouping(_ context.Context, name, _ string) (int64, error) {
	if id, ok := c.groupings[name]; ok {
		return id, nil
	}
	c.nextID++
	c.groupings[name] = c.nextID
	return c.nextID, nil
}

func (c *fakeCatalog) EnsureAttribute(_ context.Context, name, units string, _ eav.Datatype) (int64, error) {
	key := name + "|" + units
	if id, ok := c.attributes[key]; ok {
		return id, nil
	}
	c.nextID++
	c.attributes[key] = c.nextID
	return c.nextID, nil
}

func (c *fakeCatalog) LinkAttribute(_ context.Context, groupingID, attributeID int64) error {
	c.links[[2]int64{groupingID, attributeID}]++
	return nil
}

type fakeMeasureStore struct {
	measures map[string]int64
	nextID   int64
}

func (s *fakeMeasureStore) EnsureMeasure(_ context.Context, name, units string, _ eav.Datatype) (int64, error) {
	if s.measures == nil {
		s.measures = map[string]int64{}
	}
	key := name + "|" + units
	if id, ok := s.measures[key]; ok {
		return id, nil
	}
	s.nextID++
	s.measures[key] = s.nextID
	return s.nextID, nil
}

const seedYAML = `
location_schemas:
  - name: latlong
    description: Latitude/longitude locations
    attributes:
      - name: latitude
        units: degrees
        datatype: float
      - name: longitude
        units: degrees
        datatype: float
sensor_types:
  - name: weather
    attributes:
      - name: temperature
        units: degrees_celsius
        datatype: float
      - name: raining
        datatype: boolean
model_measures:
  - name: mean_prediction
    datatype: float
`

func TestLoadSeedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	cfg, err := LoadSeedConfig(path)
	if err != nil {
		t.Fatalf("load seed config: %v", err)
	}
	if len(cfg.LocationSchemas) != 1 || cfg.LocationSchemas[0].Name != "latlong" {
		t.Fatalf("unexpected location schemas: %+v", cfg.LocationSchemas)
	}
	if len(cfg.SensorTypes) != 1 || len(cfg.SensorTypes[0].Attributes) != 2 {
		t.Fatalf("unexpected sensor types: %+v", cfg.SensorTypes)
	}
	if len(cfg.ModelMeasures) != 1 {
		t.Fatalf("unexpected model measures: %+v", cfg.ModelMeasures)
	}
}

func TestSeederApply_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	cfg, err := LoadSeedConfig(path)
	if err != nil {
		t.Fatalf("load seed config: %v", err)
	}

	locations := newFakeCatalog()
	sensors := newFakeCatalog()
	models := &fakeMeasureStore{}
	seeder := NewSeeder(locations, sensors, models)

	for i := 0; i < 2; i++ {
		if err := seeder.Apply(context.Background(), cfg); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	if len(locations.groupings) != 1 || len(locations.attributes) != 2 {
		t.Fatalf("unexpected location catalog: %+v", locations)
	}
	if len(sensors.groupings) != 1 || len(sensors.attributes) != 2 {
		t.Fatalf("unexpected sensor catalog: %+v", sensors)
	}
	if len(models.measures) != 1 {
		t.Fatalf("unexpected model measures: %+v", models.measures)
	}
}

func TestSeederApply_BadDatatype(t *testing.T) {
	cfg := SeedConfig{
		SensorTypes: []SeedGrouping{{
			Name:       "broken",
			Attributes: []SeedAttribute{{Name: "x", Datatype: "decimal"}},
		}},
	}
	seeder := NewSeeder(newFakeCatalog(), newFakeCatalog(), &fakeMeasureStore{})
	if err := seeder.Apply(context.Background(), cfg); err == nil {
		t.Fatal("expected datatype error")
	}
}
