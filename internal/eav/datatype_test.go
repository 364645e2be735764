package eav

import (
	"errors"
	"testing"
)

func TestParseDatatype(t *testing.T) {
	for _, value := range []string{"string", "integer", "float", "boolean", " Float "} {
		if _, err := ParseDatatype(value); err != nil {
			t.Fatalf("parse %q: %v", value, err)
		}
	}
	if _, err := ParseDatatype("decimal"); !errors.Is(err, ErrUnsupportedDatatype) {
		t.Fatalf("expected ErrUnsupportedDatatype, got %v", err)
	}
}

func TestCheckValue(t *testing.T) {
	valid := []struct {
		datatype Datatype
		value    any
	}{
		{DatatypeString, "a"},
		{DatatypeInteger, int64(3)},
		{DatatypeInteger, 3},
		{DatatypeFloat, 0.5},
		{DatatypeBoolean, true},
	}
	for _, tc := range valid {
		if err := CheckValue(tc.datatype, tc.value); err != nil {
			t.Fatalf("check %v as %s: %v", tc.value, tc.datatype, err)
		}
	}

	invalid := []struct {
		datatype Datatype
		value    any
	}{
		{DatatypeString, 3},
		{DatatypeInteger, 0.5},
		{DatatypeFloat, "0.5"},
		{DatatypeBoolean, "true"},
	}
	for _, tc := range invalid {
		if err := CheckValue(tc.datatype, tc.value); err == nil {
			t.Fatalf("expected mismatch for %v as %s", tc.value, tc.datatype)
		}
	}
}

func TestParseValue(t *testing.T) {
	if v, err := ParseValue(DatatypeFloat, "0.25"); err != nil || v != 0.25 {
		t.Fatalf("parse float: %v, %v", v, err)
	}
	if v, err := ParseValue(DatatypeInteger, "12"); err != nil || v != int64(12) {
		t.Fatalf("parse integer: %v, %v", v, err)
	}
	if v, err := ParseValue(DatatypeBoolean, "true"); err != nil || v != true {
		t.Fatalf("parse boolean: %v, %v", v, err)
	}
	if v, err := ParseValue(DatatypeString, "abc"); err != nil || v != "abc" {
		t.Fatalf("parse string: %v, %v", v, err)
	}
	if _, err := ParseValue(DatatypeInteger, "twelve"); err == nil {
		t.Fatal("expected integer parse error")
	}
}

func TestFamilyValueTable(t *testing.T) {
	table, err := Locations.ValueTable(DatatypeFloat)
	if err != nil || table != "location_float_value" {
		t.Fatalf("location float table: %q, %v", table, err)
	}
	table, err = Sensors.ValueTable(DatatypeBoolean)
	if err != nil || table != "sensor_boolean_reading" {
		t.Fatalf("sensor boolean table: %q, %v", table, err)
	}
	table, err = Models.ValueTable(DatatypeString)
	if err != nil || table != "model_string_value" {
		t.Fatalf("model string table: %q, %v", table, err)
	}
	if _, err := Sensors.ValueTable("decimal"); !errors.Is(err, ErrUnsupportedDatatype) {
		t.Fatalf("expected ErrUnsupportedDatatype, got %v", err)
	}
}
