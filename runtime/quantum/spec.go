package quantum

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DeviceSpec configures a device instance. Specs arrive from user code and
// from configuration files, so they validate against a schema before any
// state is allocated.
type DeviceSpec struct {
	Name  string `json:"name" yaml:"name"`
	Wires int    `json:"wires" yaml:"wires"`
	Shots int    `json:"shots,omitempty" yaml:"shots,omitempty"`
}

// Wire count is capped well below anything a dense statevector could hold:
// 24 wires is already a 256 MiB register.
const deviceSpecSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "name": {
      "type": "string",
      "minLength": 1,
      "pattern": "^[a-z][a-z0-9._-]*$"
    },
    "wires": {
      "type": "integer",
      "minimum": 1,
      "maximum": 24
    },
    "shots": {
      "type": "integer",
      "minimum": 0
    }
  },
  "required": ["name", "wires"],
  "additionalProperties": false
}`

var (
	specSchemaOnce sync.Once
	specSchema     *jsonschema.Schema
	specSchemaErr  error
)

func compiledSpecSchema() (*jsonschema.Schema, error) {
	specSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		url := "schema://device-spec.json"
		if err := compiler.AddResource(url, strings.NewReader(deviceSpecSchema)); err != nil {
			specSchemaErr = err
			return
		}
		specSchema, specSchemaErr = compiler.Compile(url)
	})
	return specSchema, specSchemaErr
}

// Validate checks the spec against the device spec schema.
func (s DeviceSpec) Validate() error {
	schema, err := compiledSpecSchema()
	if err != nil {
		return fmt.Errorf("device spec schema: %w", err)
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("device spec marshal: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("device spec unmarshal: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid device spec: %w", err)
	}
	return nil
}

func (s DeviceSpec) String() string {
	if s.Shots > 0 {
		return fmt.Sprintf("%s(wires=%d, shots=%d)", s.Name, s.Wires, s.Shots)
	}
	return fmt.Sprintf("%s(wires=%d)", s.Name, s.Wires)
}
