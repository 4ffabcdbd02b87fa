package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// AdapterNames returns the connection names configured under adapter.<kind>.
func (c *Config) AdapterNames(kind string) []string {
	section, ok := c.Stationcast.AdapterConfigs[kind].(map[string]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(section))
	for name := range section {
		names = append(names, name)
	}
	return names
}

// DecodeAdapterConfig decodes adapter.<kind>.<name> into out using the yaml tags of out.
func (c *Config) DecodeAdapterConfig(kind, name string, out interface{}) error {
	section, ok := c.Stationcast.AdapterConfigs[kind].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid 'adapter.%s' configuration format: expected map[string]interface{}", kind)
	}
	raw, ok := section[name]
	if !ok {
		return fmt.Errorf("%s configuration for name '%s' not found", kind, name)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder for %s config '%s': %w", kind, name, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode %s config for '%s': %w", kind, name, err)
	}
	return nil
}
