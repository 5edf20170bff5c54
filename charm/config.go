// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package charm

import (
	"io"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"
)

// Option represents a single option declared in config.yaml.
type Option struct {
	Type        string
	Description string
	Default     interface{}
}

// Config holds the options declared in config.yaml.
type Config struct {
	Options map[string]Option
}

// Settings holds values for charm config options, keyed by option name.
type Settings map[string]interface{}

var optionTypeCheckers = map[string]schema.Checker{
	"string":  schema.String(),
	"int":     schema.ForceInt(),
	"float":   schema.Float(),
	"boolean": schema.Bool(),
}

var optionSchema = schema.FieldMap(
	schema.Fields{
		"type":        schema.OneOf(schema.Const("string"), schema.Const("int"), schema.Const("float"), schema.Const("boolean")),
		"description": schema.String(),
		"default":     schema.Any(),
	},
	schema.Defaults{
		"type":        "string",
		"description": "",
		"default":     schema.Omit,
	},
)

var configSchema = schema.FieldMap(
	schema.Fields{
		"options": schema.StringMap(optionSchema),
	},
	schema.Defaults{
		"options": schema.Omit,
	},
)

// ReadConfig reads the content of a config.yaml file and returns its
// representation. Option defaults are checked against the option type.
func ReadConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	raw := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, errors.Annotate(err, "config")
	}
	v, err := configSchema.Coerce(raw, nil)
	if err != nil {
		return nil, errors.Annotate(err, "config")
	}
	config := &Config{Options: make(map[string]Option)}
	options, _ := v.(map[string]interface{})["options"].(map[string]interface{})
	for name, o := range options {
		m := o.(map[string]interface{})
		option := Option{
			Type:        m["type"].(string),
			Description: m["description"].(string),
		}
		if def, ok := m["default"]; ok && def != nil {
			coerced, err := optionTypeCheckers[option.Type].Coerce(def, []string{name, "default"})
			if err != nil {
				return nil, errors.Annotatef(err, "config option %q", name)
			}
			option.Default = coerced
		}
		config.Options[name] = option
	}
	return config, nil
}

// DefaultSettings returns the default value of every option that has one.
func (c *Config) DefaultSettings() Settings {
	settings := make(Settings)
	for name, option := range c.Options {
		if option.Default != nil {
			settings[name] = option.Default
		}
	}
	return settings
}

// ValidateSettings checks raw values, as returned by config-get, against
// the declared option types. Unset values take the option default;
// unknown options are rejected.
func (c *Config) ValidateSettings(raw map[string]interface{}) (Settings, error) {
	settings := c.DefaultSettings()
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := raw[name]
		option, ok := c.Options[name]
		if !ok {
			return nil, errors.NotValidf("unknown option %q", name)
		}
		if value == nil {
			continue
		}
		coerced, err := optionTypeCheckers[option.Type].Coerce(value, []string{name})
		if err != nil {
			return nil, errors.NewNotValid(err, "option "+name)
		}
		settings[name] = coerced
	}
	return settings, nil
}

// String returns the named setting as a string, or "" if unset.
func (s Settings) String(name string) string {
	v, _ := s[name].(string)
	return v
}
