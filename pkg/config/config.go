// Package config holds the read-only registry values the iSCSI driver
// consults: numIscsiScanTries, useMultipath, volumeGroup and
// volumeNameTemplate, loadable from a YAML file (blockattach-agent's
// -config flag) over compiled-in defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// Registry is the read-only configuration surface consumed by the iSCSI
// driver. The zero value is not Defaults(): it has no scan tries, volume
// group or name template set.
//
//nolint:govet // fieldalignment: field order prioritizes readability.
type Registry struct {
	// NumISCSIScanTries bounds the device-node wait loop.
	NumISCSIScanTries int `yaml:"numIscsiScanTries"`

	// UseMultipath selects the multipath-aggregation connect/disconnect
	// path.
	UseMultipath bool `yaml:"useMultipath"`

	// VolumeGroup and VolumeNameTemplate feed LocalBlock's symlink
	// preference chain.
	VolumeGroup        string `yaml:"volumeGroup"`
	VolumeNameTemplate string `yaml:"volumeNameTemplate"`
}

// Defaults returns the compiled-in registry values.
func Defaults() Registry {
	return Registry{
		NumISCSIScanTries:  3,
		UseMultipath:       false,
		VolumeGroup:        "nova-volumes",
		VolumeNameTemplate: "volume-%d",
	}
}

// Load reads a Registry from a YAML file, falling back to Defaults() for
// any field the file omits.
func Load(path string) (Registry, error) {
	reg := Defaults()

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return reg, fmt.Errorf("read config %s: %w", path, err)
	}

	overlay := reg
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return reg, fmt.Errorf("parse config %s: %w", path, err)
	}

	klog.V(4).Infof("loaded config registry from %s: %+v", path, overlay)
	return overlay, nil
}

// Save writes the registry to a YAML file in the format Load reads.
func Save(path string, reg Registry) error {
	data, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
