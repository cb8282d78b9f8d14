// Package cliflag holds flag values shared across subcommands.
package cliflag

var (
	// Strict upgrades warnings to fatal errors.
	Strict bool

	// ConfigFile is the optional YAML configuration path.
	ConfigFile string
)
