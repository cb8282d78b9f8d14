// Package preprocess implements the multi-step capture cleanup pipeline:
// archival, time-alignment, deduplication, and one-way stream removal, with
// step-fusion and bounded worker parallelism.
package preprocess

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/rickypin/capmaster/util"
)

// EnvConfigPath names the environment variable used to locate the main
// configuration file when none is given explicitly.
const EnvConfigPath = "CAPMASTER_CONFIG"

// DefaultConfigFileName is looked up in the current working directory when
// neither an explicit path nor EnvConfigPath is set.
const DefaultConfigFileName = "capmaster_config.yaml"

// ToolsConfig holds hint paths for the external tools preprocess shells out
// to. A blank path means the corresponding wrapper falls back to its
// environment variable, then PATH.
type ToolsConfig struct {
	TsharkPath   string
	EditcapPath  string
	CapinfosPath string
}

// toolsOverrides carries CLI-sourced tool path overrides, the highest
// precedence source.
type toolsOverrides struct {
	TsharkPath   string
	EditcapPath  string
	CapinfosPath string
}

// buildToolsConfig applies precedence defaults < YAML < ENV < overrides.
func buildToolsConfig(yamlData map[string]interface{}, env func(string) string, overrides toolsOverrides) ToolsConfig {
	var cfg ToolsConfig

	if v, ok := yamlData["tshark_path"].(string); ok && v != "" {
		cfg.TsharkPath = v
	}
	if v, ok := yamlData["editcap_path"].(string); ok && v != "" {
		cfg.EditcapPath = v
	}
	if v, ok := yamlData["capinfos_path"].(string); ok && v != "" {
		cfg.CapinfosPath = v
	}

	if v := env("TSHARK_PATH"); v != "" {
		cfg.TsharkPath = v
	}
	if v := env("EDITCAP_PATH"); v != "" {
		cfg.EditcapPath = v
	}
	if v := env("CAPINFOS_PATH"); v != "" {
		cfg.CapinfosPath = v
	}

	if overrides.TsharkPath != "" {
		cfg.TsharkPath = overrides.TsharkPath
	}
	if overrides.EditcapPath != "" {
		cfg.EditcapPath = overrides.EditcapPath
	}
	if overrides.CapinfosPath != "" {
		cfg.CapinfosPath = overrides.CapinfosPath
	}

	return cfg
}

// ToMap renders the tool paths keyed as toolinvoke.New expects, skipping
// blank entries so unset tools fall through to env/PATH resolution.
func (c ToolsConfig) ToMap() map[string]string {
	m := make(map[string]string, 3)
	if c.TsharkPath != "" {
		m["tshark"] = c.TsharkPath
	}
	if c.EditcapPath != "" {
		m["editcap"] = c.EditcapPath
	}
	if c.CapinfosPath != "" {
		m["capinfos"] = c.CapinfosPath
	}
	return m
}

// Config is the business configuration for preprocess steps.
type Config struct {
	DedupEnabled     bool
	OnewayEnabled    bool
	TimeAlignEnabled bool
	ArchiveOriginal  bool
	ArchiveCompress  bool

	DedupWindowPackets int // 0 means "use tool default"
	DedupIgnoreBytes   int

	OnewayAckThreshold int

	TimeAlignAllowEmpty bool

	ReportEnabled bool
	ReportPath    string

	Workers int

	Strict bool
}

// defaultConfig is the field set used when no YAML or override supplies a
// value.
func defaultConfig() Config {
	return Config{
		DedupEnabled:        true,
		OnewayEnabled:       true,
		TimeAlignEnabled:    true,
		ArchiveOriginal:     false,
		ArchiveCompress:     false,
		DedupIgnoreBytes:    0,
		OnewayAckThreshold:  20,
		TimeAlignAllowEmpty: false,
		ReportEnabled:       true,
		Workers:             4,
	}
}

// RuntimeConfig aggregates tool resolution and business configuration for
// one preprocess invocation. Only this type should reach pipeline code;
// callers resolve YAML/env/CLI sources before constructing it.
type RuntimeConfig struct {
	Tools      ToolsConfig
	Preprocess Config
}

// Overrides carries CLI flag values destined for Config, with bool pointers
// distinguishing "flag not passed" from "flag passed as false".
type Overrides struct {
	Tools ToolsOverrides

	DedupEnabled     *bool
	OnewayEnabled    *bool
	TimeAlignEnabled *bool
	ArchiveOriginal  *bool
	ArchiveCompress  *bool

	DedupWindowPackets *int
	DedupIgnoreBytes   *int

	OnewayAckThreshold *int

	TimeAlignAllowEmpty *bool

	ReportEnabled *bool
	ReportPath    *string

	Workers *int
	Strict  *bool
}

// ToolsOverrides is the exported form of toolsOverrides, used by cmd/.
type ToolsOverrides = toolsOverrides

// LoadYAMLConfig loads a YAML config from configFile, CAPMASTER_CONFIG, or
// the default filename in the working directory, in that resolution order.
// An empty map with no error is returned when neither configFile nor
// CAPMASTER_CONFIG is set and the default file is absent; a path given by
// either of those that does not exist yields a ConfigError.
func LoadYAMLConfig(configFile string) (map[string]interface{}, error) {
	path := configFile
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		if _, err := os.Stat(DefaultConfigFileName); err == nil {
			path = DefaultConfigFileName
		}
	}
	if path == "" {
		return map[string]interface{}{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, util.NewConfigError("configuration file not found: "+path, "check the --config flag or CAPMASTER_CONFIG environment variable")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "parsing YAML config %s", path)
	}
	return v.AllSettings(), nil
}

// BuildRuntimeConfig constructs a RuntimeConfig from YAML data and CLI
// overrides, in precedence order defaults < YAML < ENV (tools only) <
// overrides.
func BuildRuntimeConfig(yamlData map[string]interface{}, overrides Overrides) RuntimeConfig {
	toolsYAML, _ := yamlData["tools"].(map[string]interface{})
	preprocessYAML, _ := yamlData["preprocess"].(map[string]interface{})

	tools := buildToolsConfig(toolsYAML, os.Getenv, overrides.Tools)

	cfg := defaultConfig()
	applyYAML(&cfg, preprocessYAML)
	applyOverrides(&cfg, overrides)

	return RuntimeConfig{Tools: tools, Preprocess: cfg}
}

func applyYAML(cfg *Config, data map[string]interface{}) {
	if v, ok := data["dedup_enabled"].(bool); ok {
		cfg.DedupEnabled = v
	}
	if v, ok := data["oneway_enabled"].(bool); ok {
		cfg.OnewayEnabled = v
	}
	if v, ok := data["time_align_enabled"].(bool); ok {
		cfg.TimeAlignEnabled = v
	}
	if v, ok := data["archive_original"].(bool); ok {
		cfg.ArchiveOriginal = v
	}
	if v, ok := data["archive_compress"].(bool); ok {
		cfg.ArchiveCompress = v
	}
	if v, ok := data["dedup_window_packets"].(int); ok {
		cfg.DedupWindowPackets = v
	}
	if v, ok := data["dedup_ignore_bytes"].(int); ok {
		cfg.DedupIgnoreBytes = v
	}
	if v, ok := data["oneway_ack_threshold"].(int); ok {
		cfg.OnewayAckThreshold = v
	}
	if v, ok := data["time_align_allow_empty"].(bool); ok {
		cfg.TimeAlignAllowEmpty = v
	}
	if v, ok := data["report_enabled"].(bool); ok {
		cfg.ReportEnabled = v
	}
	if v, ok := data["report_path"].(string); ok {
		cfg.ReportPath = v
	}
	if v, ok := data["workers"].(int); ok {
		cfg.Workers = v
	}
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.DedupEnabled != nil {
		cfg.DedupEnabled = *o.DedupEnabled
	}
	if o.OnewayEnabled != nil {
		cfg.OnewayEnabled = *o.OnewayEnabled
	}
	if o.TimeAlignEnabled != nil {
		cfg.TimeAlignEnabled = *o.TimeAlignEnabled
	}
	if o.ArchiveOriginal != nil {
		cfg.ArchiveOriginal = *o.ArchiveOriginal
	}
	if o.ArchiveCompress != nil {
		cfg.ArchiveCompress = *o.ArchiveCompress
	}
	if o.DedupWindowPackets != nil {
		cfg.DedupWindowPackets = *o.DedupWindowPackets
	}
	if o.DedupIgnoreBytes != nil {
		cfg.DedupIgnoreBytes = *o.DedupIgnoreBytes
	}
	if o.OnewayAckThreshold != nil {
		cfg.OnewayAckThreshold = *o.OnewayAckThreshold
	}
	if o.TimeAlignAllowEmpty != nil {
		cfg.TimeAlignAllowEmpty = *o.TimeAlignAllowEmpty
	}
	if o.ReportEnabled != nil {
		cfg.ReportEnabled = *o.ReportEnabled
	}
	if o.ReportPath != nil {
		cfg.ReportPath = *o.ReportPath
	}
	if o.Workers != nil {
		cfg.Workers = *o.Workers
	}
	if o.Strict != nil {
		cfg.Strict = *o.Strict
	}
}
