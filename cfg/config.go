package cfg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// RegexRule rewrites an attribute value: every match of Find is replaced
// with Replace.
type RegexRule struct {
	Find    string `yaml:"find" toml:"find"`
	Replace string `yaml:"replace" toml:"replace"`
}

// LoggingConfiguration controls console logging
type LoggingConfiguration struct {
	Verbose bool   `yaml:"verbose" toml:"verbose"`
	Format  string `yaml:"format" toml:"format"` // "console" or "json"
}

// Configuration is the conversion settings document
type Configuration struct {
	InputFile   string `yaml:"input_file" toml:"input_file"`
	OutputFile  string `yaml:"output_file" toml:"output_file"`
	LogFile     string `yaml:"log_file" toml:"log_file"`
	LogFormat   string `yaml:"log_format" toml:"log_format"` // "text" or "json"
	RejectFile  string `yaml:"reject_file" toml:"reject_file"`
	MetricsFile string `yaml:"metrics_file" toml:"metrics_file"`

	// Only the string "all" (any case) enables empty attribute removal.
	CleanEmpty any `yaml:"clean_empty" toml:"clean_empty"`

	RemoveObjects  map[string][]string          `yaml:"remove_objects" toml:"remove_objects"`
	RemoveAttrs    []string                     `yaml:"remove_attrs" toml:"remove_attrs"`
	DNRemoveAttrs  map[string][]string          `yaml:"dn_remove_attrs" toml:"dn_remove_attrs"`
	SchemaRegex    map[string]RegexRule         `yaml:"schema_regex" toml:"schema_regex"`
	RenameAttrs    map[string]string            `yaml:"rename_atrs" toml:"rename_atrs"`
	RenameDNAttrs  map[string]map[string]string `yaml:"rename_dn_atrs" toml:"rename_dn_atrs"`
	SchemaValidate map[string]string            `yaml:"schema_validate" toml:"schema_validate"`

	IgnoreB64Errors bool     `yaml:"IgnoreB64Errors" toml:"IgnoreB64Errors"`
	B64NoConvert    []string `yaml:"b64_no_convert" toml:"b64_no_convert"`
	CaseInsensitive bool     `yaml:"case_insensitive" toml:"case_insensitive"`

	ProgressInterval int  `yaml:"progress_interval" toml:"progress_interval"` // records between progress reports, 0 disables
	DecodeCacheSize  int  `yaml:"decode_cache_size" toml:"decode_cache_size"` // remembered base64 payloads, 0 disables
	DetectDuplicates bool `yaml:"detect_duplicates" toml:"detect_duplicates"`

	Logging LoggingConfiguration `yaml:"logging" toml:"logging"`
}

// Overrides holds command line values that take precedence over the file.
type Overrides struct {
	InputFile     string
	OutputFile    string
	LogFile       string
	ConsoleFormat string // console logger format, not the audit log_format
	Verbose       bool
}

// Default returns the configuration used for keys the document leaves out.
func Default() *Configuration {
	return &Configuration{
		LogFormat:        "text",
		IgnoreB64Errors:  true,
		ProgressInterval: 1000,
		DecodeCacheSize:  1024,
		DetectDuplicates: true,
		Logging: LoggingConfiguration{
			Verbose: false,
			Format:  "console",
		},
	}
}

// Load reads the document at path. ".toml" files are decoded as TOML,
// everything else as YAML. Unknown keys are an error.
func Load(fs afero.Fs, path string) (*Configuration, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	c := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = decodeTOML(data, c)
	} else {
		err = decodeYAML(data, c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	return c, nil
}

func decodeYAML(data []byte, c *Configuration) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(data []byte, c *Configuration) error {
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return err
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// Apply copies every non-empty override into c.
func (c *Configuration) Apply(o Overrides) {
	if o.InputFile != "" {
		c.InputFile = o.InputFile
	}
	if o.OutputFile != "" {
		c.OutputFile = o.OutputFile
	}
	if o.LogFile != "" {
		c.LogFile = o.LogFile
	}
	if o.ConsoleFormat != "" {
		c.Logging.Format = o.ConsoleFormat
	}
	if o.Verbose {
		c.Logging.Verbose = true
	}
}

// CleanEmptyEnabled reports whether clean_empty is set to "all".
func (c *Configuration) CleanEmptyEnabled() bool {
	s, ok := c.CleanEmpty.(string)
	return ok && strings.EqualFold(s, "all")
}

// Validate checks configuration for errors. Regular expressions are checked
// when the rule pipeline is compiled.
func (c *Configuration) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input_file is required")
	}

	if c.OutputFile == "" {
		return fmt.Errorf("output_file is required")
	}

	if c.InputFile != "-" && c.InputFile == c.OutputFile {
		return fmt.Errorf("input_file and output_file must differ")
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %s (must be text|json)", c.LogFormat)
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging.format: %s (must be console|json)", c.Logging.Format)
	}

	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress_interval must be >= 0")
	}

	if c.DecodeCacheSize < 0 {
		return fmt.Errorf("decode_cache_size must be >= 0")
	}

	if err := checkNames("remove_attrs", c.RemoveAttrs); err != nil {
		return err
	}

	if err := checkNames("b64_no_convert", c.B64NoConvert); err != nil {
		return err
	}

	for class, attrs := range c.RemoveObjects {
		if class == "" {
			return fmt.Errorf("remove_objects: empty object class")
		}
		if err := checkNames("remove_objects."+class, attrs); err != nil {
			return err
		}
	}

	for dn, attrs := range c.DNRemoveAttrs {
		if dn == "" {
			return fmt.Errorf("dn_remove_attrs: empty dn")
		}
		if err := checkNames("dn_remove_attrs."+dn, attrs); err != nil {
			return err
		}
	}

	for name, rule := range c.SchemaRegex {
		if rule.Find == "" {
			return fmt.Errorf("schema_regex.%s: find is required", name)
		}
	}

	for from, to := range c.RenameAttrs {
		if from == "" || to == "" {
			return fmt.Errorf("rename_atrs: empty attribute name in %q -> %q", from, to)
		}
	}

	for suffix, mapping := range c.RenameDNAttrs {
		if suffix == "" {
			return fmt.Errorf("rename_dn_atrs: empty dn suffix")
		}
		for from, to := range mapping {
			if from == "" || to == "" {
				return fmt.Errorf("rename_dn_atrs.%s: empty attribute name in %q -> %q", suffix, from, to)
			}
		}
	}

	return nil
}

func checkNames(key string, names []string) error {
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("%s: empty attribute name", key)
		}
	}
	return nil
}
