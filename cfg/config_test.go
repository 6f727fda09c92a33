package cfg

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingsYAML = `
input_file: export.ldif
output_file: import.ldif
log_file: convert.log
clean_empty: all
remove_objects:
  nsContainer:
    - nsUniqueId
remove_attrs:
  - userPassword
  - modifiersName
dn_remove_attrs:
  "uid=admin, ou=People, dc=example":
    - description
schema_regex:
  telephoneNumber:
    find: '^\+1 (\d+)'
    replace: '\1'
rename_atrs:
  sn: surname
rename_dn_atrs:
  "ou=Groups,dc=example":
    uniqueMember: member
schema_validate:
  mail: '^[^@]+@[^@]+$'
IgnoreB64Errors: false
b64_no_convert:
  - jpegPhoto
case_insensitive: true
`

const settingsTOML = `
input_file = "export.ldif"
output_file = "import.ldif"
log_file = "convert.log"
clean_empty = "all"
remove_attrs = ["userPassword", "modifiersName"]
IgnoreB64Errors = false
b64_no_convert = ["jpegPhoto"]
case_insensitive = true

[remove_objects]
nsContainer = ["nsUniqueId"]

[dn_remove_attrs]
"uid=admin, ou=People, dc=example" = ["description"]

[schema_regex.telephoneNumber]
find = '^\+1 (\d+)'
replace = '\1'

[rename_atrs]
sn = "surname"

[rename_dn_atrs."ou=Groups,dc=example"]
uniqueMember = "member"

[schema_validate]
mail = '^[^@]+@[^@]+$'
`

func writeFile(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0644))
}

func assertSettings(t *testing.T, c *Configuration) {
	t.Helper()

	assert.Equal(t, "export.ldif", c.InputFile)
	assert.Equal(t, "import.ldif", c.OutputFile)
	assert.Equal(t, "convert.log", c.LogFile)
	assert.True(t, c.CleanEmptyEnabled())
	assert.Equal(t, map[string][]string{"nsContainer": {"nsUniqueId"}}, c.RemoveObjects)
	assert.Equal(t, []string{"userPassword", "modifiersName"}, c.RemoveAttrs)
	assert.Equal(t, []string{"description"}, c.DNRemoveAttrs["uid=admin, ou=People, dc=example"])
	assert.Equal(t, RegexRule{Find: `^\+1 (\d+)`, Replace: `\1`}, c.SchemaRegex["telephoneNumber"])
	assert.Equal(t, map[string]string{"sn": "surname"}, c.RenameAttrs)
	assert.Equal(t, "member", c.RenameDNAttrs["ou=Groups,dc=example"]["uniqueMember"])
	assert.Equal(t, `^[^@]+@[^@]+$`, c.SchemaValidate["mail"])
	assert.False(t, c.IgnoreB64Errors)
	assert.Equal(t, []string{"jpegPhoto"}, c.B64NoConvert)
	assert.True(t, c.CaseInsensitive)

	// untouched defaults
	assert.Equal(t, 1000, c.ProgressInterval)
	assert.True(t, c.DetectDuplicates)
	assert.Equal(t, "console", c.Logging.Format)

	require.NoError(t, c.Validate())
}

func TestLoadYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "settings.yml", settingsYAML)

	c, err := Load(fs, "settings.yml")
	require.NoError(t, err)
	assertSettings(t, c)
}

func TestLoadTOML(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "settings.toml", settingsTOML)

	c, err := Load(fs, "settings.toml")
	require.NoError(t, err)
	assertSettings(t, c)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "settings.yml", "input_file: a\nremove_atributes: [x]\n")
	writeFile(t, fs, "settings.toml", "input_file = \"a\"\nremove_atributes = [\"x\"]\n")

	_, err := Load(fs, "settings.yml")
	assert.ErrorContains(t, err, "remove_atributes")

	_, err = Load(fs, "settings.toml")
	assert.ErrorContains(t, err, "remove_atributes")
}

func TestLoadRejectsMalformedDocument(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "settings.yml", "remove_attrs: {not: [a list\n")

	_, err := Load(fs, "settings.yml")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "nope.yml")
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoadEmptyDocumentUsesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "settings.yml", "")

	c, err := Load(fs, "settings.yml")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestCleanEmptyEnabled(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{"all", true},
		{"ALL", true},
		{"some", false},
		{true, false},
		{nil, false},
	}

	for _, tt := range tests {
		c := Default()
		c.CleanEmpty = tt.value
		assert.Equal(t, tt.want, c.CleanEmptyEnabled(), "%v", tt.value)
	}
}

func TestApplyOverrides(t *testing.T) {
	c := Default()
	c.InputFile = "a.ldif"
	c.OutputFile = "b.ldif"

	c.Apply(Overrides{OutputFile: "c.ldif", LogFile: "c.log", ConsoleFormat: "json", Verbose: true})

	assert.Equal(t, "a.ldif", c.InputFile)
	assert.Equal(t, "c.ldif", c.OutputFile)
	assert.Equal(t, "c.log", c.LogFile)
	assert.Equal(t, "json", c.Logging.Format)
	assert.True(t, c.Logging.Verbose)
	// the audit log format is untouched
	assert.Equal(t, "text", c.LogFormat)
}

func TestValidate(t *testing.T) {
	valid := func() *Configuration {
		c := Default()
		c.InputFile = "in.ldif"
		c.OutputFile = "out.ldif"
		return c
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Configuration)
	}{
		{"missing input", func(c *Configuration) { c.InputFile = "" }},
		{"missing output", func(c *Configuration) { c.OutputFile = "" }},
		{"same file", func(c *Configuration) { c.OutputFile = c.InputFile }},
		{"bad log format", func(c *Configuration) { c.LogFormat = "xml" }},
		{"bad console format", func(c *Configuration) { c.Logging.Format = "pretty" }},
		{"negative interval", func(c *Configuration) { c.ProgressInterval = -1 }},
		{"negative cache", func(c *Configuration) { c.DecodeCacheSize = -1 }},
		{"empty remove attr", func(c *Configuration) { c.RemoveAttrs = []string{"cn", " "} }},
		{"empty object class", func(c *Configuration) { c.RemoveObjects = map[string][]string{"": {"cn"}} }},
		{"missing find", func(c *Configuration) { c.SchemaRegex = map[string]RegexRule{"cn": {Replace: "x"}} }},
		{"empty rename", func(c *Configuration) { c.RenameAttrs = map[string]string{"sn": ""} }},
		{"empty dn suffix", func(c *Configuration) { c.RenameDNAttrs = map[string]map[string]string{"": {"a": "b"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
