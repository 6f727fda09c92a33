package convert

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/maxpert/ldifconv/cfg"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportLDIF = `dn: uid=jdoe, ou=People, dc=example
objectClass: person
cn: Jane Doe
sn: Doe
userPassword: secret
description:: aGVsbG8=
mail: jdoe@example.com

dn: uid=bad,ou=People,dc=example
mail: not-mail
telephoneNumber: +1 555 1234
`

const wantLDIF = `dn: uid=jdoe, ou=People, dc=example
objectClass: person
cn: Jane Doe
surname: Doe
description: hello
mail: jdoe@example.com

dn: uid=bad,ou=People,dc=example
telephoneNumber: 555 1234

`

func testConfig() *cfg.Configuration {
	c := cfg.Default()
	c.InputFile = "export.ldif"
	c.OutputFile = "import.ldif"
	c.LogFile = "convert.log"
	c.RemoveAttrs = []string{"userPassword"}
	c.RenameAttrs = map[string]string{"sn": "surname"}
	c.SchemaValidate = map[string]string{"mail": `[^@]+@[^@]+`}
	c.SchemaRegex = map[string]cfg.RegexRule{"telephoneNumber": {Find: `^\+1 `, Replace: ``}}
	return c
}

func readFile(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, name)
	require.NoError(t, err)
	return string(data)
}

func newConverter(t *testing.T, fs afero.Fs, c *cfg.Configuration) (*Converter, *bytes.Buffer) {
	t.Helper()
	var summary bytes.Buffer
	return New(c, fs, zerolog.Nop(), Options{RunID: "run-1", Summary: &summary}), &summary
}

func TestRunConvertsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "export.ldif", []byte(exportLDIF), 0644))

	conv, summary := newConverter(t, fs, testConfig())
	snap, err := conv.Run()
	require.NoError(t, err)

	assert.Equal(t, wantLDIF, readFile(t, fs, "import.ldif"))
	assert.Equal(t, uint64(2), snap.Records)
	assert.Equal(t, uint64(2), snap.Written)
	assert.Equal(t, uint64(2), snap.Modified)
	assert.Equal(t, uint64(0), snap.Failed)
	assert.Equal(t, uint64(1), snap.ValidationErrors)
	assert.Equal(t, uint64(1), snap.Dropped["AttributeRemoval"])

	audit := readFile(t, fs, "convert.log")
	assert.Contains(t, audit, "Processing: uid=jdoe,ou=People,dc=example\n")
	assert.Contains(t, audit, " global atribute filtered out:  'userPassword: secret'")
	assert.Contains(t, audit, " Renamed atribute 'sn' -> 'surname'")
	assert.Contains(t, audit, "Processing: uid=bad,ou=People,dc=example\n")
	assert.Contains(t, audit, " schema validation failed:  'mail: not-mail'")
	assert.Equal(t, 1, strings.Count(audit, "Processing: uid=jdoe,ou=People,dc=example"))

	assert.Contains(t, summary.String(), "  Validation errors: 1\n")
}

func TestRunIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "export.ldif", []byte(exportLDIF), 0644))

	first, _ := newConverter(t, fs, testConfig())
	_, err := first.Run()
	require.NoError(t, err)

	c := testConfig()
	c.InputFile = "import.ldif"
	c.OutputFile = "again.ldif"
	second, _ := newConverter(t, fs, c)
	snap, err := second.Run()
	require.NoError(t, err)

	assert.Equal(t, readFile(t, fs, "import.ldif"), readFile(t, fs, "again.ldif"))
	assert.Equal(t, uint64(0), snap.Modified)
}

func TestRunWithoutRulesRoundTrips(t *testing.T) {
	const in = "# export\ndn: cn=a,dc=example\ncn: a\n\ndn: cn=b,dc=example\njpegPhoto:: //4=\n\n"

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "in.ldif", []byte(in), 0644))

	c := cfg.Default()
	c.InputFile = "in.ldif"
	c.OutputFile = "out.ldif"
	conv, _ := newConverter(t, fs, c)
	snap, err := conv.Run()
	require.NoError(t, err)

	assert.Equal(t, in, readFile(t, fs, "out.ldif"))
	assert.Equal(t, uint64(2), snap.Records)
	assert.Equal(t, uint64(1), snap.Base64Errors)
	assert.Equal(t, uint64(0), snap.Modified)
}

func TestRunRejectsUndecodableRecords(t *testing.T) {
	const in = "dn: cn=good,dc=example\ncn: good\n\ndn: cn=broken,dc=example\ncn:: //4=\n\ndn: cn=last,dc=example\ncn: last\n"

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "in.ldif", []byte(in), 0644))

	c := cfg.Default()
	c.InputFile = "in.ldif"
	c.OutputFile = "out.ldif"
	c.LogFile = "convert.log"
	c.RejectFile = "rejects.ldif"
	c.IgnoreB64Errors = false

	conv, _ := newConverter(t, fs, c)
	snap, err := conv.Run()
	require.NoError(t, err)

	assert.Equal(t, "dn: cn=good,dc=example\ncn: good\n\ndn: cn=last,dc=example\ncn: last\n\n", readFile(t, fs, "out.ldif"))
	assert.Equal(t, "dn: cn=broken,dc=example\ncn:: //4=\n\n", readFile(t, fs, "rejects.ldif"))
	assert.Equal(t, uint64(3), snap.Records)
	assert.Equal(t, uint64(2), snap.Written)
	assert.Equal(t, uint64(1), snap.Failed)
	assert.Equal(t, uint64(1), snap.Base64Errors)

	audit := readFile(t, fs, "convert.log")
	assert.Contains(t, audit, "Processing: cn=broken,dc=example\n")
	assert.Contains(t, audit, " Record not converted: invalid base64 value")
}

func TestRunFlagsDuplicateKeys(t *testing.T) {
	const in = "dn: cn=a,dc=example\ncn: a\n\ndn: CN=a, dc=example\ncn: again\n\ndn: cn=b,dc=example\n"

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "in.ldif", []byte(in), 0644))

	c := cfg.Default()
	c.InputFile = "in.ldif"
	c.OutputFile = "out.ldif"
	c.LogFile = "convert.log"

	conv, _ := newConverter(t, fs, c)
	snap, err := conv.Run()
	require.NoError(t, err)

	assert.Equal(t, uint64(1), snap.Duplicates)
	assert.Contains(t, readFile(t, fs, "convert.log"), " Possible duplicate dn: 'CN=a,dc=example'")
}

func TestRunCompressedStreams(t *testing.T) {
	for _, ext := range []string{".gz", ".zst"} {
		t.Run(ext, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "export.ldif", []byte(exportLDIF), 0644))

			c := testConfig()
			c.OutputFile = "import.ldif" + ext
			conv, _ := newConverter(t, fs, c)
			_, err := conv.Run()
			require.NoError(t, err)

			in, err := Open(fs, c.OutputFile, nil)
			require.NoError(t, err)
			data, err := io.ReadAll(in)
			require.NoError(t, err)
			require.NoError(t, in.Close())
			assert.Equal(t, wantLDIF, string(data))

			// and back in through the decompressing reader
			c2 := testConfig()
			c2.InputFile = c.OutputFile
			c2.OutputFile = "again.ldif"
			again, _ := newConverter(t, fs, c2)
			snap, err := again.Run()
			require.NoError(t, err)
			assert.Equal(t, uint64(2), snap.Records)
			assert.Equal(t, wantLDIF, readFile(t, fs, "again.ldif"))
		})
	}
}

func TestRunStdStreams(t *testing.T) {
	var stdout bytes.Buffer
	c := cfg.Default()
	c.InputFile = StdStream
	c.OutputFile = StdStream

	conv := New(c, afero.NewMemMapFs(), zerolog.Nop(), Options{
		Stdin:  strings.NewReader("dn: cn=a\ncn:: aGVsbG8=\n"),
		Stdout: &stdout,
	})
	_, err := conv.Run()
	require.NoError(t, err)

	assert.Equal(t, "dn: cn=a\ncn: hello\n\n", stdout.String())
}

func TestRunJSONAuditLog(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "export.ldif", []byte(exportLDIF), 0644))

	c := testConfig()
	c.LogFormat = "json"
	conv, _ := newConverter(t, fs, c)
	_, err := conv.Run()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(readFile(t, fs, "convert.log")), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &event), line)
		assert.Equal(t, "run-1", event["run_id"])
		assert.NotEmpty(t, event["record"])
	}
}

func TestRunWritesMetricsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "export.ldif", []byte(exportLDIF), 0644))

	c := testConfig()
	c.MetricsFile = "ldifconv.prom"
	conv, _ := newConverter(t, fs, c)
	_, err := conv.Run()
	require.NoError(t, err)

	metrics := readFile(t, fs, "ldifconv.prom")
	assert.Contains(t, metrics, `ldifconv_records_total{run_id="run-1"} 2`)
	assert.Contains(t, metrics, `ldifconv_validation_errors_total{run_id="run-1"} 1`)
	assert.Contains(t, metrics, `ldifconv_lines_dropped_total{rule="AttributeRemoval",run_id="run-1"} 1`)
}

func TestRunFailsBeforeProcessing(t *testing.T) {
	fs := afero.NewMemMapFs()

	conv, _ := newConverter(t, fs, testConfig())
	_, err := conv.Run()
	assert.ErrorContains(t, err, "failed to open export.ldif")

	exists, _ := afero.Exists(fs, "import.ldif")
	assert.False(t, exists)
}

func TestRunFailsOnBadPattern(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "export.ldif", []byte(exportLDIF), 0644))

	c := testConfig()
	c.SchemaValidate = map[string]string{"mail": "("}
	conv, _ := newConverter(t, fs, c)
	_, err := conv.Run()
	assert.ErrorContains(t, err, "schema_validate.mail")
}

func TestRunPrintsSummaryOnReadError(t *testing.T) {
	c := cfg.Default()
	c.InputFile = StdStream
	c.OutputFile = "out.ldif"

	var summary bytes.Buffer
	conv := New(c, afero.NewMemMapFs(), zerolog.Nop(), Options{
		Stdin:   io.MultiReader(strings.NewReader("dn: cn=a\ncn: a\n\n"), iotest.ErrReader(errors.New("disk gone"))),
		Summary: &summary,
	})
	snap, err := conv.Run()
	assert.ErrorContains(t, err, "disk gone")

	assert.Equal(t, uint64(1), snap.Records)
	assert.Contains(t, summary.String(), "  READ:     1\n")
	assert.Contains(t, summary.String(), "  WRITTEN:  1\n")
}
