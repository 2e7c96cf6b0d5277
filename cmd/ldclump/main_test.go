package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/ldclump/internal/duckdb"
	"github.com/inodb/ldclump/internal/ld"
)

const testAssoc = "#CHROM\tBEGIN\tEND\tMARKER_ID\tNS\tPVALUE\tBETA\n" +
	"1\t1500\t1500\t1:1500_C/T\t1000\t1e-6\t0.2\n" +
	"1\t1000\t1000\t1:1000_A/G\t1000\t1e-10\t0.5\n" +
	"2\t500\t501\t2:500_AT/A\t1000\t1e-4\t-0.1\n" +
	"3\t100\t100\t3:100_G/C\t1000\tNA\tNA\n"

const testLD = " CHR_A         BP_A        SNP_A  CHR_B         BP_B        SNP_B           R2           DP\n" +
	"     1         1000          rs1      1         1500          rs2     0.853211     0.990000\n"

// setup isolates viper and the home directory, and writes the fixtures.
func setup(t *testing.T) (dir, assocPath, ldPath string) {
	t.Helper()
	viper.Reset()
	cfgFile, verbose = "", false
	t.Cleanup(viper.Reset)

	dir = t.TempDir()
	t.Setenv("HOME", dir)

	assocPath = filepath.Join(dir, "assoc.epacts")
	require.NoError(t, os.WriteFile(assocPath, []byte(testAssoc), 0644))
	ldPath = filepath.Join(dir, "ref.ld")
	require.NoError(t, os.WriteFile(ldPath, []byte(testLD), 0644))
	return dir, assocPath, ldPath
}

// capture redirects *stream to a temp file while fn runs and returns what
// was written.
func capture(t *testing.T, stream **os.File, fn func()) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stream")
	require.NoError(t, err)

	orig := *stream
	*stream = f
	defer func() { *stream = orig }()
	fn()

	require.NoError(t, f.Close())
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return string(data)
}

func TestRun_UsageErrors(t *testing.T) {
	_, assocPath, ldPath := setup(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing input", []string{"clump", "--ld-file", ldPath}},
		{"unknown command", []string{"bogus"}},
		{"bad flag value", []string{"clump", "--threshold", "abc", assocPath}},
		{"threshold out of range", []string{"clump", "--threshold", "1.5", "--ld-file", ldPath, assocPath}},
		{"no reference ld", []string{"clump", assocPath}},
		{"unknown config key", []string{"config", "set", "nope", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ExitUsage, run(tt.args))
		})
	}
}

func TestRun_MissingInputFile(t *testing.T) {
	dir, _, ldPath := setup(t)
	assert.Equal(t, ExitError, run([]string{"clump", "--ld-file", ldPath, filepath.Join(dir, "absent.epacts")}))
}

func TestRun_Clump(t *testing.T) {
	dir, assocPath, ldPath := setup(t)
	outPath := filepath.Join(dir, "clumped.tsv")
	failedPath := filepath.Join(dir, "failed.tsv")
	resultsPath := filepath.Join(dir, "results.duckdb")

	code := run([]string{"clump",
		"--ld-file", ldPath,
		"--no-color",
		"-o", outPath,
		"--failed", failedPath,
		"--results-db", resultsPath,
		assocPath,
	})
	require.Equal(t, ExitSuccess, code)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "#CHROM\tBEGIN\tEND\tMARKER_ID\tNS\tPVALUE\tBETA\tld_with\tld_with_values\tfailed_clump", lines[0])
	assert.Equal(t, "1\t1000\t1000\t1:1000_A/G\t1000\t1e-10\t0.5\t1:1500_C/T\t0.85\tpass", lines[1])
	assert.Equal(t, "2\t500\t501\t2:500_AT/A\t1000\t1e-4\t-0.1\t\t\tfail", lines[2])

	failed, err := os.ReadFile(failedPath)
	require.NoError(t, err)
	assert.Equal(t, "MARKER_ID\tCHROM\tPOS\n2:500_AT/A\t2\t500\n", string(failed))

	store, err := duckdb.Open(resultsPath)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, assocPath, runs[0].InputPath)
	assert.Equal(t, int64(2), runs[0].Seeds)
	assert.Equal(t, int64(1), runs[0].Failed)

	seed, found, err := store.LookupSeed(runs[0].ID, "1:1500_C/T")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1:1000_A/G", seed)
}

func TestRun_ClumpMaxPValue(t *testing.T) {
	dir, assocPath, ldPath := setup(t)
	outPath := filepath.Join(dir, "clumped.tsv")

	code := run([]string{"clump", "--ld-file", ldPath, "--max-pvalue", "1e-5", "-o", outPath, assocPath})
	require.Equal(t, ExitSuccess, code)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "2:500_AT/A")
	assert.Contains(t, string(out), "1:1000_A/G")
}

func TestRun_LoadLDThenClump(t *testing.T) {
	dir, assocPath, ldPath := setup(t)
	dbPath := filepath.Join(dir, "ref")
	outPath := filepath.Join(dir, "clumped.tsv")

	require.Equal(t, ExitSuccess, run([]string{"load-ld", "--db", dbPath, ldPath}))
	require.FileExists(t, dbPath+".duckdb")

	viper.Reset()
	require.Equal(t, ExitSuccess, run([]string{"clump", "--ld-db", dbPath, "-o", outPath, assocPath}))

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(out), "1:1500_C/T\t0.85\tpass")
}

func TestRun_ClumpMissingLDDatabase(t *testing.T) {
	dir, assocPath, _ := setup(t)
	dbPath := filepath.Join(dir, "typo", "ref.duckdb")

	assert.Equal(t, ExitError, run([]string{"clump", "--ld-db", dbPath, assocPath}))
	assert.NoDirExists(t, filepath.Join(dir, "typo"), "no database is created")
}

func TestRun_ClumpEmptyLDDatabase(t *testing.T) {
	dir, assocPath, _ := setup(t)
	dbPath := filepath.Join(dir, "empty.duckdb")
	store, err := ld.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	outPath := filepath.Join(dir, "clumped.tsv")
	assert.Equal(t, ExitError, run([]string{"clump", "--ld-db", dbPath, "-o", outPath, assocPath}))
	assert.NoFileExists(t, outPath)
}

func TestRun_ClumpWarnsOncePerFailure(t *testing.T) {
	dir, assocPath, ldPath := setup(t)
	outPath := filepath.Join(dir, "clumped.tsv")

	var code int
	stderr := capture(t, &os.Stderr, func() {
		code = run([]string{"clump", "--ld-file", ldPath, "--no-color", "-o", outPath, assocPath})
	})
	require.Equal(t, ExitSuccess, code)

	assert.Equal(t, 1, strings.Count(stderr, "could not calculate LD for variant 2:500_AT/A"))
	assert.Equal(t, 1, strings.Count(stderr, "skipping LD calculation for non-SNP variant 2:500_AT/A"))
	assert.Contains(t, stderr, "Warning: could not calculate LD for variant 2:500_AT/A at 2:500")
}

func TestRun_Runs(t *testing.T) {
	dir, assocPath, ldPath := setup(t)
	resultsPath := filepath.Join(dir, "results.duckdb")
	outPath := filepath.Join(dir, "clumped.tsv")

	require.Equal(t, ExitSuccess, run([]string{"clump", "--ld-file", ldPath,
		"-o", outPath, "--results-db", resultsPath, assocPath}))

	viper.Reset()
	var code int
	stdout := capture(t, &os.Stdout, func() {
		code = run([]string{"runs", "--results-db", resultsPath, "--lookup", "1:1500_C/T"})
	})
	require.Equal(t, ExitSuccess, code)

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"RUN", "CREATED", "INPUT", "THRESHOLD", "WINDOW", "SEEDS", "FAILED", "SEED"},
		strings.Fields(lines[0]))
	fields := strings.Fields(lines[1])
	require.Len(t, fields, 8)
	assert.Equal(t, assocPath, fields[2])
	assert.Equal(t, "0.1", fields[3])
	assert.Equal(t, "1000000", fields[4])
	assert.Equal(t, "2", fields[5])
	assert.Equal(t, "1", fields[6])
	assert.Equal(t, "1:1000_A/G", fields[7])

	viper.Reset()
	stdout = capture(t, &os.Stdout, func() {
		code = run([]string{"runs", "--results-db", resultsPath, "--lookup", "rs404"})
	})
	require.Equal(t, ExitSuccess, code)
	assert.True(t, strings.HasSuffix(strings.TrimRight(stdout, "\n"), "-"))

	viper.Reset()
	assert.Equal(t, ExitUsage, run([]string{"runs"}))
}

func TestRun_ConfigSet(t *testing.T) {
	dir, _, _ := setup(t)

	require.Equal(t, ExitSuccess, run([]string{"config", "set", "clump.threshold", "0.2"}))

	data, err := os.ReadFile(filepath.Join(dir, ".ldclump.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "threshold: 0.2")

	viper.Reset()
	require.Equal(t, ExitSuccess, run([]string{"config", "get", "clump.threshold"}))
	assert.Equal(t, 0.2, viper.GetFloat64("clump.threshold"))
}

func TestIsUsageError(t *testing.T) {
	assert.True(t, isUsageError(usageError{os.ErrInvalid}))
	assert.False(t, isUsageError(os.ErrInvalid))
}
