package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_GitWithBranchAndProtocol(t *testing.T) {
	u, err := Parse("git://example.com/foo/bar.git;protocol=https;branch=main;name=foo", "fetch")
	require.NoError(t, err)
	assert.Equal(t, SchemeGit, u.Scheme.Kind)
	require.NotNil(t, u.Git)
	assert.Equal(t, "https", u.Git.Protocol)
	assert.Equal(t, "main", u.Git.Branch)
	assert.Equal(t, "foo", u.Git.Name)
	assert.Equal(t, "fetch", u.Operation)
}

func TestParse_GitSMNoBranch(t *testing.T) {
	u, err := Parse("gitsm://example.com/repo;nobranch=1;rev=abcdef", "fetch")
	require.NoError(t, err)
	require.NotNil(t, u.Git)
	assert.True(t, u.Git.NoBranch)
	assert.Equal(t, "abcdef", u.Git.Rev)
}

func TestParse_HTTPSWithChecksum(t *testing.T) {
	u, err := Parse("https://example.com/pkg-1.0.tar.gz;downloadfilename=pkg.tar.gz;sha256sum=deadbeef", "fetch")
	require.NoError(t, err)
	require.NotNil(t, u.HTTP)
	assert.Equal(t, "pkg.tar.gz", u.HTTP.DownloadFilename)
	assert.Equal(t, "deadbeef", u.Checksums["sha256sum"])
}

func TestParse_FileApplyAndStriplevel(t *testing.T) {
	u, err := Parse("file://fix-build.patch;apply=yes;striplevel=0", "patch")
	require.NoError(t, err)
	require.NotNil(t, u.File)
	assert.True(t, u.File.Apply)
	assert.Equal(t, 0, u.File.StripLevel)
}

func TestParse_UnknownSchemePreservesRaw(t *testing.T) {
	u, err := Parse("crate://crates.io/serde/1.0.0", "fetch")
	require.NoError(t, err)
	assert.Equal(t, SchemeOther, u.Scheme.Kind)
	assert.Equal(t, "crate", u.Scheme.Raw)
	assert.Equal(t, "crate", u.Scheme.String())
}

func TestParse_UnknownParametersPreservedGenerically(t *testing.T) {
	u, err := Parse("git://example.com/repo;somethingnew=value", "fetch")
	require.NoError(t, err)
	assert.Equal(t, "value", u.Parameters["somethingnew"])
}

func TestParse_NoSchemeIsError(t *testing.T) {
	_, err := Parse("not-a-uri-at-all", "fetch")
	require.Error(t, err)
}

func TestParse_EmptyIsError(t *testing.T) {
	_, err := Parse("", "fetch")
	require.Error(t, err)
	_, err = Parse("   ", "fetch")
	require.Error(t, err)
}

func TestParse_UnbalancedQuoteIsError(t *testing.T) {
	_, err := Parse(`git://example.com/repo;name="unterminated`, "fetch")
	require.Error(t, err)
}

func TestParseSemverHint_StripsEpochAndVcsSuffix(t *testing.T) {
	v, ok := ParseSemverHint("1:2.3.4+gitAUTOINC+abcdef12")
	require.True(t, ok)
	assert.Equal(t, "2.3.4", v.String())
}

func TestParseSemverHint_RejectsNonSemverPV(t *testing.T) {
	_, ok := ParseSemverHint("gitAUTOINC")
	assert.False(t, ok)
}

func TestParse_NeverPanics(t *testing.T) {
	inputs := []string{
		"", ";;;", "://", "git://", "a;b;c=", "=;=;=",
		"git://x;branch=;tag=;rev=",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			Parse(in, "fetch")
		})
	}
}
