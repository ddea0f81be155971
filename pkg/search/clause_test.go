package search

import (
	"testing"

	"github.com/cuemby/librarian/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFileSizeAndSource(t *testing.T) {
	pred, err := Compile(SchemaFile, `{"size-greater-than": 1000, "source-is-exactly": "correlator"}`)
	require.NoError(t, err)

	match := fileRecord(fileWithSize("a.uv", "correlator", 2000), 0, nil)
	noMatch := fileRecord(fileWithSize("b.uv", "correlator", 500), 0, nil)
	wrongSource := fileRecord(fileWithSize("c.uv", "other", 2000), 0, nil)

	ok, err := pred(match)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pred(noMatch)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = pred(wrongSource)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileSizeInRangeSwapsEndpoints(t *testing.T) {
	pred, err := Compile(SchemaFile, `{"size-in-range":[10,5]}`)
	require.NoError(t, err)

	inRange := fileRecord(fileWithSize("x", "s", 7), 0, nil)
	outOfRange := fileRecord(fileWithSize("y", "s", 20), 0, nil)

	ok, err := pred(inRange)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pred(outOfRange)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileNameMatchesLikePattern(t *testing.T) {
	pred, err := Compile(SchemaFile, `{"name-matches": "zen.%.uvh5"}`)
	require.NoError(t, err)

	ok, err := pred(fileRecord(fileWithSize("zen.2459000.1.uvh5", "s", 1), 0, nil))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pred(fileRecord(fileWithSize("cal.2459000.1.uvh5", "s", 1), 0, nil))
	require.NoError(t, err)
	assert.False(t, ok)

	// '%' matches any run but the rest of the pattern is anchored.
	ok, err = pred(fileRecord(fileWithSize("zen.2459000.1.uvh5.bak", "s", 1), 0, nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileUnknownClauseIsBadSearch(t *testing.T) {
	_, err := Compile(SchemaFile, `{"nonsense-clause": 1}`)
	require.Error(t, err)
}

func TestNormalizeIsStable(t *testing.T) {
	raw := "{\n  \"size-greater-than\": 1000, # commented\n  \"source-is-exactly\": \"correlator\"\n}"
	once, err := Normalize(raw)
	require.NoError(t, err)
	twice, err := Normalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	_, err = Compile(SchemaFile, once)
	require.NoError(t, err)
}

func TestCompileStripsHashComments(t *testing.T) {
	pred, err := Compile(SchemaFile, "{\n  \"always-true\": true # a comment\n}")
	require.NoError(t, err)

	ok, err := pred(fileRecord(fileWithSize("z", "s", 1), 0, nil))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileAlwaysFalseAndNoneOf(t *testing.T) {
	falsePred, err := Compile(SchemaFile, `{"always-false": true}`)
	require.NoError(t, err)
	ok, err := falsePred(fileRecord(fileWithSize("a", "s", 1), 0, nil))
	require.NoError(t, err)
	assert.False(t, ok)

	noneOf, err := Compile(SchemaFile, `{"none-of": {"always-true": true}}`)
	require.NoError(t, err)
	ok, err = noneOf(fileRecord(fileWithSize("a", "s", 1), 0, nil))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileObsidIsNull(t *testing.T) {
	pred, err := Compile(SchemaFile, `{"obsid-is-null": true}`)
	require.NoError(t, err)

	withObsid := fileRecord(withObsidFile("a", ptr(42)), 0, nil)
	withoutObsid := fileRecord(withObsidFile("b", nil), 0, nil)

	ok, err := pred(withObsid)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = pred(withoutObsid)
	require.NoError(t, err)
	assert.True(t, ok)
}

func fileWithSize(name, source string, size int64) types.File {
	return types.File{Name: name, Source: source, Size: size}
}

func withObsidFile(name string, obsid *int64) types.File {
	return types.File{Name: name, Obsid: obsid}
}
