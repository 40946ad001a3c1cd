package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semstreams-fix/ledger"
	"github.com/c360/semstreams-fix/session"
)

func writeArchive(t *testing.T, dir string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "dictionaries.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for name, body := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(entry, body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func acceptAll(string) error { return nil }

func newLedger() *ledger.Ledger {
	return ledger.New(ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestValidateDictionaryName(t *testing.T) {
	for _, ok := range []string{"FIX.4.0.xml", "FIX.4.4.xml", "FIX.5.0.xml", "FIX.5.4.xml"} {
		assert.NoError(t, ValidateDictionaryName(ok), ok)
	}
	for _, bad := range []string{"FIX.6.0.xml", "FIX.4.5.xml", "FIXT.1.1.xml", "fix.4.4.xml", "FIX.4.4.XML", "dicts/FIX.4.4.xml", "FIX.4.4.xml.bak"} {
		err := ValidateDictionaryName(bad)
		assert.ErrorIs(t, err, ErrDictionaryName, bad)
	}
}

func TestExtractDictionaries(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, map[string]string{
		"FIX.4.4.xml": "<fix major='4' minor='4'/>",
		"FIX.4.2.xml": "<fix major='4' minor='2'/>",
	})
	out := t.TempDir()
	l := newLedger()

	files, err := ExtractDictionaries(archive, out, acceptAll, l)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 2, l.Len())

	byBegin := map[string]DictionaryFile{}
	for _, f := range files {
		byBegin[f.BeginString] = f
	}
	require.Contains(t, byBegin, "FIX.4.4")
	body, err := os.ReadFile(byBegin["FIX.4.4"].Path)
	require.NoError(t, err)
	assert.Equal(t, "<fix major='4' minor='4'/>", string(body))

	require.NoError(t, l.Teardown())
	assert.Empty(t, listDir(t, out))
}

func TestExtractDictionariesRejectsBadNameBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, map[string]string{
		"FIX.4.4.xml": "<fix/>",
		"readme.txt":  "hello",
	})
	out := t.TempDir()

	_, err := ExtractDictionaries(archive, out, acceptAll, newLedger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDictionaryName)
	assert.Contains(t, err.Error(), "readme.txt")
	assert.Empty(t, listDir(t, out))
}

func TestExtractDictionariesValidationFailure(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, map[string]string{"FIX.4.4.xml": "not xml"})
	l := newLedger()

	_, err := ExtractDictionaries(archive, t.TempDir(), func(string) error { return assert.AnError }, l)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, l.Len(), "file written before validation must still be registered")
}

func TestExtractDictionariesMissingArchive(t *testing.T) {
	_, err := ExtractDictionaries(filepath.Join(t.TempDir(), "absent.zip"), "", acceptAll, nil)
	assert.Error(t, err)
}

func validSettings() Settings {
	s := DefaultSettings()
	s.Sessions = []SessionSettings{
		sessionSettings("client1", "S", "T1"),
		sessionSettings("client2", "S", "T2"),
	}
	return s
}

func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, map[string]string{"FIX.4.4.xml": "<fix/>"})
	out := t.TempDir()
	l := newLedger()

	asm, err := Assemble(validSettings(), AssembleOptions{
		DictionaryArchive: archive,
		TempDir:           out,
		Validate:          acceptAll,
		Registrar:         l,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, asm.Registry.Len())
	id, err := asm.Registry.Resolve("client2")
	require.NoError(t, err)
	assert.Equal(t, "T2", id.TargetCompID)

	require.Contains(t, asm.Dictionaries, "FIX.4.4")
	assert.Contains(t, asm.ConfigText, "DataDictionary="+asm.Dictionaries["FIX.4.4"])

	written, err := os.ReadFile(asm.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, asm.ConfigText, string(written))
	assert.Regexp(t, `^config.*\.cfg$`, filepath.Base(asm.ConfigPath))
	assert.Equal(t, []string{"dictionary FIX.4.4.xml", "engine config"}, l.Names())

	require.NoError(t, l.Teardown())
	assert.Empty(t, listDir(t, out))
}

func TestAssembleDuplicateWritesNothing(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, map[string]string{"FIX.4.4.xml": "<fix/>"})
	out := t.TempDir()

	s := validSettings()
	s.Sessions[1].SessionAlias = "client1"

	_, err := Assemble(s, AssembleOptions{DictionaryArchive: archive, TempDir: out, Validate: acceptAll})
	require.Error(t, err)

	var asmErr *AssemblyError
	require.ErrorAs(t, err, &asmErr)
	assert.Equal(t, "sessions", asmErr.Stage)
	assert.ErrorIs(t, err, session.ErrDuplicateAlias)
	assert.Empty(t, listDir(t, out))
}

func TestAssembleDuplicateIdentity(t *testing.T) {
	s := validSettings()
	s.Sessions[1].TargetCompID = "T1"

	_, err := Assemble(s, AssembleOptions{Validate: acceptAll})
	assert.ErrorIs(t, err, session.ErrDuplicateIdentity)
}

func TestAssembleMissingDictionary(t *testing.T) {
	dir := t.TempDir()
	archive := writeArchive(t, dir, map[string]string{"FIX.4.2.xml": "<fix/>"})

	_, err := Assemble(validSettings(), AssembleOptions{
		DictionaryArchive: archive,
		TempDir:           t.TempDir(),
		Validate:          acceptAll,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoDictionary)
	assert.Contains(t, err.Error(), "FIX.4.4")
}

func TestAssembleInvalidSettings(t *testing.T) {
	s := validSettings()
	s.QueueCapacity = -1

	_, err := Assemble(s, AssembleOptions{})
	var asmErr *AssemblyError
	require.ErrorAs(t, err, &asmErr)
	assert.Equal(t, "settings", asmErr.Stage)
}

func TestWriteConfigFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing", "dir")

	_, err := writeConfig("[DEFAULT]\n", missing, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigWrite)
}
