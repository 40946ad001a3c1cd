package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/quickfixgo/quickfix/datadictionary"
)

// ErrDictionaryName is returned for an archive entry whose name is not a
// FIX version dictionary file name.
var ErrDictionaryName = stderrors.New("incorrect file name for FIX dictionary")

// ErrNoDictionary is returned when a session's BeginString has no dictionary.
var ErrNoDictionary = stderrors.New("no dictionary for")

var dictionaryName = regexp.MustCompile(`^FIX\.[4-5]\.[0-4]\.xml$`)

// DictionaryFile is a dictionary extracted from the archive.
type DictionaryFile struct {
	// Name is the archive entry name, e.g. FIX.4.4.xml.
	Name string
	// BeginString is the name without the .xml suffix.
	BeginString string
	// Path is the extracted temporary file.
	Path string
}

// ValidateDictionaryName reports whether an archive entry name is accepted.
func ValidateDictionaryName(name string) error {
	if !dictionaryName.MatchString(name) {
		return fmt.Errorf("%w: %s", ErrDictionaryName, name)
	}
	return nil
}

// DictionaryValidator checks that an extracted file is a usable dictionary.
type DictionaryValidator func(path string) error

// ParseDictionary validates a dictionary by parsing it with the engine.
func ParseDictionary(path string) error {
	_, err := datadictionary.Parse(path)
	return err
}

// Registrar records a release action. *ledger.Ledger satisfies it.
type Registrar interface {
	Register(name string, release func() error)
}

// ExtractDictionaries writes every entry of the zip archive at path to its
// own temporary file in dir. Every entry name is checked before anything is
// written, so a bad archive leaves no files behind. Each written file is
// registered for removal the moment it exists.
func ExtractDictionaries(path, dir string, validate DictionaryValidator, reg Registrar) ([]DictionaryFile, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary archive %s: %w", path, err)
	}
	defer archive.Close()

	var entries []*zip.File
	for _, f := range archive.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := ValidateDictionaryName(f.Name); err != nil {
			return nil, err
		}
		entries = append(entries, f)
	}

	files := make([]DictionaryFile, 0, len(entries))
	for _, f := range entries {
		out, err := extractEntry(f, dir, reg)
		if err != nil {
			return nil, err
		}
		if validate != nil {
			if err := validate(out); err != nil {
				return nil, fmt.Errorf("invalid dictionary %s: %w", f.Name, err)
			}
		}
		files = append(files, DictionaryFile{
			Name:        f.Name,
			BeginString: strings.TrimSuffix(f.Name, ".xml"),
			Path:        out,
		})
	}
	return files, nil
}

func extractEntry(f *zip.File, dir string, reg Registrar) (string, error) {
	src, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	prefix := strings.TrimSuffix(f.Name, ".xml")
	dst, err := os.CreateTemp(dir, prefix+"-*.xml")
	if err != nil {
		return "", fmt.Errorf("create dictionary file for %s: %w", f.Name, err)
	}
	name := dst.Name()
	if reg != nil {
		reg.Register("dictionary "+f.Name, removeFile(name))
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write dictionary file for %s: %w", f.Name, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close dictionary file for %s: %w", f.Name, err)
	}
	return name, nil
}

func removeFile(path string) func() error {
	return func() error {
		if err := os.Remove(path); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
}
