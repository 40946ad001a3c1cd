package config

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/c360/semstreams-fix/session"
)

// ErrConfigWrite is returned when the engine configuration cannot be written.
var ErrConfigWrite = stderrors.New("failed to write engine configuration")

// AssemblyError reports a setup failure that must abort startup.
type AssemblyError struct {
	Stage string
	Err   error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("config assembly (%s): %v", e.Stage, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Assembly is the frozen result of Assemble.
type Assembly struct {
	Settings     Settings
	Registry     *session.Registry
	Dictionaries map[string]string
	ConfigText   string
	ConfigPath   string
}

// AssembleOptions controls where and how files are produced.
type AssembleOptions struct {
	// DictionaryArchive is the zip of FIX dictionaries. Empty means no
	// dictionaries, which only succeeds if no session needs one.
	DictionaryArchive string
	// TempDir holds generated files. Empty uses os.TempDir.
	TempDir string
	// Validate checks each extracted dictionary. Nil uses ParseDictionary.
	Validate DictionaryValidator
	// Registrar receives removal actions for every generated file.
	Registrar Registrar
}

// Assemble validates settings, builds the session registry, extracts
// dictionaries, and writes the engine configuration file. Settings and
// duplicate checks run before any file is created.
func Assemble(s Settings, opts AssembleOptions) (*Assembly, error) {
	if err := s.Validate(); err != nil {
		return nil, &AssemblyError{Stage: "settings", Err: err}
	}

	registry, err := session.NewRegistry(s.Entries())
	if err != nil {
		return nil, &AssemblyError{Stage: "sessions", Err: err}
	}

	validate := opts.Validate
	if validate == nil {
		validate = ParseDictionary
	}

	dictionaries := make(map[string]string)
	if opts.DictionaryArchive != "" {
		files, err := ExtractDictionaries(opts.DictionaryArchive, opts.TempDir, validate, opts.Registrar)
		if err != nil {
			return nil, &AssemblyError{Stage: "dictionaries", Err: err}
		}
		for _, f := range files {
			dictionaries[f.BeginString] = f.Path
		}
	}

	for _, sess := range s.Sessions {
		if _, ok := dictionaries[sess.BeginString]; !ok {
			return nil, &AssemblyError{
				Stage: "dictionaries",
				Err:   fmt.Errorf("%w: %s", ErrNoDictionary, sess.BeginString),
			}
		}
	}

	text := Render(s, dictionaries)
	path, err := writeConfig(text, opts.TempDir, opts.Registrar)
	if err != nil {
		return nil, &AssemblyError{Stage: "write", Err: err}
	}

	return &Assembly{
		Settings:     s,
		Registry:     registry,
		Dictionaries: dictionaries,
		ConfigText:   text,
		ConfigPath:   path,
	}, nil
}

func writeConfig(text, dir string, reg Registrar) (string, error) {
	f, err := os.CreateTemp(dir, "config*.cfg")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}
	path := f.Name()
	if reg != nil {
		reg.Register("engine config", removeFile(path))
	}

	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}
	return path, nil
}
