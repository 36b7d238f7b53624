// Package config implements the small persisted configuration document
// described in spec §6: per command category, the last-used destination
// root (and, for software lists, per-list destinations). It is adapted
// from the teacher's pkg/configuration/global, narrowed from mutagen's
// broad daemon/forwarding settings down to this tool's single concern,
// and using the same "load lazily, save on explicit mutation" contract.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/tuffy/emuman/pkg/rfs"
)

// Category identifies one of the CLI's command groups, per spec §6.
type Category string

const (
	Mame    Category = "mame"
	SL      Category = "sl"
	NoIntro Category = "nointro"
	Redump  Category = "redump"
	Extras  Category = "extras"
)

// categoryState is the persisted state for one category.
type categoryState struct {
	Root              string            `yaml:"root,omitempty"`
	SoftwareListRoots map[string]string `yaml:"software_list_roots,omitempty"`
}

// document is the on-disk shape of the configuration file: a
// self-describing key/value document per spec §6. A missing file means
// "not yet configured" for every category.
type document struct {
	Categories map[Category]*categoryState `yaml:"categories"`
}

// Store is the process-wide handle to the configuration file. It loads
// lazily on first access and is safe to share across a single
// command invocation (no concurrent writers in practice: the CLI layer
// mutates it only from the main goroutine, before or after the
// concurrent scan/plan/materialize phases).
type Store struct {
	path   string
	loaded bool
	doc    document
}

// init applies the optional .env development override, per the
// configuration section of the ambient stack: a .env file in the
// current directory may set EMUMAN_CONFIG_DIR to redirect the
// configuration file, which is convenient when iterating locally
// without touching a real home-directory config. Absence of .env is
// not an error.
func init() {
	_ = godotenv.Load()
}

// DefaultPath returns the configuration file's location: $HOME/.emuman.yml,
// unless overridden by EMUMAN_CONFIG_DIR (optionally set via .env, see
// init).
func DefaultPath() (string, error) {
	if dir := os.Getenv("EMUMAN_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, ".emuman.yml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to determine home directory")
	}
	return filepath.Join(home, ".emuman.yml"), nil
}

// New creates a Store backed by path. The file is not read until the
// first call that needs it.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	s.doc = document{Categories: map[Category]*categoryState{}}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.loaded = true
		return nil
	} else if err != nil {
		return errors.Wrapf(err, "unable to read configuration file %s", s.path)
	}

	if err := yaml.UnmarshalStrict(data, &s.doc); err != nil {
		return errors.Wrapf(err, "unable to parse configuration file %s", s.path)
	}
	if s.doc.Categories == nil {
		s.doc.Categories = map[Category]*categoryState{}
	}
	s.loaded = true
	return nil
}

func (s *Store) save() error {
	data, err := yaml.Marshal(&s.doc)
	if err != nil {
		return errors.Wrap(err, "unable to encode configuration")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrapf(err, "unable to create configuration directory for %s", s.path)
	}
	if err := rfs.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return errors.Wrapf(err, "unable to save configuration file %s", s.path)
	}
	return nil
}

func (s *Store) category(cat Category) (*categoryState, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	state, ok := s.doc.Categories[cat]
	if !ok {
		state = &categoryState{}
		s.doc.Categories[cat] = state
	}
	return state, nil
}

// Root returns the remembered destination root for cat, if any.
func (s *Store) Root(cat Category) (string, bool, error) {
	state, err := s.category(cat)
	if err != nil {
		return "", false, err
	}
	return state.Root, state.Root != "", nil
}

// SetRoot remembers root as the destination for cat and saves
// immediately, per the "saved on explicit mutation" contract.
func (s *Store) SetRoot(cat Category, root string) error {
	state, err := s.category(cat)
	if err != nil {
		return err
	}
	state.Root = root
	return s.save()
}

// SoftwareListRoot returns the remembered destination for one named
// software list (the sl category only).
func (s *Store) SoftwareListRoot(list string) (string, bool, error) {
	state, err := s.category(SL)
	if err != nil {
		return "", false, err
	}
	root, ok := state.SoftwareListRoots[list]
	return root, ok, nil
}

// SetSoftwareListRoot remembers root for the named software list and
// saves immediately.
func (s *Store) SetSoftwareListRoot(list, root string) error {
	state, err := s.category(SL)
	if err != nil {
		return err
	}
	if state.SoftwareListRoots == nil {
		state.SoftwareListRoots = map[string]string{}
	}
	state.SoftwareListRoots[list] = root
	return s.save()
}

// ResolveRoot implements spec §6's destination lookup order: explicit
// flag value, then the remembered value for cat, then the current
// working directory.
func ResolveRoot(explicit string, cat Category, s *Store) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if s != nil {
		if root, ok, err := s.Root(cat); err != nil {
			return "", err
		} else if ok {
			return root, nil
		}
	}
	return os.Getwd()
}
