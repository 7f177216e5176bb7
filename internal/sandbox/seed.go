package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// DemoUsername and DemoPassword are the user account of DefaultSeed.
	DemoUsername = "demo"
	DemoPassword = "demo"
	// DemoClientID and DemoClientSecret are the client account of DefaultSeed.
	DemoClientID     = "sandbox"
	DemoClientSecret = "sandbox-secret"
)

// User is a username/password account.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Client is a machine-to-machine account.
type Client struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Seed is the initial sandbox state. Members may carry a nested "profile"
// object that becomes their stored profile.
type Seed struct {
	Users      []User           `yaml:"users"`
	Clients    []Client         `yaml:"clients"`
	Articles   []map[string]any `yaml:"articles"`
	FCTables   []map[string]any `yaml:"fctables"`
	Households []map[string]any `yaml:"households"`
	Members    []map[string]any `yaml:"members"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("sandbox: decode seed %s: %w", path, err)
	}
	return &seed, nil
}

// DefaultSeed has one demo user, one demo client and a few catalog entries.
func DefaultSeed() *Seed {
	return &Seed{
		Users:   []User{{Username: DemoUsername, Password: DemoPassword}},
		Clients: []Client{{ClientID: DemoClientID, ClientSecret: DemoClientSecret}},
		Articles: []map[string]any{
			{
				"urn":              "urn:article:mediterranean-diet",
				"title":            "The Mediterranean diet and cardiovascular health",
				"authors":          []any{"A. Trichopoulou"},
				"tags":             []any{"diet", "cardiology"},
				"publication_year": "2003",
			},
			{
				"urn":   "urn:article:food-waste",
				"title": "Household food waste in Europe",
				"tags":  []any{"sustainability"},
			},
		},
		FCTables: []map[string]any{
			{
				"urn":                   "urn:fctable:ciqual",
				"title":                 "CIQUAL",
				"compiling_institution": "ANSES",
				"number_of_entries":     3185,
			},
		},
	}
}

// Watcher reapplies a seed file to a store whenever the file changes.
type Watcher struct {
	path    string
	store   *Store
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchSeed applies the seed at path once, then keeps watching it. A reload
// that fails to parse keeps the previous state.
func WatchSeed(path string, store *Store, logger zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("sandbox: seed path: %w", err)
	}
	seed, err := LoadSeed(abs)
	if err != nil {
		return nil, err
	}
	store.Apply(seed)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("sandbox: create watcher: %w", err)
	}
	// Watch the directory; editors often replace the file on save.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("sandbox: watch %s: %w", abs, err)
	}
	w := &Watcher{path: abs, store: store, logger: logger, watcher: fw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	name := filepath.Base(w.path)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			seed, err := LoadSeed(w.path)
			if err != nil {
				w.logger.Error().Err(err).Str("path", w.path).Msg("seed reload failed, keeping old state")
				continue
			}
			w.store.Apply(seed)
			w.logger.Info().Str("path", w.path).Msg("seed reloaded")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("seed watcher error")
		case <-w.done:
			return
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return errors.New("sandbox: watcher already closed")
	default:
	}
	close(w.done)
	return w.watcher.Close()
}
