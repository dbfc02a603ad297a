package driver

import (
	"fmt"
	"path/filepath"
	"plugin"
	"sync"

	"golang.org/x/xerrors"
)

// Bakemain is the single entry point a driver plugin exposes (spec §4.3),
// whether statically registered in-process or loaded from a .so via the Go
// plugin package.
type Bakemain func(api *API) error

// Locator resolves a driver id to a loadable package path (the out-of-scope
// "package locator" collaborator of spec §6, kind=PACKAGE).
type Locator interface {
	Locate(packageID string, kind string) (string, error)
}

// LoadError wraps a driver-load failure per spec §7.
type LoadError struct {
	ID  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading driver %q: %v", e.ID, e.Err)
}
func (e *LoadError) Unwrap() error { return e.Err }

var registry = struct {
	sync.Mutex
	fns map[string]Bakemain
}{fns: make(map[string]Bakemain)}

// Register statically links a driver's Bakemain entry under id. This is the
// Go analogue of a driver compiled directly into the host binary, used by
// the bundled example drivers and by tests; it is checked before any
// out-of-tree .so lookup (see SPEC_FULL.md §3.1).
func Register(id string, fn Bakemain) {
	registry.Lock()
	defer registry.Unlock()
	registry.fns[id] = fn
}

func lookupRegistry(id string) (Bakemain, bool) {
	registry.Lock()
	defer registry.Unlock()
	fn, ok := registry.fns[id]
	return fn, ok
}

// cache is the process-lifetime driver cache keyed by id (spec §3: "process-
// lifetime singleton per id").
var cache = struct {
	sync.Mutex
	byID map[string]*Driver
}{byID: make(map[string]*Driver)}

// Loader resolves driver ids to running Driver instances.
type Loader struct {
	Locator Locator
}

// Load returns the cached Driver for id, loading and initialising it on
// first use (spec §4.3). A driver that fails to load is a hard error for
// any project that requires it.
func (l *Loader) Load(id string) (*Driver, error) {
	cache.Lock()
	if d, ok := cache.byID[id]; ok {
		cache.Unlock()
		return d, nil
	}
	cache.Unlock()

	bakemain, err := l.resolve(id)
	if err != nil {
		return nil, &LoadError{ID: id, Err: err}
	}

	d := &Driver{ID: id, byName: make(map[string]*Node)}
	api := newAPI(d)
	if err := bakemain(api); err != nil {
		return nil, &LoadError{ID: id, Err: xerrors.Errorf("bakemain: %w", err)}
	}
	if d.Impl.Init != nil {
		if err := d.Impl.Init(api); err != nil {
			return nil, &LoadError{ID: id, Err: xerrors.Errorf("init: %w", err)}
		}
	}
	if err := d.Validate(); err != nil {
		return nil, &LoadError{ID: id, Err: err}
	}

	cache.Lock()
	cache.byID[id] = d
	cache.Unlock()
	return d, nil
}

func (l *Loader) resolve(id string) (Bakemain, error) {
	if fn, ok := lookupRegistry(id); ok {
		return fn, nil
	}
	if l.Locator == nil {
		return nil, xerrors.Errorf("driver %q not registered and no package locator configured", id)
	}
	path, err := l.Locator.Locate(id, "PACKAGE")
	if err != nil {
		return nil, xerrors.Errorf("locating driver package: %w", err)
	}
	return loadPlugin(path, id)
}

// loadPlugin loads a driver from a .so built with `go build -buildmode=plugin`,
// looking up an exported "Bakemain" symbol matching the Bakemain signature.
// This is the Go stdlib analogue of spec §4.3's "locates the driver package,
// loads the library, resolves bakemain" dynamic-library loader collaborator.
func loadPlugin(path, id string) (Bakemain, error) {
	p, err := plugin.Open(filepath.Clean(path))
	if err != nil {
		return nil, xerrors.Errorf("plugin.Open(%q): %w", path, err)
	}
	sym, err := p.Lookup("Bakemain")
	if err != nil {
		return nil, xerrors.Errorf("driver %q: missing Bakemain entry point: %w", id, err)
	}
	fn, ok := sym.(func(*API) error)
	if !ok {
		return nil, xerrors.Errorf("driver %q: Bakemain has the wrong signature", id)
	}
	return Bakemain(fn), nil
}
