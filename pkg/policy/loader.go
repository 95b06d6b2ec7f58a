package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long Watch waits after the last change before
// reloading.
const DefaultDebounce = 500 * time.Millisecond

// Loader reads policies from .rego and .json files. Parsed files are cached
// by path until ClearCache or a watched change evicts them.
type Loader struct {
	logger   zerolog.Logger
	debounce time.Duration

	mu      sync.RWMutex
	parsed  map[string]Policy
	watcher *fsnotify.Watcher
}

// NewLoader returns a loader with the default debounce.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:   logger.With().Str("component", "policy-loader").Logger(),
		debounce: DefaultDebounce,
		parsed:   make(map[string]Policy),
	}
}

// SetDebounce changes the reload delay used by Watch. Non-positive values
// are ignored.
func (l *Loader) SetDebounce(d time.Duration) {
	if d > 0 {
		l.debounce = d
	}
}

func isPolicyFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".rego" || ext == ".json"
}

// LoadFromPaths loads every policy under paths. A path may name a file or a
// directory; directories are walked recursively and unreadable files in them
// are skipped with a warning. A missing path is an error.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var out []Policy
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("policy path %s: %w", root, err)
		}
		if !info.IsDir() {
			p, err := l.loadFromFile(ctx, root)
			if err != nil {
				return nil, fmt.Errorf("policy path %s: %w", root, err)
			}
			out = append(out, *p)
			continue
		}

		walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !isPolicyFile(path) {
				return err
			}
			p, err := l.loadFromFile(ctx, path)
			if err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Skipping policy file")
				return nil
			}
			out = append(out, *p)
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("policy path %s: %w", root, walkErr)
		}
	}

	l.logger.Info().Int("total", len(out)).Int("sources", len(paths)).Msg("Policies loaded from paths")
	return out, nil
}

// loadFromFile parses one policy file, serving repeated reads from cache.
func (l *Loader) loadFromFile(_ context.Context, path string) (*Policy, error) {
	l.mu.RLock()
	cached, ok := l.parsed[path]
	l.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Policy
	switch filepath.Ext(path) {
	case ".rego":
		p = l.policyFromRego(path, string(data))
	case ".json":
		if p, err = policyFromJSON(path, data); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%s is not a .rego or .json file", path)
	}

	l.mu.Lock()
	l.parsed[path] = p
	l.mu.Unlock()

	l.logger.Debug().Str("path", path).Str("policy", p.Name).Msg("Policy file parsed")
	return &p, nil
}

// policyFromRego names the policy after its file. The leading comment block
// supplies the description and an optional "# severity: <level>" line.
func (l *Loader) policyFromRego(path, source string) Policy {
	h := l.parseHeader(source)
	if h.severity == "" {
		h.severity = SeverityWarning
	}
	return Policy{
		Name:        strings.TrimSuffix(filepath.Base(path), ".rego"),
		Description: h.description,
		Rego:        source,
		Severity:    h.severity,
		Enabled:     true,
		Tags:        []string{},
		Source:      path,
	}
}

func policyFromJSON(path string, data []byte) (Policy, error) {
	p := Policy{Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse %s: %w", path, err)
	}
	switch {
	case p.Name == "":
		return Policy{}, fmt.Errorf("JSON policy %s has no name", path)
	case p.Rego == "":
		return Policy{}, fmt.Errorf("JSON policy %s has no rego source", p.Name)
	}
	if p.Severity == "" {
		p.Severity = SeverityWarning
	}
	p.Source = path
	return p, nil
}

type regoHeader struct {
	description string
	severity    Severity
}

// parseHeader reads the comment block before the first statement.
// "severity:" lines set the severity (first valid one wins) and are left out
// of the description, as are commented-out package clauses.
func (l *Loader) parseHeader(source string) regoHeader {
	var (
		h     regoHeader
		words []string
	)
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			break
		}
		comment := strings.TrimSpace(strings.TrimPrefix(line, "#"))
		if value, ok := strings.CutPrefix(comment, "severity:"); ok {
			sev := Severity(strings.ToLower(strings.TrimSpace(value)))
			switch {
			case !sev.Valid():
				l.logger.Warn().Str("severity", string(sev)).Msg("Ignoring unknown policy severity")
			case h.severity == "":
				h.severity = sev
			}
			continue
		}
		if comment == "" || strings.HasPrefix(comment, "package") {
			continue
		}
		words = append(words, comment)
	}
	h.description = strings.Join(words, " ")
	return h
}

// LoadBundle loads a JSON policy bundle. Every policy in the bundle gets the
// bundle file as its source.
func (l *Loader) LoadBundle(_ context.Context, path string) (*PolicyBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	var bundle PolicyBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}
	for i := range bundle.Policies {
		p := &bundle.Policies[i]
		if p.Severity == "" {
			p.Severity = SeverityWarning
		}
		p.Source = path
	}

	l.logger.Info().
		Str("bundle", bundle.Name).
		Str("version", bundle.Version).
		Int("policies", len(bundle.Policies)).
		Msg("Policy bundle loaded")
	return &bundle, nil
}

// Watch reloads paths after policy files change and hands the result to
// apply. Changes are debounced; the watch ends when ctx is done or
// StopWatching is called. Paths that cannot be watched are logged and
// skipped.
func (l *Loader) Watch(ctx context.Context, paths []string, apply func([]Policy) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy watcher: %w", err)
	}

	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || path == root {
				return w.Add(path)
			}
			return nil
		})
		if err != nil {
			l.logger.Warn().Err(err).Str("path", root).Msg("Cannot watch policy path")
		}
	}

	l.mu.Lock()
	l.watcher = w
	l.mu.Unlock()

	go l.watchLoop(ctx, w, paths, apply)

	l.logger.Info().Int("paths", len(paths)).Msg("Watching policy paths")
	return nil
}

func (l *Loader) watchLoop(ctx context.Context, w *fsnotify.Watcher, paths []string, apply func([]Policy) error) {
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	reload := func() {
		policies, err := l.LoadFromPaths(ctx, paths)
		if err == nil {
			err = apply(policies)
		}
		if err != nil {
			l.logger.Error().Err(err).Msg("Policy reload failed")
			return
		}
		l.logger.Info().Int("count", len(policies)).Msg("Policies reloaded")
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) || !isPolicyFile(ev.Name) {
				continue
			}
			l.logger.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("Policy file changed")

			l.mu.Lock()
			delete(l.parsed, ev.Name)
			l.mu.Unlock()

			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(l.debounce, reload)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Policy watcher error")
		}
	}
}

// StopWatching closes the watcher started by Watch, if any.
func (l *Loader) StopWatching() error {
	l.mu.Lock()
	w := l.watcher
	l.watcher = nil
	l.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

// ClearCache drops every parsed file.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.parsed = make(map[string]Policy)
	l.mu.Unlock()
	l.logger.Debug().Msg("Policy cache cleared")
}
