package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/atlasdata/econpipe/internal/model"
)

// JSONLedger persists runs and checkpoints in a single local JSON file,
// mirroring the shape used by the DynamoDB backend. Every mutation rewrites
// the whole file via write-temp-then-rename so a crash mid-write never
// leaves a truncated store behind.
type JSONLedger struct {
	path string
	mu   sync.Mutex
}

type jsonStore struct {
	Runs        []model.Run       `json:"runs"`
	Checkpoints map[string]string `json:"checkpoints"`
}

// NewJSON creates a JSON-file ledger at the given path. The file is created
// lazily on first write.
func NewJSON(path string) *JSONLedger {
	return &JSONLedger{path: path}
}

func (l *JSONLedger) load() (*jsonStore, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &jsonStore{Checkpoints: map[string]string{}}, nil
		}
		return nil, eris.Wrapf(err, "ledger: read %s", l.path)
	}

	var store jsonStore
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, eris.Wrapf(err, "ledger: metadata file %s is corrupted", l.path)
	}
	if store.Checkpoints == nil {
		store.Checkpoints = map[string]string{}
	}
	return &store, nil
}

func (l *JSONLedger) save(store *jsonStore) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return eris.Wrapf(err, "ledger: create dir for %s", l.path)
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return eris.Wrap(err, "ledger: marshal store")
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "ledger: write %s", tmp)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return eris.Wrapf(err, "ledger: replace %s", l.path)
	}
	return nil
}

func (l *JSONLedger) StartRun(_ context.Context, scope string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	store, err := l.load()
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	store.Runs = append(store.Runs, model.Run{
		ID:      id,
		Scope:   scope,
		StartTS: time.Now().UTC(),
		Status:  model.RunStatusRunning,
	})

	if err := l.save(store); err != nil {
		return "", err
	}
	return id, nil
}

func (l *JSONLedger) EndRun(_ context.Context, runID string, status model.RunStatus, opts EndRunOpts) (*model.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	store, err := l.load()
	if err != nil {
		return nil, err
	}

	var target *model.Run
	for i := len(store.Runs) - 1; i >= 0; i-- {
		if store.Runs[i].ID == runID {
			target = &store.Runs[i]
			break
		}
	}
	if target == nil {
		return nil, eris.Wrapf(ErrRunNotFound, "id=%s", runID)
	}

	now := time.Now().UTC()
	target.EndTS = &now
	target.Status = status
	if opts.RowsProcessed != nil {
		target.RowsProcessed = opts.RowsProcessed
	}
	if opts.LastCheckpoint != nil {
		target.LastCheckpoint = opts.LastCheckpoint
	}
	if opts.ErrorMessage != nil {
		target.ErrorMessage = opts.ErrorMessage
	}

	if err := l.save(store); err != nil {
		return nil, err
	}
	updated := *target
	return &updated, nil
}

func (l *JSONLedger) SaveCheckpoint(_ context.Context, source, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	store, err := l.load()
	if err != nil {
		return err
	}
	store.Checkpoints[source] = value
	return l.save(store)
}

func (l *JSONLedger) LoadCheckpoint(_ context.Context, source, def string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	store, err := l.load()
	if err != nil {
		return "", err
	}
	if v, ok := store.Checkpoints[source]; ok {
		return v, nil
	}
	return def, nil
}

func (l *JSONLedger) ListCheckpoints(_ context.Context) ([]model.Checkpoint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	store, err := l.load()
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(store.Checkpoints))
	for source := range store.Checkpoints {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	checkpoints := make([]model.Checkpoint, 0, len(sources))
	for _, source := range sources {
		checkpoints = append(checkpoints, model.Checkpoint{Source: source, Value: store.Checkpoints[source]})
	}
	return checkpoints, nil
}

func (l *JSONLedger) ListRuns(_ context.Context, scope string) ([]model.Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	store, err := l.load()
	if err != nil {
		return nil, err
	}
	if scope == "" {
		return store.Runs, nil
	}

	var runs []model.Run
	for _, r := range store.Runs {
		if r.Scope == scope {
			runs = append(runs, r)
		}
	}
	return runs, nil
}

func (l *JSONLedger) LastRun(ctx context.Context, scope string) (*model.Run, error) {
	runs, err := l.ListRuns(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	last := runs[len(runs)-1]
	return &last, nil
}

func (l *JSONLedger) Close() error { return nil }
