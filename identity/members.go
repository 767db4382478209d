package identity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"gopkg.in/yaml.v3"
)

// Member is an enrolled identity and the attributes an issuer attests
// about it.
type Member struct {
	Identifier Identifier        `yaml:"identifier"`
	Attributes map[string]string `yaml:"attributes"`
}

// Members is the enrollment list of a credential issuer.
type Members struct {
	Members []Member `yaml:"members"`
}

// LoadMembers reads and validates a members file.
func LoadMembers(path string) (*Members, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read members file: %w", err)
	}
	return ParseMembers(data)
}

// ParseMembers parses members YAML.
func ParseMembers(data []byte) (*Members, error) {
	var m Members
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse members: %w", err)
	}
	for i, member := range m.Members {
		if _, err := ParseIdentifier(string(member.Identifier)); err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		if len(member.Attributes) == 0 {
			return nil, fmt.Errorf("member %d (%s): %w", i, member.Identifier, ErrNoAttributes)
		}
	}
	return &m, nil
}

// Identifiers lists the enrolled identifiers in order.
func (m *Members) Identifiers() []Identifier {
	out := make([]Identifier, 0, len(m.Members))
	for _, member := range m.Members {
		out = append(out, member.Identifier)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Apply stores the attributes of every member in repo.
func (m *Members) Apply(repo *Repository) {
	for _, member := range m.Members {
		repo.PutAttributes(member.Identifier, Attributes(member.Attributes), time.Time{})
	}
}

// MembersChangeCallback is called after the members file was applied again.
type MembersChangeCallback func(members *Members)

// MembersWatcher keeps a repository in sync with a members file.
type MembersWatcher struct {
	path     string
	repo     *Repository
	loggers  ldlog.Loggers
	debounce time.Duration

	mu       sync.Mutex
	current  *Members
	callback MembersChangeCallback

	fsWatcher *fsnotify.Watcher
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewMembersWatcher loads path, applies it to repo and prepares a watcher.
// Call Start to follow changes.
func NewMembersWatcher(path string, repo *Repository, loggers ldlog.Loggers) (*MembersWatcher, error) {
	members, err := LoadMembers(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file system watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &MembersWatcher{
		path:      filepath.Clean(path),
		repo:      repo,
		loggers:   loggers,
		debounce:  100 * time.Millisecond,
		current:   members,
		fsWatcher: fsWatcher,
		ctx:       ctx,
		cancel:    cancel,
	}
	members.Apply(repo)
	return w, nil
}

// OnChange registers a callback run after each successful reload.
func (w *MembersWatcher) OnChange(cb MembersChangeCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callback = cb
}

// Members returns the last applied members list.
func (w *MembersWatcher) Members() *Members {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Name implements bootstrap.Service.
func (w *MembersWatcher) Name() string { return "members-watcher" }

// Start watches the directory of the members file, so that files replaced
// by rename are noticed too.
func (w *MembersWatcher) Start(context.Context) error {
	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch members file: %w", err)
	}
	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop stops watching.
func (w *MembersWatcher) Stop(context.Context) error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// Reload reads the file again and applies it. Identifiers that are no
// longer listed lose their attributes.
func (w *MembersWatcher) Reload() error {
	members, err := LoadMembers(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	previous := w.current
	w.current = members
	cb := w.callback
	w.mu.Unlock()

	listed := make(map[Identifier]struct{}, len(members.Members))
	for _, m := range members.Members {
		listed[m.Identifier] = struct{}{}
	}
	for _, m := range previous.Members {
		if _, ok := listed[m.Identifier]; !ok {
			w.repo.DeleteIdentity(m.Identifier)
		}
	}
	members.Apply(w.repo)

	w.loggers.Infof("Reloaded %d members from %s", len(members.Members), w.path)
	if cb != nil {
		cb(members)
	}
	return nil
}

func (w *MembersWatcher) watchLoop() {
	defer w.wg.Done()

	var debounceTimer *time.Timer
	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				if err := w.Reload(); err != nil {
					w.loggers.Warnf("Failed to reload members: %s", err)
				}
			})

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.loggers.Warnf("Members watcher error: %s", err)
		}
	}
}
