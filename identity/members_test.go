package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func membersYAML(entries map[Identifier]string) string {
	out := "members:\n"
	for id, cluster := range entries {
		out += "  - identifier: " + string(id) + "\n    attributes:\n      cluster: " + cluster + "\n"
	}
	return out
}

func writeMembers(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestParseMembers(t *testing.T) {
	s := newAuthoritySetup(t)
	m, err := ParseMembers([]byte(membersYAML(map[Identifier]string{s.subject.Identifier(): "production"})))
	require.NoError(t, err)
	require.Len(t, m.Members, 1)
	assert.Equal(t, []Identifier{s.subject.Identifier()}, m.Identifiers())

	repo := NewRepository()
	m.Apply(repo)
	v, ok := repo.GetAttributeValue(s.subject.Identifier(), "cluster")
	require.True(t, ok)
	assert.Equal(t, "production", v)
}

func TestParseMembersErrors(t *testing.T) {
	s := newAuthoritySetup(t)

	_, err := ParseMembers([]byte("members: ["))
	assert.Error(t, err)

	_, err = ParseMembers([]byte("members:\n  - identifier: nope\n    attributes:\n      a: b\n"))
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = ParseMembers([]byte("members:\n  - identifier: " + string(s.subject.Identifier()) + "\n"))
	assert.ErrorIs(t, err, ErrNoAttributes)

	_, err = LoadMembers(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMembersWatcherReloads(t *testing.T) {
	s := newAuthoritySetup(t)
	path := filepath.Join(t.TempDir(), "members.yaml")
	writeMembers(t, path, membersYAML(map[Identifier]string{s.subject.Identifier(): "production"}))

	repo := NewRepository()
	w, err := NewMembersWatcher(path, repo, ldlog.NewDisabledLoggers())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	reloaded := make(chan *Members, 4)
	w.OnChange(func(m *Members) { reloaded <- m })
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	_, ok := repo.GetAttributes(s.subject.Identifier())
	require.True(t, ok)

	writeMembers(t, path, membersYAML(map[Identifier]string{s.authority.Identifier(): "staging"}))

	select {
	case m := <-reloaded:
		assert.Equal(t, []Identifier{s.authority.Identifier()}, m.Identifiers())
	case <-time.After(testTimeout):
		require.Fail(t, "members file was not reloaded")
	}

	_, ok = repo.GetAttributes(s.subject.Identifier())
	assert.False(t, ok)
	v, ok := repo.GetAttributeValue(s.authority.Identifier(), "cluster")
	require.True(t, ok)
	assert.Equal(t, "staging", v)
	assert.Equal(t, []Identifier{s.authority.Identifier()}, w.Members().Identifiers())
}

func TestMembersWatcherKeepsLastGoodFile(t *testing.T) {
	s := newAuthoritySetup(t)
	path := filepath.Join(t.TempDir(), "members.yaml")
	writeMembers(t, path, membersYAML(map[Identifier]string{s.subject.Identifier(): "production"}))

	repo := NewRepository()
	w, err := NewMembersWatcher(path, repo, ldlog.NewDisabledLoggers())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	writeMembers(t, path, "members: [")
	assert.Error(t, w.Reload())

	_, ok := repo.GetAttributes(s.subject.Identifier())
	assert.True(t, ok)
	assert.Equal(t, []Identifier{s.subject.Identifier()}, w.Members().Identifiers())
}
