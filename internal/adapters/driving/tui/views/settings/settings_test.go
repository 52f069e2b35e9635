package settings

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/propest/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/propest/internal/core/services"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newView(t *testing.T) (*View, *services.SettingsService) {
	t.Helper()
	svc := services.NewSettingsService(memory.NewConfigStore())
	v := NewView(nil, svc)
	v, _ = v.Update(v.Init()())
	require.NoError(t, v.Err())
	return v, svc
}

func selectKey(t *testing.T, v *View, want string) *View {
	t.Helper()
	for i := 0; i < 50 && v.SelectedKey() != want; i++ {
		v, _ = v.Update(key("down"))
	}
	require.Equal(t, want, v.SelectedKey())
	return v
}

func TestView_ListsSettings(t *testing.T) {
	v, svc := newView(t)
	view := v.View()
	for _, k := range svc.Keys() {
		assert.Contains(t, view, k)
	}
	assert.Equal(t, svc.Keys()[0], v.SelectedKey())
	assert.Contains(t, view, "local")
}

func TestView_EditAndSave(t *testing.T) {
	v, svc := newView(t)
	v = selectKey(t, v, "backend.workers")

	v, _ = v.Update(key("e"))
	require.True(t, v.Editing())

	v.input.SetValue("6")
	v, cmd := v.Update(key("enter"))
	assert.False(t, v.Editing())
	require.NotNil(t, cmd)

	saved := cmd()
	assert.Equal(t, messages.SettingSaved{Key: "backend.workers"}, saved)

	v, cmd = v.Update(saved)
	require.NotNil(t, cmd)
	v, _ = v.Update(cmd())
	assert.Contains(t, v.View(), "Saved backend.workers")

	got, err := svc.Value("backend.workers")
	require.NoError(t, err)
	assert.Equal(t, "6", got)
}

func TestView_EditCancel(t *testing.T) {
	v, svc := newView(t)
	v = selectKey(t, v, "backend.workers")
	before, _ := svc.Value("backend.workers")

	v, _ = v.Update(key("e"))
	v.input.SetValue("99")
	v, cmd := v.Update(key("esc"))
	assert.Nil(t, cmd)
	assert.False(t, v.Editing())

	after, _ := svc.Value("backend.workers")
	assert.Equal(t, before, after)
}

func TestView_InvalidValue(t *testing.T) {
	v, _ := newView(t)
	v = selectKey(t, v, "backend.workers")

	v, _ = v.Update(key("e"))
	v.input.SetValue("many")
	_, cmd := v.Update(key("enter"))
	require.NotNil(t, cmd)
	v, _ = v.Update(cmd())
	require.Error(t, v.Err())
	assert.Contains(t, v.View(), "Error:")
}

func TestView_MasksSecrets(t *testing.T) {
	v, svc := newView(t)
	require.NoError(t, svc.Set("backend.token", "s3cret-token"))
	v, _ = v.Update(v.Init()())

	assert.NotContains(t, v.View(), "s3cret-token")
	assert.Contains(t, v.View(), secretMask)

	v = selectKey(t, v, "backend.token")
	v, _ = v.Update(key("e"))
	assert.True(t, v.input.Masked())
	assert.Empty(t, v.input.Value())
}

func TestView_Back(t *testing.T) {
	v, _ := newView(t)
	_, cmd := v.Update(key("esc"))
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}

func TestView_NilService(t *testing.T) {
	v := NewView(nil, nil)
	v, _ = v.Update(v.Init()())
	assert.Error(t, v.Err())
	assert.Empty(t, v.SelectedKey())
}

func TestView_Reset(t *testing.T) {
	v, _ := newView(t)
	v, _ = v.Update(key("e"))
	require.True(t, v.Editing())
	v.Reset()
	assert.False(t, v.Editing())
}

func TestView_EmptySecretKeepsCurrent(t *testing.T) {
	v, svc := newView(t)
	require.NoError(t, svc.Set("backend.token", "s3cret-token"))
	v = selectKey(t, v, "backend.token")

	v, _ = v.Update(key("e"))
	v, cmd := v.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.False(t, v.Editing())

	got, err := svc.Value("backend.token")
	require.NoError(t, err)
	assert.Equal(t, "s3cret-token", got)
}
