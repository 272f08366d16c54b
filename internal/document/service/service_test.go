package service

import (
	"context"
	"testing"

	"github.com/gogotex/gogotex/backend/go-collab/internal/document"
	"github.com/stretchr/testify/require"
)

func TestService_AccessControl(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	id, err := svc.Create(ctx, &document.Document{Title: "plan", Owner: "alice"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, id, "alice")
	require.NoError(t, err)
	_, err = svc.Get(ctx, id, "bob")
	require.ErrorIs(t, err, ErrNotFound)

	d, err := svc.AddCollaborator(ctx, id, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, d.Collaborators)

	_, err = svc.AddCollaborator(ctx, id, "alice", "bob")
	require.ErrorIs(t, err, ErrAlreadyCollaborator)
	_, err = svc.AddCollaborator(ctx, id, "bob", "carol")
	require.ErrorIs(t, err, ErrForbidden)

	title := "plan v2"
	upd, err := svc.Update(ctx, id, "bob", document.Patch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "plan v2", upd.Title)

	// collaborators may edit but only the owner deletes
	require.ErrorIs(t, svc.Delete(ctx, id, "bob"), ErrForbidden)

	_, err = svc.RemoveCollaborator(ctx, id, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Get(ctx, id, "bob")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(ctx, id, "alice"))
	_, err = svc.Get(ctx, id, "alice")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_CreateDefaultsToEmptyLog(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	id, err := svc.Create(ctx, &document.Document{})
	require.NoError(t, err)
	content, err := svc.Load(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "[]", content)
}

func TestService_LoadSave(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()

	_, err := svc.Load(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Save(ctx, "nope", `[{"insert":"hi"}]`, ""))
	content, err := svc.Load(ctx, "nope")
	require.NoError(t, err)
	require.Equal(t, `[{"insert":"hi"}]`, content)

	d, err := svc.Get(ctx, "nope", "")
	require.NoError(t, err)
	require.Equal(t, int64(1), d.Version)
}

func TestService_PatchBumpsVersion(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService()
	id, _ := svc.Create(ctx, &document.Document{})
	content := `["a"]`
	d, err := svc.Update(ctx, id, "", document.Patch{Content: &content})
	require.NoError(t, err)
	require.Equal(t, int64(1), d.Version)
	require.NoError(t, svc.Save(ctx, id, `["a","b"]`, ""))
	d, err = svc.Get(ctx, id, "")
	require.NoError(t, err)
	require.Equal(t, int64(2), d.Version)
}
