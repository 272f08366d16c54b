package document

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanAccess(t *testing.T) {
	open := &Document{ID: "d1"}
	require.True(t, open.CanAccess("anyone"))

	owned := &Document{ID: "d2", Owner: "alice", Collaborators: []string{"bob"}}
	require.True(t, owned.CanAccess("alice"))
	require.True(t, owned.CanAccess("bob"))
	require.False(t, owned.CanAccess("mallory"))
	require.False(t, owned.CanAccess(""))
}

func TestCloneDetachesCollaborators(t *testing.T) {
	d := &Document{ID: "d", Collaborators: []string{"a"}}
	c := d.Clone()
	c.Collaborators[0] = "b"
	require.Equal(t, "a", d.Collaborators[0])
}
