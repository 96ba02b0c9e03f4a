package docstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaths_Layout(t *testing.T) {
	p := NewPaths("school-1")

	require.Equal(t, "artifacts/school-1/public/data/config/main", p.Config())
	require.Equal(t, "artifacts/school-1/public/data/students", p.Students())
	require.Equal(t, "artifacts/school-1/public/data/attendance", p.Attendance())
	require.Equal(t, "artifacts/school-1/public/data/leaves", p.Leaves())
	require.Equal(t, "artifacts/school-1/public/data/leaves/s1_42", p.Doc(CollectionLeaves, "s1_42"))
	require.Equal(t, "artifacts/school-1/public/data/students/s9", p.Student("s9"))
}

func TestSplitDoc(t *testing.T) {
	coll, id, err := SplitDoc("/artifacts/a/public/data/students/s1/")
	require.NoError(t, err)
	require.Equal(t, "artifacts/a/public/data/students", coll)
	require.Equal(t, "s1", id)

	for _, bad := range []string{"", "/", "students", "a/b/c", "a//b", "a/../b/c", "artifacts/a/public/data/students/x/y"} {
		_, _, err := SplitDoc(bad)
		require.Truef(t, errors.Is(err, ErrInvalidPath), "expected invalid path for %q, got %v", bad, err)
	}
}

func TestCleanCollection(t *testing.T) {
	coll, err := CleanCollection("artifacts/a/public/data/students/")
	require.NoError(t, err)
	require.Equal(t, "artifacts/a/public/data/students", coll)

	_, err = CleanCollection("artifacts/a/public/data/config/main")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestCode(t *testing.T) {
	require.Equal(t, "", Code(nil))
	require.Equal(t, "not-found", Code(ErrNotFound))
	require.Equal(t, "permission-denied", Code(errors.Join(errors.New("x"), ErrPermissionDenied)))
	require.Equal(t, "invalid-argument", Code(ErrInvalidPath))
	require.Equal(t, "unavailable", Code(ErrUnavailable))
	require.Equal(t, "unknown", Code(errors.New("boom")))

	require.ErrorIs(t, ErrorForCode("not-found"), ErrNotFound)
	require.Nil(t, ErrorForCode("unknown"))
}
