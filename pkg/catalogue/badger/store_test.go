package badger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/treewalk/pkg/catalogue"
	"github.com/marmos91/treewalk/pkg/walker"
)

var testStamp = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func populate(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.MkDir("disc/!foo"))
	require.NoError(t, s.PutFile("disc/!foo/bar", catalogue.FileTypeText, 10, testStamp))
	require.NoError(t, s.PutFile("disc/!foo/noob", catalogue.FileTypeData, 20, testStamp))
	require.NoError(t, s.PutFile("disc/fee", catalogue.FileTypeText, 30, testStamp))
	require.NoError(t, s.PutFile("disc/fi", catalogue.FileTypeText, 40, testStamp))
	require.NoError(t, s.MkDir("disc/foo/fum"))
	require.NoError(t, s.PutFile("disc/longname", catalogue.FileTypeObey, 50, testStamp))
}

func readNames(t *testing.T, s *Store, path, filter string) []string {
	t.Helper()
	var out []string
	buf := make([]byte, 4096)
	cursor := catalogue.CursorStart
	for cursor != catalogue.CursorEnd {
		n, next, err := s.Read(path, filter, buf, cursor)
		require.NoError(t, err)
		off := 0
		for i := 0; i < n; i++ {
			e, size, err := catalogue.ParseRecord(buf[off:])
			require.NoError(t, err)
			out = append(out, e.Name)
			off += size
		}
		cursor = next
	}
	return out
}

func TestStoreListing(t *testing.T) {
	s := openStore(t)
	populate(t, s)

	assert.Equal(t, []string{"!foo", "fee", "fi", "foo", "longname"}, readNames(t, s, "disc", ""))
	assert.Equal(t, []string{"bar", "noob"}, readNames(t, s, "disc/!foo", ""))
	assert.Empty(t, readNames(t, s, "disc/foo/fum", ""))
}

func TestStoreRoundTripsEntryWords(t *testing.T) {
	s := openStore(t)
	populate(t, s)

	buf := make([]byte, 4096)
	n, _, err := s.Read("disc/!foo", "", buf, catalogue.CursorStart)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	e, _, err := catalogue.ParseRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, "bar", e.Name)
	assert.Equal(t, catalogue.ObjectFile, e.Type)
	assert.Equal(t, uint32(10), e.Length)

	fileType, stamp, stamped := catalogue.DecodeLoadExec(e.Load, e.Exec)
	require.True(t, stamped)
	assert.Equal(t, catalogue.FileTypeText, fileType)
	assert.Equal(t, testStamp, stamp.Time())
}

func TestStoreFilter(t *testing.T) {
	s := openStore(t)
	populate(t, s)

	// Files are filtered, directories always delivered.
	assert.Equal(t, []string{"!foo", "foo"}, readNames(t, s, "disc", "*oo*"))
	assert.Equal(t, []string{"noob"}, readNames(t, s, "disc/!foo", "*oo*"))
}

func TestStoreSiblingPrefixesStayDisjoint(t *testing.T) {
	// "disc" and "disc2" share a key prefix; the scan separator must keep
	// their child ranges apart.
	s := openStore(t)
	require.NoError(t, s.PutFile("disc/one", catalogue.FileTypeData, 1, testStamp))
	require.NoError(t, s.PutFile("disc2/two", catalogue.FileTypeData, 1, testStamp))

	assert.Equal(t, []string{"one"}, readNames(t, s, "disc", ""))
	assert.Equal(t, []string{"two"}, readNames(t, s, "disc2", ""))
}

func TestStoreErrors(t *testing.T) {
	s := openStore(t)
	populate(t, s)
	buf := make([]byte, 4096)

	t.Run("missing directory", func(t *testing.T) {
		_, _, err := s.Read("disc/nowhere", "", buf, catalogue.CursorStart)
		assert.True(t, catalogue.IsNotFound(err))
	})

	t.Run("file is not a directory", func(t *testing.T) {
		_, _, err := s.Read("disc/fee", "", buf, catalogue.CursorStart)
		var ce *catalogue.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, catalogue.ErrNotDirectory, ce.Code)
	})

	t.Run("empty path", func(t *testing.T) {
		_, _, err := s.Read("", "", buf, catalogue.CursorStart)
		var ce *catalogue.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, catalogue.ErrInvalidArgument, ce.Code)
	})

	t.Run("file under a file", func(t *testing.T) {
		err := s.PutFile("disc/fee/sub", catalogue.FileTypeData, 1, testStamp)
		var ce *catalogue.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, catalogue.ErrNotDirectory, ce.Code)
	})

	t.Run("directory cannot become a file", func(t *testing.T) {
		err := s.PutFile("disc/!foo", catalogue.FileTypeData, 1, testStamp)
		var ce *catalogue.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, catalogue.ErrInvalidArgument, ce.Code)
	})
}

func TestStoreRedeclareDirectoryKeepsChildren(t *testing.T) {
	s := openStore(t)
	populate(t, s)

	require.NoError(t, s.MkDir("disc/!foo"))
	assert.Equal(t, []string{"bar", "noob"}, readNames(t, s, "disc/!foo", ""))
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.PutFile("disc/keep", catalogue.FileTypeData, 7, testStamp))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, []string{"keep"}, readNames(t, s, "disc", ""))
}

func TestWalkStoredTree(t *testing.T) {
	s := openStore(t)
	populate(t, s)

	it, err := walker.New(s, "disc", walker.Options{Flags: walker.RecurseDirs})
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for !it.IsDrained() {
		got = append(got, it.SubPathString())
		require.NoError(t, it.Advance())
	}
	assert.Equal(t, []string{
		"!foo", "!foo/bar", "!foo/noob",
		"fee", "fi",
		"foo", "foo/fum",
		"longname",
	}, got)
}
