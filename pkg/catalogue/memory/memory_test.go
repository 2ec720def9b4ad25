package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/treewalk/pkg/catalogue"
)

var testStamp = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

func buildCatalogue(t *testing.T) *Catalogue {
	t.Helper()
	cat := New()
	require.NoError(t, cat.MkDir("disc/!foo"))
	require.NoError(t, cat.PutFile("disc/!foo/bar", catalogue.FileTypeText, 10, testStamp))
	require.NoError(t, cat.PutFile("disc/!foo/noob", catalogue.FileTypeData, 20, testStamp))
	require.NoError(t, cat.PutFile("disc/fee", catalogue.FileTypeText, 30, testStamp))
	require.NoError(t, cat.PutFile("disc/fi", catalogue.FileTypeText, 40, testStamp))
	require.NoError(t, cat.MkDir("disc/foo/fum"))
	require.NoError(t, cat.PutFile("disc/longname", catalogue.FileTypeObey, 50, testStamp))
	return cat
}

// readAll drains one directory through the Reader contract, growing the
// buffer on overflow the way the walker does.
func readAll(t *testing.T, cat *Catalogue, path, filter string, bufSize int) []catalogue.Entry {
	t.Helper()
	var out []catalogue.Entry
	buf := make([]byte, bufSize)
	cursor := catalogue.CursorStart
	for cursor != catalogue.CursorEnd {
		n, next, err := cat.Read(path, filter, buf, cursor)
		if catalogue.IsBufferTooSmall(err) {
			buf = make([]byte, 2*len(buf))
			continue
		}
		require.NoError(t, err)
		off := 0
		for i := 0; i < n; i++ {
			e, size, err := catalogue.ParseRecord(buf[off:])
			require.NoError(t, err)
			out = append(out, e)
			off += size
		}
		cursor = next
	}
	return out
}

func names(entries []catalogue.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestReadSortedListing(t *testing.T) {
	cat := buildCatalogue(t)

	entries := readAll(t, cat, "disc", "", 4096)
	assert.Equal(t, []string{"!foo", "fee", "fi", "foo", "longname"}, names(entries))

	assert.Equal(t, catalogue.ObjectDirectory, entries[0].Type)
	assert.Equal(t, catalogue.ObjectFile, entries[1].Type)

	fileType, stamp, stamped := catalogue.DecodeLoadExec(entries[1].Load, entries[1].Exec)
	require.True(t, stamped)
	assert.Equal(t, catalogue.FileTypeText, fileType)
	assert.Equal(t, testStamp, stamp.Time())
	assert.Equal(t, uint32(30), entries[1].Length)
}

func TestReadFilterAppliesToFilesOnly(t *testing.T) {
	cat := buildCatalogue(t)

	// Files must match the filter; directories are always delivered so
	// the walker can decide about descending into them.
	entries := readAll(t, cat, "disc", "*oo*", 4096)
	assert.Equal(t, []string{"!foo", "foo"}, names(entries))

	entries = readAll(t, cat, "disc/!foo", "*oo*", 4096)
	assert.Equal(t, []string{"noob"}, names(entries))

	// "fum" does not match but it is a directory, so it is delivered.
	entries = readAll(t, cat, "disc/foo", "*oo*", 4096)
	assert.Equal(t, []string{"fum"}, names(entries))
}

func TestReadErrors(t *testing.T) {
	cat := buildCatalogue(t)
	buf := make([]byte, 4096)

	t.Run("missing directory", func(t *testing.T) {
		_, _, err := cat.Read("disc/nowhere", "", buf, catalogue.CursorStart)
		assert.True(t, catalogue.IsNotFound(err))
	})

	t.Run("file is not a directory", func(t *testing.T) {
		_, cursor, err := cat.Read("disc/fee", "", buf, catalogue.CursorStart)
		var ce *catalogue.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, catalogue.ErrNotDirectory, ce.Code)
		assert.Equal(t, catalogue.CursorStart, cursor)
	})

	t.Run("read past end sentinel", func(t *testing.T) {
		_, _, err := cat.Read("disc", "", buf, catalogue.CursorEnd)
		var ce *catalogue.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, catalogue.ErrInvalidArgument, ce.Code)
	})

	t.Run("stale cursor", func(t *testing.T) {
		_, _, err := cat.Read("disc", "", buf, 99)
		var ce *catalogue.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, catalogue.ErrInvalidArgument, ce.Code)
	})
}

func TestReadBufferOverflow(t *testing.T) {
	cat := buildCatalogue(t)

	t.Run("no entry fits", func(t *testing.T) {
		buf := make([]byte, catalogue.RecordSize(4)-1)
		n, cursor, err := cat.Read("disc", "", buf, catalogue.CursorStart)
		assert.True(t, catalogue.IsBufferTooSmall(err))
		assert.Zero(t, n)
		// The cursor comes back unchanged so the caller can retry.
		assert.Equal(t, catalogue.CursorStart, cursor)
	})

	t.Run("partial batch fits", func(t *testing.T) {
		// Room for "!foo" and "fee" but not "fi".
		buf := make([]byte, catalogue.RecordSize(4)+catalogue.RecordSize(3))
		n, cursor, err := cat.Read("disc", "", buf, catalogue.CursorStart)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, uint32(2), cursor)

		n, cursor, err = cat.Read("disc", "", buf, cursor)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, uint32(4), cursor)
	})

	t.Run("tiny buffer still drains", func(t *testing.T) {
		entries := readAll(t, cat, "disc", "", 8)
		assert.Equal(t, []string{"!foo", "fee", "fi", "foo", "longname"}, names(entries))
	})
}

func TestReadBatchedCursor(t *testing.T) {
	cat := buildCatalogue(t)
	cat.SetMaxBatch(2)
	buf := make([]byte, 4096)

	n, cursor, err := cat.Read("disc", "", buf, catalogue.CursorStart)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, uint32(2), cursor)

	entries := readAll(t, cat, "disc", "", 4096)
	assert.Equal(t, []string{"!foo", "fee", "fi", "foo", "longname"}, names(entries))
}

func TestReadBatchFullyFiltered(t *testing.T) {
	// A batch can be filtered out entirely; the backend then reports zero
	// entries with a live cursor and the caller carries on.
	cat := New()
	require.NoError(t, cat.PutFile("disc/aaa", catalogue.FileTypeData, 1, testStamp))
	require.NoError(t, cat.PutFile("disc/bbb", catalogue.FileTypeData, 1, testStamp))
	require.NoError(t, cat.PutFile("disc/coo", catalogue.FileTypeData, 1, testStamp))
	cat.SetMaxBatch(2)

	buf := make([]byte, 4096)
	n, cursor, err := cat.Read("disc", "*oo*", buf, catalogue.CursorStart)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, uint32(2), cursor)
	assert.NotEqual(t, catalogue.CursorEnd, cursor)

	n, cursor, err = cat.Read("disc", "*oo*", buf, cursor)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, catalogue.CursorEnd, cursor)
}

func TestPutSemantics(t *testing.T) {
	cat := New()

	t.Run("parents created on demand", func(t *testing.T) {
		require.NoError(t, cat.PutFile("disc/a/b/c", catalogue.FileTypeData, 1, testStamp))
		entries := readAll(t, cat, "disc/a", "", 4096)
		assert.Equal(t, []string{"b"}, names(entries))
		assert.Equal(t, catalogue.ObjectDirectory, entries[0].Type)
	})

	t.Run("redeclaring a directory keeps children", func(t *testing.T) {
		require.NoError(t, cat.MkDir("disc/a/b"))
		entries := readAll(t, cat, "disc/a/b", "", 4096)
		assert.Equal(t, []string{"c"}, names(entries))
	})

	t.Run("file under a file fails", func(t *testing.T) {
		err := cat.PutFile("disc/a/b/c/d", catalogue.FileTypeData, 1, testStamp)
		var ce *catalogue.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, catalogue.ErrNotDirectory, ce.Code)
	})

	t.Run("empty path rejected", func(t *testing.T) {
		err := cat.MkDir("")
		var ce *catalogue.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, catalogue.ErrInvalidArgument, ce.Code)
	})
}
