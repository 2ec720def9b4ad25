package walker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathBufferAppendUndo(t *testing.T) {
	var p pathBuffer
	require.NoError(t, p.init("disc", defaultAlloc))
	assert.Equal(t, "disc", p.string())
	assert.Equal(t, 4, p.len())

	require.NoError(t, p.appendSeparated('/', "!foo", defaultAlloc))
	assert.Equal(t, "disc/!foo", p.string())

	p.undo()
	assert.Equal(t, "disc", p.string())

	// Undo is single-level: a second undo without a new mutation is a no-op.
	p.undo()
	assert.Equal(t, "disc", p.string())
}

func TestPathBufferTruncateUndo(t *testing.T) {
	var p pathBuffer
	require.NoError(t, p.init("disc", defaultAlloc))
	require.NoError(t, p.appendSeparated('/', "!foo", defaultAlloc))
	require.NoError(t, p.appendSeparated('/', "bar", defaultAlloc))
	require.Equal(t, "disc/!foo/bar", p.string())

	// Truncation keeps the tail bytes in the backing array, so one undo
	// brings the full path back verbatim.
	p.truncate(4)
	assert.Equal(t, "disc", p.string())
	p.undo()
	assert.Equal(t, "disc/!foo/bar", p.string())

	// Truncating past the end is ignored.
	p.truncate(100)
	assert.Equal(t, "disc/!foo/bar", p.string())
}

func TestPathBufferSeparatorOnEmpty(t *testing.T) {
	var p pathBuffer
	require.NoError(t, p.init("", defaultAlloc))
	require.NoError(t, p.appendSeparated('/', "disc", defaultAlloc))
	assert.Equal(t, "disc", p.string())
}

func TestPathBufferFailedGrowth(t *testing.T) {
	var p pathBuffer
	require.NoError(t, p.init("disc", defaultAlloc))

	failing := func(size int) ([]byte, error) {
		return nil, errors.New("allocation refused")
	}
	err := p.appendSeparated('/', "component", failing)
	require.Error(t, err)
	assert.Equal(t, "disc", p.string(), "failed append must not change the path")
}

func TestPathBufferDestroy(t *testing.T) {
	var p pathBuffer
	require.NoError(t, p.init("disc", defaultAlloc))
	p.destroy()
	assert.Zero(t, p.len())
	assert.Equal(t, "", p.string())
}
