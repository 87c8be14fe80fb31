package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lftpnet/lftp/seqnum"
)

func TestInsertSortedMaintainsOrder(t *testing.T) {
	var buf []reorderEntry
	var ok bool

	buf, ok = insertSorted(buf, reorderEntry{seqNum: seqnum.Value(30)})
	assert.True(t, ok)
	buf, ok = insertSorted(buf, reorderEntry{seqNum: seqnum.Value(10)})
	assert.True(t, ok)
	buf, ok = insertSorted(buf, reorderEntry{seqNum: seqnum.Value(20)})
	assert.True(t, ok)

	if assert.Len(t, buf, 3) {
		assert.Equal(t, seqnum.Value(10), buf[0].seqNum)
		assert.Equal(t, seqnum.Value(20), buf[1].seqNum)
		assert.Equal(t, seqnum.Value(30), buf[2].seqNum)
	}
}

func TestInsertSortedDropsDuplicate(t *testing.T) {
	buf, _ := insertSorted(nil, reorderEntry{seqNum: seqnum.Value(10), payload: []byte("a")})
	buf, ok := insertSorted(buf, reorderEntry{seqNum: seqnum.Value(10), payload: []byte("b")})

	assert.False(t, ok)
	if assert.Len(t, buf, 1) {
		assert.Equal(t, []byte("a"), buf[0].payload)
	}
}

func TestInsertSortedHandlesWraparound(t *testing.T) {
	near := seqnum.Value(0xFFFFFFF0)
	wrapped := seqnum.Value(10)

	buf, _ := insertSorted(nil, reorderEntry{seqNum: wrapped})
	buf, ok := insertSorted(buf, reorderEntry{seqNum: near})

	assert.True(t, ok)
	if assert.Len(t, buf, 2) {
		assert.Equal(t, near, buf[0].seqNum)
		assert.Equal(t, wrapped, buf[1].seqNum)
	}
}
