package fragment

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenFragments(t *testing.T) map[uint32]Fragment {
	t.Helper()
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	packages, err := Split(data, 10)
	require.NoError(t, err)
	require.Len(t, packages, 10)
	return parseAll(t, packages)
}

func TestJoin_MissingToleranceBoundary(t *testing.T) {
	t.Parallel()

	t.Run("three missing succeeds", func(t *testing.T) {
		t.Parallel()
		frags := tenFragments(t)
		delete(frags, 1)
		delete(frags, 4)
		delete(frags, 9)

		res, err := Join(frags, 10, 0.3)
		require.NoError(t, err)
		if diff := cmp.Diff([]uint32{1, 4, 9}, res.Skipped); diff != "" {
			t.Errorf("skipped mismatch (-want +got):\n%s", diff)
		}
		assert.Len(t, res.Data, 70)
		// gaps are skipped, not zero-filled: fragment 0 is followed by fragment 2
		assert.Equal(t, byte(9), res.Data[9])
		assert.Equal(t, byte(20), res.Data[10])
	})

	t.Run("four missing fails", func(t *testing.T) {
		t.Parallel()
		frags := tenFragments(t)
		for _, i := range []uint32{0, 2, 5, 7} {
			delete(frags, i)
		}

		res, err := Join(frags, 10, 0.3)
		require.ErrorIs(t, err, ErrTooManyMissing)
		assert.Equal(t, []uint32{0, 2, 5, 7}, res.Skipped)
		assert.Nil(t, res.Data)
	})
}

func TestJoin_ZeroTolerance(t *testing.T) {
	t.Parallel()
	frags := tenFragments(t)
	delete(frags, 3)
	_, err := Join(frags, 10, 0)
	assert.ErrorIs(t, err, ErrTooManyMissing)
}
