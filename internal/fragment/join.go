package fragment

import (
	"fmt"
)

// JoinResult is the reassembled payload plus the indices that were absent.
// Absent fragments are skipped, not zero-filled, so Data is gapped when
// Skipped is non-empty.
type JoinResult struct {
	Data    []byte
	Skipped []uint32
}

// Join concatenates fragment payloads in index order over 0..total-1.
// It fails with ErrTooManyMissing when the number of absent indices exceeds
// maxMissingRatio*total.
func Join(frags map[uint32]Fragment, total uint32, maxMissingRatio float64) (JoinResult, error) {
	var skipped []uint32
	size := 0
	for i := uint32(0); i < total; i++ {
		f, ok := frags[i]
		if !ok {
			skipped = append(skipped, i)
			continue
		}
		size += len(f.Payload)
	}

	if float64(len(skipped)) > maxMissingRatio*float64(total) {
		return JoinResult{Skipped: skipped}, fmt.Errorf("%w: %d of %d absent (tolerance %.2f)",
			ErrTooManyMissing, len(skipped), total, maxMissingRatio)
	}

	data := make([]byte, 0, size)
	for i := uint32(0); i < total; i++ {
		if f, ok := frags[i]; ok {
			data = append(data, f.Payload...)
		}
	}
	return JoinResult{Data: data, Skipped: skipped}, nil
}
