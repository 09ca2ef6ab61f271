package transcribe

import (
	"slices"
	"strings"

	"mediabatch/internal/model"
)

// Reassemble orders chunk texts by index and joins them with single spaces.
// Unrecognized or failed chunks contribute an empty string at their position,
// so the result does not depend on completion order.
func Reassemble(itemID string, results []model.ChunkResult) model.Transcript {
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b model.ChunkResult) int {
		return a.Index - b.Index
	})
	parts := make([]string, len(ordered))
	for i, r := range ordered {
		if r.Status == model.ChunkOK {
			parts[i] = r.Text
		}
	}
	return model.Transcript{ItemID: itemID, Text: strings.Join(parts, " ")}
}
