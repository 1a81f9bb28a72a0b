package stages

import (
	"context"
	"sort"
)

// Sort orders the bundle's files for the artifact: by path, by size
// (largest first), or left in discovery order.
type Sort struct{}

func (s *Sort) StageName() string { return "sort" }

func (s *Sort) Process(ctx context.Context, value interface{}) (interface{}, error) {
	b, err := asBundle(value)
	if err != nil {
		return nil, err
	}

	switch b.Profile.SortBy {
	case "", "none":
	case "size":
		sort.SliceStable(b.Files, func(i, j int) bool {
			return b.Files[i].Size > b.Files[j].Size
		})
	default: // path
		sort.SliceStable(b.Files, func(i, j int) bool {
			return b.Files[i].RelPath < b.Files[j].RelPath
		})
	}
	return b, nil
}
