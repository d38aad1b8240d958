package engine

import (
	"strings"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

// Decompose expands a request into its ordered subtask list. Subtask
// indices are assigned once here and travel with every record derived
// from the subtask; nothing downstream may infer them from position.
func Decompose(mode model.TaskMode, names, locations []string) []model.SubTask {
	var subs []model.SubTask
	idx := 0

	add := func(name, location string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		subs = append(subs, model.SubTask{
			Index:    idx,
			Name:     name,
			Location: strings.TrimSpace(location),
		})
		idx++
	}

	if mode == model.ModeNameLocation && len(locations) > 0 {
		for _, n := range names {
			for _, l := range locations {
				add(n, l)
			}
		}
		return subs
	}

	for _, n := range names {
		add(n, "")
	}
	return subs
}
