package catalog

import (
	"strconv"
	"strings"

	"github.com/jmylchreest/cuedeck/internal/model"
)

// Lookup resolves a user-supplied reference to a cue. The reference may be a
// cue ID, a file path, a cue name (case-insensitive, first match wins) or a
// 1-based index into All(). Names win over indices, so a cue called "2" is
// reachable by name.
func (c *Catalog) Lookup(ref string) (model.Cue, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Cue{}, false
	}

	cues := c.All()

	if cue := LookupByID(cues, ref); cue != nil {
		return *cue, true
	}
	if cue, ok := c.Get(ref); ok {
		return cue, true
	}
	if cue := LookupByName(cues, ref); cue != nil {
		return *cue, true
	}
	if idx, err := strconv.Atoi(ref); err == nil {
		if cue := LookupByIndex(cues, idx); cue != nil {
			return *cue, true
		}
	}
	return model.Cue{}, false
}

// LookupByID finds a cue by its ID.
// Returns nil if not found.
func LookupByID(cues []model.Cue, id string) *model.Cue {
	for i := range cues {
		if cues[i].ID == id {
			return &cues[i]
		}
	}
	return nil
}

// LookupByIndex finds a cue by its index (1-based for user-friendliness).
// Returns nil if index is out of bounds.
func LookupByIndex(cues []model.Cue, index int) *model.Cue {
	idx := index - 1
	if idx < 0 || idx >= len(cues) {
		return nil
	}
	return &cues[idx]
}

// LookupByName finds the first cue whose name matches, ignoring case.
func LookupByName(cues []model.Cue, name string) *model.Cue {
	for i := range cues {
		if strings.EqualFold(cues[i].Name, name) {
			return &cues[i]
		}
	}
	return nil
}

// Search finds cues whose name or description contains term.
// Case-insensitive substring match.
func Search(cues []model.Cue, term string) []model.Cue {
	if term == "" {
		return cues
	}

	term = lower(term)
	var result []model.Cue
	for _, cue := range cues {
		if strings.Contains(lower(cue.Name), term) ||
			strings.Contains(lower(cue.Description), term) {
			result = append(result, cue)
		}
	}
	return result
}

func lower(s string) string {
	return strings.ToLower(s)
}
