package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cuedeck/internal/model"
)

func lookupCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := New(nil, nil)
	require.NoError(t, c.Add(testCue(t, "Doorbell", "/cues/doorbell.wav")))
	require.NoError(t, c.Add(testCue(t, "Applause", "/cues/applause.mp3")))
	require.NoError(t, c.Add(testCue(t, "42", "/cues/42.wav")))
	require.NoError(t, c.Add(testCue(t, "3", "/cues/3.wav")))
	return c
}

func TestCatalog_Lookup(t *testing.T) {
	c := lookupCatalog(t)
	all := c.All()

	tests := []struct {
		name   string
		ref    string
		want   string
		wantOK bool
	}{
		{"index", "2", "Applause", true},
		{"index padded", " 1 ", "Doorbell", true},
		{"id", all[2].ID, "42", true},
		{"path", "/cues/applause.mp3", "Applause", true},
		{"name case-insensitive", "doorBELL", "Doorbell", true},
		{"name", "42", "42", true},
		{"name wins over index", "3", "3", true},
		{"unknown", "nothing", "", false},
		{"empty", "", "", false},
		{"zero index", "0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cue, ok := c.Lookup(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, cue.Name)
			}
		})
	}
}

func TestLookupByIndex(t *testing.T) {
	cues := []model.Cue{{Name: "a"}, {Name: "b"}}

	assert.Equal(t, "a", LookupByIndex(cues, 1).Name)
	assert.Equal(t, "b", LookupByIndex(cues, 2).Name)
	assert.Nil(t, LookupByIndex(cues, 0))
	assert.Nil(t, LookupByIndex(cues, 3))
	assert.Nil(t, LookupByIndex(nil, 1))
}

func TestSearch(t *testing.T) {
	cues := []model.Cue{
		{Name: "Big Applause", Description: "crowd"},
		{Name: "Bell", Description: "ding, applause-free"},
		{Name: "Horn"},
	}

	assert.Len(t, Search(cues, ""), 3)
	assert.Len(t, Search(cues, "APPLAUSE"), 2)
	assert.Len(t, Search(cues, "crowd"), 1)
	assert.Empty(t, Search(cues, "violin"))
}
