package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tvheim/epgdb/internal/domain"
)

func sampleGroups() []StationListings {
	airtime := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC).Unix()

	return []StationListings{
		{
			Station: domain.Station{
				StationID: "S1",
				Name:      "One TV",
				Logo:      &domain.StationLogo{URI: "https://img/one.png", Width: 360, Height: 270},
			},
			Listings: []Listing{
				{
					Entry: domain.ScheduleEntry{
						StationID:       "S1",
						ProgramID:       "EP1",
						Airtime:         airtime,
						Duration:        3600,
						AudioProperties: "stereo",
						VideoProperties: "HDTV",
					},
					Program: domain.ProgramRecord{
						ProgramID:        "EP1",
						Title:            "Space Show",
						EpisodeTitle:     "2x05: The Landing",
						DescriptionShort: "Short.",
						DescriptionLong:  "The crew finally lands.",
						Genres:           "Science fiction\tDocumentary",
						Cast:             "Jane Doe|Captain\tJohn Roe",
						Crew:             "Sam Smith|Director\tAlex Poe|Screenwriter",
						EntityType:       "Episode",
					},
					Artwork: &domain.Artwork{URI: "https://img/ep1.jpg", Width: 480, Height: 720},
				},
				{
					Entry: domain.ScheduleEntry{
						StationID: "S1",
						ProgramID: "MV1",
						Airtime:   airtime + 3600,
						Duration:  7200,
					},
					Program: domain.ProgramRecord{
						ProgramID:  "MV1",
						Title:      "Old Movie",
						EntityType: "Movie",
						MovieYear:  1986,
					},
				},
			},
		},
	}
}

func TestWriteXMLTV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXMLTV(&buf, sampleGroups()))
	out := buf.String()

	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, out, `<channel id="One TV">`)
	assert.Contains(t, out, `<display-name lang="en">One TV</display-name>`)
	assert.Contains(t, out, `<icon src="https://img/one.png" width="360" height="270">`)

	assert.Contains(t, out, `start="20260301200000 +0000"`)
	assert.Contains(t, out, `stop="20260301210000 +0000"`)
	assert.Contains(t, out, `channel="One TV"`)
	assert.Contains(t, out, `<title lang="en">Space Show</title>`)
	assert.Contains(t, out, `<sub-title lang="en">2x05: The Landing</sub-title>`)
	assert.Contains(t, out, `<desc lang="en">The crew finally lands.</desc>`)

	assert.Contains(t, out, `<director>Sam Smith</director>`)
	assert.Contains(t, out, `<writer>Alex Poe</writer>`)
	assert.Contains(t, out, `<actor>Jane Doe (Captain)</actor>`)
	assert.Contains(t, out, `<actor>John Roe</actor>`)

	assert.Contains(t, out, `<category lang="en">Science fiction</category>`)
	assert.Contains(t, out, `<category lang="en">Documentary</category>`)
	assert.Contains(t, out, `<quality>HDTV</quality>`)
	assert.Contains(t, out, `<stereo>stereo</stereo>`)
	assert.Contains(t, out, `<icon src="https://img/ep1.jpg" width="480" height="720">`)

	// The movie carries its year, no credits and no properties.
	assert.Contains(t, out, `<date>1986</date>`)
}

func TestWriteXMLTVMergesRenamedChannels(t *testing.T) {
	groups := []StationListings{
		{Station: domain.Station{StationID: "S1", Name: "Same Name"}},
		{Station: domain.Station{StationID: "S2", Name: "Same Name"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXMLTV(&buf, groups))

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`<channel id="Same Name">`)))
}

func TestWriteXMLTVFallsBackToShortDescription(t *testing.T) {
	groups := []StationListings{
		{
			Station: domain.Station{StationID: "S1", Name: "One TV"},
			Listings: []Listing{
				{
					Entry:   domain.ScheduleEntry{Airtime: 1000, Duration: 60},
					Program: domain.ProgramRecord{Title: "Show", DescriptionShort: "Only short."},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXMLTV(&buf, groups))
	assert.Contains(t, buf.String(), `<desc lang="en">Only short.</desc>`)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleGroups()))
	out := buf.String()

	assert.Contains(t, out, "== One TV ==")
	assert.Contains(t, out, "Space Show (2x05: The Landing)")
	assert.Contains(t, out, "Old Movie")
	assert.Contains(t, out, "end\n")
}
