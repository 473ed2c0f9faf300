package sd

import (
	"fmt"
	"strings"

	"github.com/tvheim/epgdb/internal/domain"
)

type programPayload struct {
	ProgramID string `json:"programID"`
	MD5       string `json:"md5"`
	Titles    []struct {
		Title120 string `json:"title120"`
	} `json:"titles"`
	EpisodeTitle string `json:"episodeTitle150"`
	Descriptions struct {
		Description100  []localizedText `json:"description100"`
		Description1000 []localizedText `json:"description1000"`
	} `json:"descriptions"`
	Genres   []string                   `json:"genres"`
	Metadata []map[string]episodeCount `json:"metadata"`
	Cast []struct {
		Name          string `json:"name"`
		CharacterName string `json:"characterName"`
	} `json:"cast"`
	Crew []struct {
		Name string `json:"name"`
		Role string `json:"role"`
	} `json:"crew"`
	EntityType string `json:"entityType"`
	ShowType   string `json:"showType"`
	Movie      *struct {
		Year flexInt `json:"year"`
	} `json:"movie"`
}

type localizedText struct {
	Language string `json:"descriptionLanguage"`
	Text     string `json:"description"`
}

type episodeCount struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

// flattenProgram reduces a provider program payload to the cache's
// flat record form: preferred-language descriptions, tab-joined lists
// and a season/episode prefix on the episode title.
func flattenProgram(p programPayload, languages []string) domain.ProgramDetail {
	detail := domain.ProgramDetail{
		ProgramID:        p.ProgramID,
		MD5:              p.MD5,
		DescriptionShort: pickLocalized(p.Descriptions.Description100, languages),
		DescriptionLong:  pickLocalized(p.Descriptions.Description1000, languages),
		Genres:           joinList(p.Genres),
		EntityType:       p.EntityType,
		ShowType:         p.ShowType,
	}

	if len(p.Titles) > 0 {
		detail.Title = p.Titles[0].Title120
	}

	if p.EpisodeTitle != "" {
		detail.EpisodeTitle = p.EpisodeTitle
		if num := episodeNumber(p.Metadata); num != "" {
			detail.EpisodeTitle = num + ": " + p.EpisodeTitle
		}
	}

	var cast []string
	for _, c := range p.Cast {
		s := c.Name
		if c.CharacterName != "" {
			s += "|" + c.CharacterName
		}
		cast = append(cast, s)
	}
	detail.Cast = joinList(cast)

	var crew []string
	for _, c := range p.Crew {
		s := c.Name
		if c.Role != "" {
			s += "|" + c.Role
		}
		crew = append(crew, s)
	}
	detail.Crew = joinList(crew)

	if p.Movie != nil {
		detail.MovieYear = int(p.Movie.Year)
	}

	return detail
}

// pickLocalized selects the entry matching the configured language
// preference (exact or region-prefixed, e.g. "en" matches "en-GB"),
// falling back to English.
func pickLocalized(entries []localizedText, languages []string) string {
	englishFallback := ""

	for _, e := range entries {
		if e.Text == "" || e.Language == "" {
			continue
		}
		lang := strings.ToLower(e.Language)

		if lang == "en" || strings.HasPrefix(lang, "en-") {
			englishFallback = e.Text
		}

		for _, want := range languages {
			if lang == want || strings.HasPrefix(lang, want+"-") {
				return e.Text
			}
		}
	}

	return englishFallback
}

// episodeNumber extracts a "SxEE" string from the Gracenote metadata
// block, or "" when incomplete.
func episodeNumber(metadata []map[string]episodeCount) string {
	for _, item := range metadata {
		if g, ok := item["Gracenote"]; ok && g.Season != 0 && g.Episode != 0 {
			return fmt.Sprintf("%dx%02d", g.Season, g.Episode)
		}
	}
	return ""
}
