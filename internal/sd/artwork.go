package sd

import (
	"context"
	"net/http"
	"strings"

	"github.com/tvheim/epgdb/internal/domain"
)

// Artwork preference order: category first, then size. The provider
// groups assets by both; the first available preferred entry wins,
// otherwise whatever comes first in the payload.
var (
	preferredCategories = []string{"Iconic", "Banner-L1", "Cast Ensemble", "Cast in Character"}
	preferredSizes      = []string{"Md", "Sm", "Lg", "Xs", "Ms"}
)

// Artwork lookups use the program identifier truncated to 10
// characters: artwork is shared by all episodes of a show.
const shortProgramIDLen = 10

type artworkPayload struct {
	ProgramID string         `json:"programID"`
	Data      []artworkAsset `json:"data"`
}

type artworkAsset struct {
	URI      string  `json:"uri"`
	Category string  `json:"category"`
	Size     string  `json:"size"`
	Aspect   string  `json:"aspect"`
	Width    flexInt `json:"width"`
	Height   flexInt `json:"height"`
	Caption  *struct {
		Content string `json:"content"`
	} `json:"caption"`
}

// FetchArtworkLink returns the best-matching artwork link for a
// program, or (nil, nil) when the provider offers none.
func (c *Client) FetchArtworkLink(ctx context.Context, programID string) (*domain.ArtworkLink, error) {
	shortID := shortProgramID(programID)

	var resp []artworkPayload
	if err := c.call(ctx, http.MethodPost, "/metadata/programs", []string{shortID}, false, &resp); err != nil {
		return nil, err
	}

	for _, p := range resp {
		if p.ProgramID != shortID || len(p.Data) == 0 {
			continue
		}
		if link := c.bestArtwork(p.Data); link != nil {
			return link, nil
		}
	}

	return nil, nil
}

func shortProgramID(programID string) string {
	if len(programID) > shortProgramIDLen {
		return programID[:shortProgramIDLen]
	}
	return programID
}

func (c *Client) bestArtwork(assets []artworkAsset) *domain.ArtworkLink {
	// Group by category and size, keeping only assets that carry both.
	grouped := make(map[string]map[string][]artworkAsset)
	var categoryOrder, firstSizes []string
	for _, a := range assets {
		if a.Category == "" || a.Size == "" || a.URI == "" {
			continue
		}
		if grouped[a.Category] == nil {
			grouped[a.Category] = make(map[string][]artworkAsset)
			categoryOrder = append(categoryOrder, a.Category)
		}
		if len(grouped[a.Category][a.Size]) == 0 {
			firstSizes = append(firstSizes, a.Size)
		}
		grouped[a.Category][a.Size] = append(grouped[a.Category][a.Size], a)
	}
	if len(grouped) == 0 {
		return nil
	}

	category := bestMatch(categoryOrder, preferredCategories)

	var sizeOrder []string
	for size := range grouped[category] {
		sizeOrder = append(sizeOrder, size)
	}
	// Preserve payload order for the fallback pick.
	sizeOrder = orderedSubset(firstSizes, sizeOrder)
	size := bestMatch(sizeOrder, preferredSizes)

	asset := grouped[category][size][0]

	link := &domain.ArtworkLink{
		URI:    c.artworkURI(asset.URI),
		Aspect: asset.Aspect,
		Width:  int(asset.Width),
		Height: int(asset.Height),
	}
	if asset.Caption != nil {
		link.Caption = asset.Caption.Content
	}

	return link
}

// artworkURI completes relative asset URIs against the provider's
// image endpoint.
func (c *Client) artworkURI(uri string) string {
	if strings.HasPrefix(uri, "http:") || strings.HasPrefix(uri, "https:") {
		return uri
	}
	return c.baseURL + "/image/" + uri
}

// bestMatch returns the first preferred entry present in current, or
// the first current entry when none is.
func bestMatch(current, preferred []string) string {
	for _, want := range preferred {
		for _, have := range current {
			if have == want {
				return want
			}
		}
	}
	return current[0]
}

// orderedSubset filters candidates to those in subset, preserving
// candidate order.
func orderedSubset(candidates, subset []string) []string {
	var out []string
	for _, c := range candidates {
		for _, s := range subset {
			if c == s {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
