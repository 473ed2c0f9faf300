package render

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tvheim/epgdb/internal/domain"
)

const xmltvTimeLayout = "20060102150405 +0000"

type xmltvDoc struct {
	XMLName       xml.Name         `xml:"tv"`
	GeneratorName string           `xml:"generator-info-name,attr"`
	Channels      []xmltvChannel   `xml:"channel"`
	Programmes    []xmltvProgramme `xml:"programme"`
}

type xmltvChannel struct {
	ID          string     `xml:"id,attr"`
	DisplayName xmltvText  `xml:"display-name"`
	Icon        *xmltvIcon `xml:"icon"`
}

type xmltvProgramme struct {
	Start    string        `xml:"start,attr"`
	Stop     string        `xml:"stop,attr"`
	Channel  string        `xml:"channel,attr"`
	Title    xmltvText     `xml:"title"`
	SubTitle *xmltvText    `xml:"sub-title"`
	Desc     *xmltvText    `xml:"desc"`
	Credits  *xmltvCredits `xml:"credits"`
	Date     string        `xml:"date,omitempty"`
	Category []xmltvText   `xml:"category"`
	Video    *xmltvVideo   `xml:"video"`
	Audio    *xmltvAudio   `xml:"audio"`
	Icon     *xmltvIcon    `xml:"icon"`
}

type xmltvText struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xmltvCredits struct {
	Directors []string `xml:"director"`
	Writers   []string `xml:"writer"`
	Producers []string `xml:"producer"`
	Actors    []string `xml:"actor"`
}

type xmltvVideo struct {
	Quality string `xml:"quality,omitempty"`
}

type xmltvAudio struct {
	Stereo string `xml:"stereo,omitempty"`
}

type xmltvIcon struct {
	Src    string `xml:"src,attr"`
	Width  int    `xml:"width,attr,omitempty"`
	Height int    `xml:"height,attr,omitempty"`
}

// WriteXMLTV renders the station groups as an XMLTV document. Stations
// renamed to the same display name share one channel element, so a
// rename can merge regional variants of the same channel.
func WriteXMLTV(w io.Writer, groups []StationListings) error {
	doc := xmltvDoc{GeneratorName: "epgdb"}

	seen := make(map[string]bool)
	for _, g := range groups {
		if !seen[g.Station.Name] {
			seen[g.Station.Name] = true
			ch := xmltvChannel{
				ID:          g.Station.Name,
				DisplayName: xmltvText{Lang: "en", Value: g.Station.Name},
			}
			if logo := g.Station.Logo; logo != nil && logo.URI != "" {
				ch.Icon = &xmltvIcon{Src: logo.URI, Width: logo.Width, Height: logo.Height}
			}
			doc.Channels = append(doc.Channels, ch)
		}

		for _, l := range g.Listings {
			doc.Programmes = append(doc.Programmes, programme(g.Station.Name, l))
		}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.Wrap(err, "failed to write document header")
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "failed to encode xmltv document")
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func programme(channel string, l Listing) xmltvProgramme {
	start := time.Unix(l.Entry.Airtime, 0).UTC()
	stop := start.Add(time.Duration(l.Entry.Duration) * time.Second)

	p := xmltvProgramme{
		Start:   start.Format(xmltvTimeLayout),
		Stop:    stop.Format(xmltvTimeLayout),
		Channel: channel,
		Title:   xmltvText{Lang: "en", Value: l.Program.Title},
	}

	if l.Program.EpisodeTitle != "" {
		p.SubTitle = &xmltvText{Lang: "en", Value: l.Program.EpisodeTitle}
	}

	if desc := pickDescription(l.Program); desc != "" {
		p.Desc = &xmltvText{Lang: "en", Value: desc}
	}

	p.Credits = credits(l.Program)

	if l.Program.EntityType == "Movie" && l.Program.MovieYear > 0 {
		p.Date = strconv.Itoa(l.Program.MovieYear)
	}

	for _, genre := range splitList(l.Program.Genres) {
		p.Category = append(p.Category, xmltvText{Lang: "en", Value: genre})
	}

	if quality := firstItem(l.Entry.VideoProperties); quality != "" {
		p.Video = &xmltvVideo{Quality: quality}
	}
	if stereo := firstItem(l.Entry.AudioProperties); stereo != "" {
		p.Audio = &xmltvAudio{Stereo: strings.ToLower(stereo)}
	}

	if l.Artwork != nil {
		p.Icon = &xmltvIcon{Src: l.Artwork.URI, Width: l.Artwork.Width, Height: l.Artwork.Height}
	}

	return p
}

func pickDescription(p domain.ProgramRecord) string {
	if p.DescriptionLong != "" {
		return p.DescriptionLong
	}
	return p.DescriptionShort
}

// credits maps crew roles onto XMLTV's fixed credit elements and
// formats cast entries as "name (character)".
func credits(p domain.ProgramRecord) *xmltvCredits {
	c := &xmltvCredits{}

	for _, entry := range splitList(p.Crew) {
		name, role := splitPair(entry)
		switch strings.ToLower(role) {
		case "director":
			c.Directors = append(c.Directors, name)
		case "writer", "screenwriter":
			c.Writers = append(c.Writers, name)
		case "producer", "executive producer":
			c.Producers = append(c.Producers, name)
		}
	}

	for _, entry := range splitList(p.Cast) {
		name, character := splitPair(entry)
		if character != "" {
			name = fmt.Sprintf("%s (%s)", name, character)
		}
		c.Actors = append(c.Actors, name)
	}

	if len(c.Directors) == 0 && len(c.Writers) == 0 && len(c.Producers) == 0 && len(c.Actors) == 0 {
		return nil
	}
	return c
}

// splitList splits a tab-joined cache field into its items.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\t")
}

// splitPair splits a "name|detail" item.
func splitPair(s string) (string, string) {
	name, detail, _ := strings.Cut(s, "|")
	return name, detail
}

func firstItem(s string) string {
	items := splitList(s)
	if len(items) == 0 {
		return ""
	}
	return items[0]
}
