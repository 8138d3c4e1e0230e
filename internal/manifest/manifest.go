// Package manifest builds the structured scene description consumed by the
// downstream video renderer.
//
// The JSON field names emitted here are a stable contract surface: the
// renderer addresses project, headline, scenes and captions by exactly these
// names.
package manifest

import "strings"

// DefaultLeadInSeconds is the offset before the first scene begins, leaving
// room for the opening headline.
const DefaultLeadInSeconds = 5.0

// labelHoldSeconds is how long a scene's source label stays on screen.
const labelHoldSeconds = 2.0

const manifestVersion = "1.0"

// RGB is an 8-bit color triple.
type RGB struct {
	R int `json:"r" toml:"r"`
	G int `json:"g" toml:"g"`
	B int `json:"b" toml:"b"`
}

// Project holds the top-level project metadata.
type Project struct {
	Name          string  `json:"name"`
	Version       string  `json:"version"`
	TotalDuration float64 `json:"totalDuration"`
}

// Logo describes the station logo overlay.
type Logo struct {
	File     string  `json:"file"               toml:"file"`
	Position string  `json:"position,omitempty" toml:"position"`
	Scale    float64 `json:"scale,omitempty"    toml:"scale"`
}

// HeadlineStyle holds the template-supplied headline presentation settings.
type HeadlineStyle struct {
	Font     string `json:"font,omitempty"     toml:"font"`
	Size     int    `json:"size,omitempty"     toml:"size"`
	Position string `json:"position,omitempty" toml:"position"`
}

// Headline is the rendered headline: template style plus the resolved text.
type Headline struct {
	HeadlineStyle

	Text      string `json:"text"`
	Alignment string `json:"alignment"`
	Color     RGB    `json:"color"`
}

// Speaker identifies the on-screen speaker label.
type Speaker struct {
	Name  string `json:"name"  toml:"name"`
	Title string `json:"title" toml:"title"`
}

// TextLine is a bare text overlay such as the credit or section label.
type TextLine struct {
	Text string `json:"text"`
}

// CaptionStyle holds the template-supplied caption presentation settings.
type CaptionStyle struct {
	Font     string `json:"font,omitempty"     toml:"font"`
	Size     int    `json:"size,omitempty"     toml:"size"`
	Position string `json:"position,omitempty" toml:"position"`
}

// Captions references the captions track artifact and its style.
type Captions struct {
	File  string       `json:"file"`
	Style CaptionStyle `json:"style"`
}

// Flags describes the country-flag strip overlay.
type Flags struct {
	Codes   []string `json:"codes"`
	Path    string   `json:"path"`
	Spacing int      `json:"spacing"`
}

// Label is the timed source label shown when a scene begins.
type Label struct {
	Text     string  `json:"text"`
	InPoint  float64 `json:"inPoint"`
	OutPoint float64 `json:"outPoint"`
}

// Content is the visual content of a scene with its display window.
type Content struct {
	Locator  string  `json:"locator"`
	InPoint  float64 `json:"inPoint"`
	OutPoint float64 `json:"outPoint"`
}

// Scene is the visual unit for one source article, laid out on the shared timeline.
type Scene struct {
	ID        string   `json:"id"`
	Source    string   `json:"source"`
	StartTime float64  `json:"startTime"`
	Duration  float64  `json:"duration"`
	Label     Label    `json:"label"`
	Content   Content  `json:"content"`
	Graphics  []string `json:"graphics"`
}

// Manifest is the full scene/timeline description for one generation.
type Manifest struct {
	Project      Project  `json:"project"`
	Logo         Logo     `json:"logo"`
	Headline     Headline `json:"headline"`
	SpeakerLabel Speaker  `json:"speakerLabel"`
	CreditLabel  TextLine `json:"creditLabel"`
	SectionLabel TextLine `json:"sectionLabel"`
	Captions     Captions `json:"captions"`
	Flags        Flags    `json:"flags"`
	Scenes       []Scene  `json:"scenes"`
}

// Template holds the presentation settings a manifest is built against.
type Template struct {
	Logo           Logo          `json:"logo"           toml:"logo"`
	Headline       HeadlineStyle `json:"headline"       toml:"headline"`
	DefaultSpeaker Speaker       `json:"defaultSpeaker" toml:"default_speaker"`
	SectionLabels  []string      `json:"sectionLabels"  toml:"section_labels"`
	CaptionsStyle  CaptionStyle  `json:"captionsStyle"  toml:"captions_style"`
}

// Source is one input article to lay out as a scene.
type Source struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Locator string `json:"locator,omitempty"`
}

// Params customizes a single Build call.
type Params struct {
	// GenerationID names the project and seeds default content locators.
	GenerationID string
	// Headline overrides the default headline derived from the narration.
	Headline string
	// CaptionsFile is the locator of the captions track artifact.
	CaptionsFile string
	// LeadInSeconds delays the first scene. Zero means DefaultLeadInSeconds.
	LeadInSeconds float64
}

// Build lays out one scene per source across totalDuration seconds, after the
// configured lead-in, contiguous and non-overlapping.
//
// An empty source list yields an empty scene list rather than an error; the
// renderer treats a scene-less manifest as a headline-only piece.
func Build(narration string, sources []Source, tpl Template, totalDuration float64, params Params) *Manifest {
	leadIn := params.LeadInSeconds
	if leadIn <= 0 {
		leadIn = DefaultLeadInSeconds
	}

	headline := params.Headline
	if headline == "" {
		headline = firstSentence(narration)
	}

	sectionLabel := ""
	if len(tpl.SectionLabels) > 0 {
		sectionLabel = tpl.SectionLabels[0]
	}

	built := &Manifest{
		Project: Project{
			Name:          "Script_" + shortID(params.GenerationID),
			Version:       manifestVersion,
			TotalDuration: totalDuration,
		},
		Logo: tpl.Logo,
		Headline: Headline{
			HeadlineStyle: tpl.Headline,
			Text:          headline,
			Alignment:     "left",
			Color:         RGB{R: 255, G: 255, B: 255},
		},
		SpeakerLabel: tpl.DefaultSpeaker,
		CreditLabel:  TextLine{Text: creditLine(sources)},
		SectionLabel: TextLine{Text: sectionLabel},
		Captions: Captions{
			File:  params.CaptionsFile,
			Style: tpl.CaptionsStyle,
		},
		Flags: Flags{
			Codes:   []string{},
			Path:    "assets/flags/",
			Spacing: 10,
		},
		Scenes: []Scene{},
	}

	perScene := totalDuration / float64(max(len(sources), 1))
	current := leadIn

	for _, source := range sources {
		locator := source.Locator
		if locator == "" {
			locator = source.ID + "_700x520.png"
		}

		built.Scenes = append(built.Scenes, Scene{
			ID:        source.ID,
			Source:    source.Label,
			StartTime: current,
			Duration:  perScene,
			Label: Label{
				Text:     source.Label,
				InPoint:  current,
				OutPoint: current + labelHoldSeconds,
			},
			Content: Content{
				Locator:  locator,
				InPoint:  current,
				OutPoint: current + perScene,
			},
			Graphics: []string{},
		})

		current += perScene
	}

	return built
}

// creditLine aggregates the unique source labels, order-stable by first
// occurrence, into the attribution overlay text.
func creditLine(sources []Source) string {
	seen := make(map[string]struct{}, len(sources))

	var labels []string

	for _, source := range sources {
		if _, ok := seen[source.Label]; ok {
			continue
		}

		seen[source.Label] = struct{}{}
		labels = append(labels, source.Label)
	}

	return "Sources: " + strings.Join(labels, ", ")
}

func firstSentence(narration string) string {
	head, _, _ := strings.Cut(narration, ".")

	return head
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}
