package devialet

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var sourceDisplayNames = map[string]string{
	"spotifyconnect": "Spotify Connect",
	"airplay2":       "AirPlay",
	"upnp":           "UPnP/DLNA",
	"optical":        "Optical",
	"opticaljack":    "Optical Jack",
	"line":           "Line In",
	"phono":          "Phono",
	"hdmi":           "HDMI",
	"raat":           "Roon Ready",
	"bluetooth":      "Bluetooth",
}

// Source types that can be playing but cannot be selected by id.
var unselectableSources = map[string]bool{
	"bluetooth": true,
	"raat":      true,
}

var titleCaser = cases.Title(language.English)

// SourceDisplayName returns the human name for a source type.
func SourceDisplayName(sourceType string) string {
	if sourceType == "" {
		return ""
	}
	if name, ok := sourceDisplayNames[strings.ToLower(sourceType)]; ok {
		return name
	}
	return titleCaser.String(sourceType)
}

// Selectable reports whether a source of this type can be chosen with
// SelectSource.
func Selectable(sourceType string) bool {
	return !unselectableSources[strings.ToLower(sourceType)]
}

// selectableSources converts a raw source list, dropping entries without
// an id and types that cannot be selected.
func selectableSources(raw *RawSourceList) []Source {
	if raw == nil {
		return []Source{}
	}
	out := make([]Source, 0, len(raw.Sources))
	for _, s := range raw.Sources {
		if s.SourceID == "" || !Selectable(s.Type) {
			continue
		}
		out = append(out, Source{
			ID:   s.SourceID,
			Type: s.Type,
			Name: SourceDisplayName(s.Type),
		})
	}
	return out
}
