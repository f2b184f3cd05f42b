package relay

import "github.com/cespare/xxhash/v2"

var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8",
	"#f58231", "#911eb4", "#46f0f0", "#f032e6",
	"#bcf60c", "#fabebe", "#008080", "#e6beff",
	"#9a6324", "#800000", "#aaffc3", "#808000",
}

// colorFor maps a site id onto the palette. The same site always gets the
// same color, on every relay process.
func colorFor(site string) string {
	return palette[xxhash.Sum64String(site)%uint64(len(palette))]
}
