package delivery

import (
	"context"
	"fmt"

	"soulmedia/internal/entity/db"
	"soulmedia/internal/ids"
	"soulmedia/internal/model"
)

// groupCatalogues is the fixed, ordered location catalogue per group.
// Order matters: the chooser walks it front to back.
var groupCatalogues = map[string][]string{
	"paris": {
		"eiffel_tower",
		"louvre",
		"montmartre",
		"pont_alexandre_iii",
		"notre_dame",
		"arc_de_triomphe",
		"champs_elysees",
		"sacre_coeur",
	},
	"tokyo": {
		"tokyo_tower",
		"skytree",
		"sensoji_temple",
		"shibuya_crossing",
		"harajuku",
		"ginza",
		"imperial_palace",
		"meiji_shrine",
	},
	"newyork": {
		"statue_of_liberty",
		"empire_state_building",
		"times_square",
		"central_park",
		"brooklyn_bridge",
		"wall_street",
		"high_line",
		"broadway",
	},
	"london": {
		"big_ben",
		"london_eye",
		"tower_bridge",
		"buckingham_palace",
		"westminster_abbey",
		"hyde_park",
		"covent_garden",
		"camden_market",
	},
	"rome": {
		"colosseum",
		"vatican",
		"trevi_fountain",
		"pantheon",
		"spanish_steps",
		"roman_forum",
		"sistine_chapel",
		"piazza_navona",
	},
}

var locationDescriptions = map[string]string{
	"eiffel_tower":          "Eiffel Tower with iron lattice structure",
	"louvre":                "Louvre Museum with glass pyramid",
	"montmartre":            "Montmartre hill with Sacré-Cœur",
	"pont_alexandre_iii":    "Pont Alexandre III bridge",
	"notre_dame":            "Notre-Dame Cathedral",
	"arc_de_triomphe":       "Arc de Triomphe monument",
	"champs_elysees":        "Champs-Élysées avenue",
	"sacre_coeur":           "Sacré-Cœur Basilica",
	"tokyo_tower":           "Tokyo Tower red and white structure",
	"skytree":               "Tokyo Skytree tower",
	"sensoji_temple":        "Sensō-ji Buddhist temple",
	"shibuya_crossing":      "Shibuya crossing intersection",
	"harajuku":              "Harajuku fashion district",
	"ginza":                 "Ginza shopping district",
	"imperial_palace":       "Imperial Palace gardens",
	"meiji_shrine":          "Meiji Shrine forest",
	"statue_of_liberty":     "Statue of Liberty monument",
	"empire_state_building": "Empire State Building skyscraper",
	"times_square":          "Times Square neon lights",
	"central_park":          "Central Park green space",
	"brooklyn_bridge":       "Brooklyn Bridge suspension",
	"wall_street":           "Wall Street financial district",
	"high_line":             "High Line elevated park",
	"broadway":              "Broadway theater district",
	"big_ben":               "Big Ben clock tower",
	"london_eye":            "London Eye ferris wheel",
	"tower_bridge":          "Tower Bridge bascule",
	"buckingham_palace":     "Buckingham Palace royal residence",
	"westminster_abbey":     "Westminster Abbey church",
	"hyde_park":             "Hyde Park green space",
	"covent_garden":         "Covent Garden market",
	"camden_market":         "Camden Market alternative",
	"colosseum":             "Colosseum ancient amphitheater",
	"vatican":               "Vatican City state",
	"trevi_fountain":        "Trevi Fountain baroque",
	"pantheon":              "Pantheon ancient temple",
	"spanish_steps":         "Spanish Steps staircase",
	"roman_forum":           "Roman Forum ruins",
	"sistine_chapel":        "Sistine Chapel ceiling",
	"piazza_navona":         "Piazza Navona square",
}

// PlaceChooser cycles a persona through a group's location catalogue:
// first unused in catalogue order, then least used once exhausted.
type PlaceChooser struct {
	repo model.Repository
}

// NewPlaceChooser creates a chooser over the built-in catalogues.
func NewPlaceChooser(repo model.Repository) *PlaceChooser {
	return &PlaceChooser{repo: repo}
}

// SupportsGroup reports whether a catalogue exists for the group.
func (p *PlaceChooser) SupportsGroup(group string) bool {
	_, ok := groupCatalogues[group]
	return ok
}

// GroupLocations returns the ordered catalogue for a group.
func (p *PlaceChooser) GroupLocations(group string) []string {
	return groupCatalogues[group]
}

// Description returns the prompt-ready description of a location,
// falling back to the key itself.
func (p *PlaceChooser) Description(location string) string {
	if desc, ok := locationDescriptions[location]; ok {
		return desc
	}
	return location
}

// Choose picks the next location for (persona, group, scope) and logs
// the pick.
func (p *PlaceChooser) Choose(ctx context.Context, personaID, group, scope string) (string, error) {
	catalogue, ok := groupCatalogues[group]
	if !ok {
		return "", &ValidationError{Field: "group", Reason: fmt.Sprintf("unsupported group %q", group)}
	}

	rows, err := p.repo.ListLocationUsage(ctx, personaID, group, scope)
	if err != nil {
		return "", fmt.Errorf("list location usage: %w", err)
	}
	usage := make(map[string]int64, len(rows))
	for _, row := range rows {
		usage[row.LocationID] = row.UseCount
	}

	var selected string
	for _, location := range catalogue {
		if _, used := usage[location]; !used {
			selected = location
			break
		}
	}
	if selected == "" {
		// Full catalogue exhausted: least used wins, catalogue order
		// breaks ties.
		var bestCount int64 = -1
		for _, location := range catalogue {
			if bestCount == -1 || usage[location] < bestCount {
				bestCount = usage[location]
				selected = location
			}
		}
	}

	if err := p.logUsage(ctx, personaID, group, selected, scope, usage[selected]); err != nil {
		return "", err
	}
	return selected, nil
}

func (p *PlaceChooser) logUsage(ctx context.Context, personaID, group, location, scope string, prevCount int64) error {
	now := ids.NowMillis()
	row := &db.LocationUsage{
		PersonaID:   personaID,
		GroupID:     group,
		LocationID:  location,
		Scope:       scope,
		UsedAtTS:    now,
		UseCount:    prevCount + 1,
		UpdatedAtTS: now,
	}
	if err := p.repo.UpsertLocationUsage(ctx, row); err != nil {
		return fmt.Errorf("log location usage: %w", err)
	}
	return nil
}
