package entitlement

// Theme is a visual theme unlockable by subscription tier.
type Theme struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Colors      []string `json:"colors"`
	Tier        Tier     `json:"tier"`
}

// Catalog is the static, read-only theme catalog. Declaration order is the
// display and auto-apply order.
type Catalog struct {
	themes []Theme
	byID   map[string]Theme
}

// NewCatalog builds a catalog preserving the declaration order of themes.
func NewCatalog(themes []Theme) *Catalog {
	c := &Catalog{
		themes: themes,
		byID:   make(map[string]Theme, len(themes)),
	}
	for _, t := range themes {
		c.byID[t.ID] = t
	}
	return c
}

// Get returns the theme with the given id.
func (c *Catalog) Get(id string) (Theme, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// ThemesForTier returns every theme whose required tier is at or below the
// given tier, in declaration order. The result is monotone in the tier:
// yearly ⊇ monthly ⊇ free.
func (c *Catalog) ThemesForTier(tier Tier) []Theme {
	out := make([]Theme, 0, len(c.themes))
	for _, t := range c.themes {
		if tier.Includes(t.Tier) {
			out = append(out, t)
		}
	}
	return out
}

// NewlyUnlocked returns the themes available at newTier but not at oldTier,
// in declaration order.
func (c *Catalog) NewlyUnlocked(oldTier, newTier Tier) []Theme {
	old := make(map[string]bool)
	for _, t := range c.ThemesForTier(oldTier) {
		old[t.ID] = true
	}
	var out []Theme
	for _, t := range c.ThemesForTier(newTier) {
		if !old[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// DefaultCatalog returns the built-in theme set.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Theme{
		{ID: "light", Name: "Light", Description: "Clean and bright default theme",
			Colors: []string{"#ffffff", "#f8f9fa", "#e9ecef", "#dee2e6"}, Tier: TierFree},
		{ID: "dark", Name: "Dark", Description: "Easy on the eyes default dark theme",
			Colors: []string{"#1a1a1a", "#2d2d2d", "#404040", "#666666"}, Tier: TierFree},
		{ID: "midnight", Name: "Midnight", Description: "A deeper dark theme with blue and purple hues",
			Colors: []string{"#0f172a", "#1e293b", "#334155", "#94a3b8"}, Tier: TierMonthly},
		{ID: "retro-storm", Name: "Retro Storm", Description: "Inspired by old-school tech and CRT monitors",
			Colors: []string{"#0a0a0a", "#003300", "#00ff00", "#66ff66"}, Tier: TierMonthly},
		{ID: "crimson-moon", Name: "Crimson Moon", Description: "A red-toned dark theme with a moody aesthetic",
			Colors: []string{"#1a0505", "#2d0a0a", "#4a0f0f", "#8c1c1c"}, Tier: TierMonthly},
		{ID: "sunset", Name: "Sunset", Description: "Warm orange and pink gradient hues for a cozy feel",
			Colors: []string{"#7d2a2a", "#a73e3e", "#cf6a6a", "#f8a170"}, Tier: TierYearly},
		{ID: "forest", Name: "Forest", Description: "Earthy green theme, calming for long reading sessions",
			Colors: []string{"#0f2417", "#1e3a2f", "#2d5646", "#4a7c64"}, Tier: TierYearly},
		{ID: "amoled-dark", Name: "AMOLED Dark", Description: "Pure dark background for OLED screens",
			Colors: []string{"#000000", "#0a0a0a", "#1a1a1a", "#2a2a2a"}, Tier: TierYearly},
		{ID: "ocean-breeze", Name: "Ocean Breeze", Description: "Cool blue tones inspired by ocean waves",
			Colors: []string{"#0c4a6e", "#0369a1", "#0284c7", "#38bdf8"}, Tier: TierYearly},
		{ID: "golden-hour", Name: "Golden Hour", Description: "Warm golden tones perfect for evening reading",
			Colors: []string{"#451a03", "#92400e", "#d97706", "#fbbf24"}, Tier: TierYearly},
	})
}
