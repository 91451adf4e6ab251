package catalog

import (
	"strconv"
	"strings"

	"github.com/dimitrije/gamevault-api/internal/models"
)

type rawNamed struct {
	Name string `json:"name"`
}

type rawPlatform struct {
	Platform     rawNamed `json:"platform"`
	ReleasedAt   *string  `json:"released_at"`
	Requirements *struct {
		Minimum     *string `json:"minimum"`
		Recommended *string `json:"recommended"`
	} `json:"requirements"`
}

type rawStore struct {
	Store rawNamed `json:"store"`
	URL   string   `json:"url"`
}

type rawGame struct {
	ID              int                   `json:"id"`
	Name            string                `json:"name"`
	BackgroundImage *string               `json:"background_image"`
	Platforms       []rawPlatform         `json:"platforms"`
	Genres          []rawNamed            `json:"genres"`
	Rating          float64               `json:"rating"`
	Released        *string               `json:"released"`
	Metacritic      *int                  `json:"metacritic"`
	RatingsCount    *int                  `json:"ratings_count"`
	ReviewsCount    *int                  `json:"reviews_count"`
	ESRBRating      *rawNamed             `json:"esrb_rating"`
	DescriptionRaw  string                `json:"description_raw"`
	Website         *string               `json:"website"`
	MetacriticURL   *string               `json:"metacritic_url"`
	TBA             bool                  `json:"tba"`
	Ratings         []models.RatingBucket `json:"ratings"`
	Stores          []rawStore            `json:"stores"`
	Developers      []rawNamed            `json:"developers"`
	Publishers      []rawNamed            `json:"publishers"`
	Tags            []rawNamed            `json:"tags"`
}

type rawGamesPage struct {
	Count   int       `json:"count"`
	Results []rawGame `json:"results"`
}

type rawScreenshots struct {
	Results []struct {
		Image string `json:"image"`
	} `json:"results"`
}

// rating prefers the critic score, then the user score once it has more
// than ten votes.
func rating(g rawGame) float64 {
	if g.Metacritic != nil && *g.Metacritic != 0 {
		return float64(*g.Metacritic) / 10
	}
	if g.Rating != 0 && g.RatingsCount != nil && *g.RatingsCount > 10 {
		return g.Rating
	}
	return 0
}

func names(in []rawNamed) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		out = append(out, n.Name)
	}
	return out
}

func platformNames(in []rawPlatform) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, p.Platform.Name)
	}
	return out
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func toGame(g rawGame) models.Game {
	game := models.Game{
		ID:          strconv.Itoa(g.ID),
		Title:       g.Name,
		CoverURL:    nonEmpty(g.BackgroundImage),
		Platform:    strings.Join(platformNames(g.Platforms), ", "),
		Genre:       strings.Join(names(g.Genres), ", "),
		Rating:      rating(g),
		ReleaseDate: g.Released,
		Metacritic:  g.Metacritic,
		RatingCount: g.RatingsCount,
		ReviewCount: g.ReviewsCount,
	}
	if g.ESRBRating != nil {
		game.ESRBRating = &g.ESRBRating.Name
	}
	return game
}

func toGameDetails(g rawGame) models.GameDetails {
	d := models.GameDetails{
		ID:            strconv.Itoa(g.ID),
		Title:         g.Name,
		CoverURL:      nonEmpty(g.BackgroundImage),
		Description:   g.DescriptionRaw,
		Screenshots:   []string{},
		Platforms:     make([]models.PlatformRelease, 0, len(g.Platforms)),
		Genres:        names(g.Genres),
		Developers:    names(g.Developers),
		Publishers:    names(g.Publishers),
		Tags:          names(g.Tags),
		Ratings:       g.Ratings,
		Rating:        rating(g),
		ReleaseDate:   g.Released,
		Metacritic:    g.Metacritic,
		MetacriticURL: nonEmpty(g.MetacriticURL),
		Website:       nonEmpty(g.Website),
		TBA:           g.TBA,
	}
	for _, p := range g.Platforms {
		release := models.PlatformRelease{Platform: p.Platform.Name, ReleasedAt: p.ReleasedAt}
		if p.Requirements != nil {
			release.Minimum = p.Requirements.Minimum
			release.Recommended = p.Requirements.Recommended
		}
		d.Platforms = append(d.Platforms, release)
	}
	for _, s := range g.Stores {
		d.Stores = append(d.Stores, models.StoreLink{Store: s.Store.Name, URL: s.URL})
	}
	return d
}
