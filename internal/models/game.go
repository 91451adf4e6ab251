package models

// Game is the card-level metadata the catalog resolves for a game id.
type Game struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	CoverURL    *string `json:"cover_url"`
	Platform    string  `json:"platform"`
	Genre       string  `json:"genre"`
	Rating      float64 `json:"rating"`
	ReleaseDate *string `json:"release_date"`
	Metacritic  *int    `json:"metacritic,omitempty"`
	RatingCount *int    `json:"rating_count,omitempty"`
	ReviewCount *int    `json:"reviews_count,omitempty"`
	ESRBRating  *string `json:"esrb_rating,omitempty"`
}

type PlatformRelease struct {
	Platform    string  `json:"platform"`
	ReleasedAt  *string `json:"released_at,omitempty"`
	Minimum     *string `json:"minimum_requirements,omitempty"`
	Recommended *string `json:"recommended_requirements,omitempty"`
}

type StoreLink struct {
	Store string `json:"store"`
	URL   string `json:"url"`
}

type RatingBucket struct {
	ID      int     `json:"id"`
	Title   string  `json:"title"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// GameDetails is the full game page.
type GameDetails struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	CoverURL      *string           `json:"cover_url"`
	Description   string            `json:"description"`
	Screenshots   []string          `json:"screenshots"`
	Platforms     []PlatformRelease `json:"platforms"`
	Genres        []string          `json:"genres"`
	Developers    []string          `json:"developers"`
	Publishers    []string          `json:"publishers"`
	Tags          []string          `json:"tags,omitempty"`
	Stores        []StoreLink       `json:"stores,omitempty"`
	Ratings       []RatingBucket    `json:"ratings,omitempty"`
	Rating        float64           `json:"rating"`
	ReleaseDate   *string           `json:"release_date"`
	Metacritic    *int              `json:"metacritic,omitempty"`
	MetacriticURL *string           `json:"metacritic_url,omitempty"`
	Website       *string           `json:"website,omitempty"`
	TBA           bool              `json:"tba"`
}

type GamesPage struct {
	Results []Game `json:"results"`
	Count   int    `json:"count"`
}
