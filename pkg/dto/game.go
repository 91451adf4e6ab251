package dto

import "github.com/dimitrije/gamevault-api/internal/models"

type GamesResponse struct {
	Results  []models.Game `json:"results"`
	Count    int           `json:"count"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

type DiscoverResponse struct {
	Results []models.Game `json:"results"`
}
