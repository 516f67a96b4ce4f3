package models

// Store is a physical branch serving customers within its service radius.
type Store struct {
	BaseModel
	Name            string  `json:"name"`
	AddressLine     string  `json:"address_line"`
	City            string  `json:"city"`
	Province        string  `json:"province"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	ServiceRadiusKm float64 `json:"service_radius_km"`
	IsActive        bool    `gorm:"default:true" json:"is_active"`
}
