package entity

import "time"

// Project is a renovation project that owns attachments, invoices and a material catalog
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Material is an entry of a project's material catalog
type Material struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"projectId"`
	Name             string    `json:"name"`
	UnitType         UnitType  `json:"unitType"`
	DefaultUnitPrice float64   `json:"defaultUnitPrice"`
	CreatedAt        time.Time `json:"createdAt"`
}
