package domain

import "time"

// Product is the top of the product structure and owns an issue-key prefix.
// Code is nullable so an unconfigured product can be detected and surfaced
// as a configuration error rather than a broken key.
type Product struct {
	ID        string
	TenantID  string
	Name      string
	Code      *string
	CreatedAt time.Time
}

// Epic groups features under a product.
type Epic struct {
	ID        string
	TenantID  string
	ProductID string
	Name      string
	CreatedAt time.Time
}

// Feature is the unit development tasks attach to. The owning product is
// resolved by walking feature -> epic -> product.
type Feature struct {
	ID        string
	TenantID  string
	EpicID    string
	Name      string
	CreatedAt time.Time
}
