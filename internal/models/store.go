package models

import "time"

// Store is one catalog target: a physical store whose ESL system
// must mirror product state. Timezone is an IANA name and drives
// all schedule computations for that store.
type Store struct {
	ID           int64     `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	ExternalCode string    `json:"external_code" yaml:"external_code"`
	Timezone     string    `json:"timezone" yaml:"timezone"`
	Active       bool      `json:"active" yaml:"active"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"-"`
}
