// Package models defines core data structures for knowledge chunks, helper profiles and chat requests.
package models

import "time"

// TextChunk is a contiguous span of an ingested source document with its embedding.
// ChunkIndex is unique within (Source, Title).
type TextChunk struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	Source     string    `json:"source" bson:"source"`
	Title      string    `json:"title" bson:"title"`
	ChunkIndex int       `json:"chunk_index" bson:"chunkIndex"`
	Text       string    `json:"text" bson:"text"`
	Embedding  []float32 `json:"-" bson:"embedding"`
	CreatedAt  time.Time `json:"created_at" bson:"createdAt"`
}

// HelperProfile is a domestic helper listed in the catalog.
type HelperProfile struct {
	ID             string    `json:"id" bson:"_id,omitempty" yaml:"id,omitempty"`
	Name           string    `json:"name" bson:"name" yaml:"name"`
	Age            int       `json:"age" bson:"age" yaml:"age"`
	Nationality    string    `json:"nationality" bson:"nationality" yaml:"nationality"`
	Experience     int       `json:"experience" bson:"experience" yaml:"experience"`
	Skills         []string  `json:"skills" bson:"skills" yaml:"skills"`
	Availability   bool      `json:"availability" bson:"availability" yaml:"availability"`
	ExpectedSalary *int      `json:"expectedSalary,omitempty" bson:"expectedSalary,omitempty" yaml:"expected_salary,omitempty"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt" yaml:"-"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt" yaml:"-"`
}
