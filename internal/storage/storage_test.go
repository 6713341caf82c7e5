package storage

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/hyperjump/helpmate/internal/models"
)

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func fixtureHelpers() []*models.HelperProfile {
	return []*models.HelperProfile{
		{Name: "Siti", Age: 28, Nationality: "Indonesia", Experience: 5, Skills: []string{"Cooking", "Childcare"}, Availability: true, ExpectedSalary: intPtr(650)},
		{Name: "Maria", Age: 35, Nationality: "Philippines", Experience: 10, Skills: []string{"Elderly care", "Cooking"}, Availability: true, ExpectedSalary: intPtr(750)},
		{Name: "Dewi", Age: 24, Nationality: "Indonesian", Experience: 2, Skills: []string{"Cleaning", "cooking"}, Availability: false},
		{Name: "Aye", Age: 30, Nationality: "Myanmar", Experience: 4, Skills: []string{"Childcare"}, Availability: true, ExpectedSalary: intPtr(550)},
		{Name: "Nur", Age: 40, Nationality: "Indonesia", Experience: 12, Skills: []string{"Cooking"}, Availability: true, ExpectedSalary: intPtr(800)},
	}
}

func fixtureChunks(n int) []*models.TextChunk {
	chunks := make([]*models.TextChunk, n)
	for i := range chunks {
		chunks[i] = &models.TextChunk{Source: "pdf", Title: "Guide", ChunkIndex: i, Text: "chunk", Embedding: []float32{1, 0}}
	}
	return chunks
}

func names(helpers []*models.HelperProfile) []string {
	out := make([]string, len(helpers))
	for i, h := range helpers {
		out[i] = h.Name
	}
	sort.Strings(out)
	return out
}

func equalNames(got []*models.HelperProfile, want ...string) bool {
	g := names(got)
	sort.Strings(want)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

// runChunkStoreTests exercises the chunk lifecycle used by ingestion and the vector store.
func runChunkStoreTests(t *testing.T, s ChunkStore) {
	ctx := context.Background()
	chunks := []*models.TextChunk{
		{Source: "pdf", Title: "Guide", ChunkIndex: 2, Text: "Section 3:\nthird", Embedding: []float32{0, 0, 1}},
		{Source: "pdf", Title: "Guide", ChunkIndex: 0, Text: "Section 1:\nfirst", Embedding: []float32{1, 0, 0}},
		{Source: "pdf", Title: "Guide", ChunkIndex: 1, Text: "Section 2:\nsecond", Embedding: []float32{0, 1, 0}},
		{Source: "pdf", Title: "Other", ChunkIndex: 0, Text: "Section 1:\nother", Embedding: []float32{0.5, 0.5, 0}},
	}
	if err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	for _, c := range chunks {
		if c.ID == "" {
			t.Fatal("InsertChunks should assign IDs")
		}
	}

	list, err := s.ListChunks(ctx, "pdf", "Guide")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(list))
	}
	for i, c := range list {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
		if len(c.Embedding) != 3 || c.Embedding[i] != 1 {
			t.Errorf("chunk %d embedding = %v", i, c.Embedding)
		}
	}

	n, err := s.CountChunks(ctx, "pdf", "Guide")
	if err != nil || n != 3 {
		t.Errorf("CountChunks = %d, %v", n, err)
	}

	deleted, err := s.DeleteChunks(ctx, "pdf", "Guide")
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 3 {
		t.Errorf("deleted %d chunks, want 3", deleted)
	}
	if n, _ := s.CountChunks(ctx, "pdf", "Guide"); n != 0 {
		t.Errorf("expected 0 chunks after delete, got %d", n)
	}
	if n, _ := s.CountChunks(ctx, "pdf", "Other"); n != 1 {
		t.Errorf("other title should be untouched, got %d", n)
	}
	if deleted, _ := s.DeleteChunks(ctx, "pdf", "Missing"); deleted != 0 {
		t.Errorf("deleting a missing title removed %d", deleted)
	}
}

// runHelperCatalogTests seeds the fixture helpers and checks filtering, paging and lookup.
func runHelperCatalogTests(t *testing.T, s HelperCatalog) {
	ctx := context.Background()
	seed := fixtureHelpers()
	if err := s.ReplaceHelpers(ctx, seed); err != nil {
		t.Fatal(err)
	}

	t.Run("find", func(t *testing.T) {
		tests := []struct {
			name   string
			filter *models.HelperSearchFilter
			limit  int
			want   []string
			count  int
		}{
			{name: "nationality and skill substring", filter: &models.HelperSearchFilter{Nationality: strPtr("indonesia"), Skills: []string{"cook"}}, limit: 3, want: []string{"Siti", "Dewi", "Nur"}},
			{name: "limit", filter: &models.HelperSearchFilter{Nationality: strPtr("Indonesia")}, limit: 2, count: 2},
			{name: "age and experience bounds", filter: &models.HelperSearchFilter{MinAge: intPtr(25), MaxAge: intPtr(36), MinExperience: intPtr(5)}, limit: 3, want: []string{"Siti", "Maria"}},
			{name: "every skill must match", filter: &models.HelperSearchFilter{Skills: []string{"cooking", "childcare"}}, limit: 3, want: []string{"Siti"}},
			{name: "empty filter", filter: &models.HelperSearchFilter{}, limit: 3, count: 3},
			{name: "nil filter", filter: nil, limit: 10, count: 5},
			{name: "no match", filter: &models.HelperSearchFilter{Nationality: strPtr("Sri Lanka")}, limit: 3, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.FindHelpers(ctx, tt.filter, tt.limit)
				if err != nil {
					t.Fatal(err)
				}
				if tt.want != nil && !equalNames(got, tt.want...) {
					t.Errorf("got %v, want %v", names(got), tt.want)
				}
				if tt.want == nil && len(got) != tt.count {
					t.Errorf("got %d helpers, want %d", len(got), tt.count)
				}
			})
		}
	})

	t.Run("list", func(t *testing.T) {
		yes, no := true, false
		tests := []struct {
			name  string
			query *models.HelperQuery
			total int64
			want  []string
		}{
			{name: "first page by age", query: &models.HelperQuery{Limit: 2, SortField: "age"}, total: 5, want: []string{"Dewi", "Siti"}},
			{name: "last page by age", query: &models.HelperQuery{Page: 3, Limit: 2, SortField: "age"}, total: 5, want: []string{"Nur"}},
			{name: "nationality is exact", query: &models.HelperQuery{Nationality: "indonesia"}, total: 2, want: []string{"Siti", "Nur"}},
			{name: "skills any-of", query: &models.HelperQuery{Skills: []string{"childcare", "elderly care"}}, total: 3, want: []string{"Siti", "Maria", "Aye"}},
			{name: "unavailable", query: &models.HelperQuery{Available: &no}, total: 1, want: []string{"Dewi"}},
			{name: "available and experienced", query: &models.HelperQuery{Available: &yes, MinExp: intPtr(10)}, total: 2, want: []string{"Maria", "Nur"}},
			{name: "max salary skips unknown", query: &models.HelperQuery{MaxSalary: intPtr(650)}, total: 2, want: []string{"Siti", "Aye"}},
			{name: "name contains", query: &models.HelperQuery{Name: "AR"}, total: 1, want: []string{"Maria"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, total, err := s.ListHelpers(ctx, tt.query)
				if err != nil {
					t.Fatal(err)
				}
				if total != tt.total {
					t.Errorf("total = %d, want %d", total, tt.total)
				}
				if !equalNames(got, tt.want...) {
					t.Errorf("got %v, want %v", names(got), tt.want)
				}
			})
		}

		got, _, err := s.ListHelpers(ctx, &models.HelperQuery{SortField: "age", SortDesc: true, Limit: 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Name != "Nur" {
			t.Errorf("descending age should start with Nur, got %v", names(got))
		}

		if _, _, err := s.ListHelpers(ctx, &models.HelperQuery{SortField: "secret"}); err == nil {
			t.Error("expected error for unknown sort field")
		}
	})

	t.Run("get", func(t *testing.T) {
		h, err := s.GetHelper(ctx, seed[1].ID)
		if err != nil {
			t.Fatal(err)
		}
		if h.Name != "Maria" || len(h.Skills) != 2 || h.ExpectedSalary == nil || *h.ExpectedSalary != 750 {
			t.Errorf("got %+v", h)
		}
		if _, err := s.GetHelper(ctx, "does-not-exist"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	if err := s.ReplaceHelpers(ctx, fixtureHelpers()[:1]); err != nil {
		t.Fatal(err)
	}
	if _, total, _ := s.ListHelpers(ctx, &models.HelperQuery{}); total != 1 {
		t.Errorf("replace should leave 1 helper, got %d", total)
	}
}
