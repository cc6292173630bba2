package search

import (
	"github.com/meilisearch/meilisearch-go"

	"residence-portal/internal/models"
)

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	return &SearchClient{
		client: client,
		index:  "occupants",
	}
}

// OccupantDocument is the denormalized shape indexed for search: the
// occupant plus enough location context to jump to the department.
type OccupantDocument struct {
	ID              string `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Status          string `json:"status"`
	DepartmentID    string `json:"department_id"`
	DepartmentLabel string `json:"department_label"`
	LevelNumber     int    `json:"level_number"`
	TowerID         string `json:"tower_id"`
	TowerLabel      string `json:"tower_label"`
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && err.Error() != "index already exists" {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"first_name",
		"last_name",
		"department_label",
		"tower_label",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"id",
		"status",
		"tower_id",
		"level_number",
		"department_id",
	})
	return err
}

// IndexOccupant indexes a single occupant
func (s *SearchClient) IndexOccupant(doc OccupantDocument) error {
	_, err := s.client.Index(s.index).AddDocuments([]OccupantDocument{doc})
	return err
}

// IndexOccupants indexes multiple occupants
func (s *SearchClient) IndexOccupants(docs []OccupantDocument) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := s.client.Index(s.index).AddDocuments(docs)
	return err
}

// RemoveOccupant drops an occupant from the index
func (s *SearchClient) RemoveOccupant(id string) error {
	_, err := s.client.Index(s.index).DeleteDocument(id)
	return err
}

// statusFilter builds the Meilisearch filter expression for a status
// restriction. The value goes into the expression verbatim, so only the
// known status constants are accepted.
func statusFilter(status string) (string, error) {
	if status == "" {
		return "", nil
	}
	switch models.OccupantStatus(status) {
	case models.OccupantStatusActive, models.OccupantStatusSuspended, models.OccupantStatusInactive:
		return "status = '" + status + "'", nil
	}
	return "", &models.ValidationError{Field: "status", Message: "unknown status " + status}
}

// Search finds occupants by name, optionally restricted to a status
func (s *SearchClient) Search(query, status string, limit int64) ([]OccupantDocument, error) {
	filter, err := statusFilter(status)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = 20
	}
	req := &meilisearch.SearchRequest{Limit: limit}
	if filter != "" {
		req.Filter = filter
	}

	searchRes, err := s.client.Index(s.index).Search(query, req)
	if err != nil {
		return nil, err
	}

	docs := make([]OccupantDocument, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		docs = append(docs, parseOccupantHit(hit))
	}
	return docs, nil
}

func parseOccupantHit(hit interface{}) OccupantDocument {
	hitMap, ok := hit.(map[string]interface{})
	if !ok {
		return OccupantDocument{}
	}
	doc := OccupantDocument{
		ID:              getString(hitMap, "id"),
		FirstName:       getString(hitMap, "first_name"),
		LastName:        getString(hitMap, "last_name"),
		Status:          getString(hitMap, "status"),
		DepartmentID:    getString(hitMap, "department_id"),
		DepartmentLabel: getString(hitMap, "department_label"),
		TowerID:         getString(hitMap, "tower_id"),
		TowerLabel:      getString(hitMap, "tower_label"),
	}
	if n, ok := hitMap["level_number"].(float64); ok {
		doc.LevelNumber = int(n)
	}
	return doc
}

// getString safely extracts a string from map
func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

// DocumentFromTree builds index documents for every occupant in a loaded
// tower tree, used by the full reindex.
func DocumentFromTree(towers []models.Tower) []OccupantDocument {
	var docs []OccupantDocument
	for _, t := range towers {
		for _, l := range t.Levels {
			for _, d := range l.Departments {
				for _, o := range d.Occupants {
					docs = append(docs, OccupantDocument{
						ID:              o.ID,
						FirstName:       o.FirstName,
						LastName:        o.LastName,
						Status:          string(o.Status),
						DepartmentID:    d.ID,
						DepartmentLabel: d.Label,
						LevelNumber:     l.Number,
						TowerID:         t.ID,
						TowerLabel:      t.Label,
					})
				}
			}
		}
	}
	return docs
}
