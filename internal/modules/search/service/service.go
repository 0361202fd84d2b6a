package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"

	"kmbp.app/ratingbot/internal/entity"
)

const projectsIndex = "projects"

type SearchService interface {
	IndexProject(ctx context.Context, project *entity.Project) error
	RemoveProject(ctx context.Context, projectID uint) error
	SearchProjects(ctx context.Context, query string, limit int) ([]uint, error)
	Sync(ctx context.Context, projects []entity.Project) error
	GenerateSearchToken() (string, error)
}

type searchService struct {
	client        meilisearch.ServiceManager
	signingKeyUID string
	signingKey    string
	sanitizer     *bluemonday.Policy
}

func NewSearchService(client meilisearch.ServiceManager) SearchService {
	s := &searchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndex()
	s.initSigningKey()
	return s
}

func (s *searchService) initIndex() {
	filterable := []any{"category"}
	if _, err := s.client.Index(projectsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("Failed to update projects filterable attributes: %v", err)
	}

	sortable := []string{"score"}
	if _, err := s.client.Index(projectsIndex).UpdateSortableAttributes(&sortable); err != nil {
		log.Printf("Failed to update projects sortable attributes: %v", err)
	}

	log.Println("Meilisearch projects index initialized")
}

// initSigningKey finds or creates a search-only key used to sign tenant
// tokens for the public HTTP API.
func (s *searchService) initSigningKey() {
	resp, err := s.client.GetKeys(&meilisearch.KeysQuery{Limit: 20})
	if err != nil {
		log.Printf("Failed to get meilisearch keys: %v", err)
		return
	}

	for _, key := range resp.Results {
		if key.Name == "ProjectSearchSigner" {
			s.signingKeyUID = key.UID
			s.signingKey = key.Key
			return
		}
	}

	key, err := s.client.CreateKey(&meilisearch.Key{
		Description: "Signs read-only project search tokens",
		Name:        "ProjectSearchSigner",
		Actions:     []string{"search"},
		Indexes:     []string{projectsIndex},
		ExpiresAt:   time.Now().AddDate(100, 0, 0),
	})
	if err != nil {
		log.Printf("Failed to create signing key: %v", err)
		return
	}

	s.signingKeyUID = key.UID
	s.signingKey = key.Key
	log.Println("Created new Meilisearch signing key")
}

type projectDoc struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	CategoryTitle string `json:"category_title"`
	Score         int    `json:"score"`
}

func (s *searchService) cleanText(content string) string {
	cleaned := html.UnescapeString(s.sanitizer.Sanitize(content))
	return strings.Join(strings.Fields(cleaned), " ")
}

func (s *searchService) toDoc(p *entity.Project) projectDoc {
	title, _ := entity.CategoryTitle(p.Category)
	return projectDoc{
		ID:            strconv.FormatUint(uint64(p.ID), 10),
		Name:          s.cleanText(p.Name),
		Description:   s.cleanText(p.Description),
		Category:      p.Category,
		CategoryTitle: title,
		Score:         p.Score,
	}
}

func (s *searchService) IndexProject(ctx context.Context, project *entity.Project) error {
	doc := s.toDoc(project)
	task, err := s.client.Index(projectsIndex).AddDocuments([]projectDoc{doc}, strPtr("id"))
	if err != nil {
		return fmt.Errorf("index project %d: %w", project.ID, err)
	}
	log.Printf("Indexed project %d, task id: %d", project.ID, task.TaskUID)
	return nil
}

func (s *searchService) RemoveProject(ctx context.Context, projectID uint) error {
	_, err := s.client.Index(projectsIndex).DeleteDocument(strconv.FormatUint(uint64(projectID), 10))
	return err
}

// Sync pushes every stored project in one batch so the index survives a
// wiped meilisearch volume.
func (s *searchService) Sync(ctx context.Context, projects []entity.Project) error {
	if len(projects) == 0 {
		return nil
	}
	docs := make([]projectDoc, 0, len(projects))
	for i := range projects {
		docs = append(docs, s.toDoc(&projects[i]))
	}
	task, err := s.client.Index(projectsIndex).AddDocuments(docs, strPtr("id"))
	if err != nil {
		return fmt.Errorf("sync projects: %w", err)
	}
	log.Printf("Synced %d projects to search, task id: %d", len(docs), task.TaskUID)
	return nil
}

func (s *searchService) SearchProjects(ctx context.Context, query string, limit int) ([]uint, error) {
	raw, err := s.client.Index(projectsIndex).SearchRaw(query, &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return decodeHitIDs(*raw)
}

func decodeHitIDs(raw []byte) ([]uint, error) {
	var body struct {
		Hits []struct {
			ID json.RawMessage `json:"id"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uint, 0, len(body.Hits))
	for _, hit := range body.Hits {
		text := strings.Trim(string(hit.ID), `"`)
		id, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// GenerateSearchToken returns a tenant token that can only search projects.
func (s *searchService) GenerateSearchToken() (string, error) {
	if s.signingKeyUID == "" || s.signingKey == "" {
		return "", fmt.Errorf("signing key not initialized")
	}

	rules := map[string]any{projectsIndex: map[string]any{}}
	return s.client.GenerateTenantToken(s.signingKeyUID, rules, &meilisearch.TenantTokenOptions{
		APIKey:    s.signingKey,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
}

func strPtr(s string) *string {
	return &s
}
