package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/client"
	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/util"
)

// IncidentIndexer mirrors security incidents into Elasticsearch so the
// admin surface can search them. Scylla remains the system of record; a
// lost index write costs searchability, not data.
type IncidentIndexer struct {
	client *client.ESClient
}

func NewIncidentIndexer(client *client.ESClient) *IncidentIndexer {
	return &IncidentIndexer{client: client}
}

func (i *IncidentIndexer) IndexIncident(ctx context.Context, incident *model.SecurityIncident) error {
	body, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.client.IncidentIndex(),
		DocumentID: incident.IncidentID,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, i.client.Client)
	if err != nil {
		return fmt.Errorf("failed to index incident: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("incident index request returned %s", res.Status())
	}

	util.Debug("Incident indexed",
		zap.String("incident_id", incident.IncidentID),
		zap.String("severity", incident.Severity))
	return nil
}

// IncidentQuery narrows a search; zero values mean "no filter".
type IncidentQuery struct {
	Severity string
	Status   string
	MemberID string
	Since    time.Time
	Limit    int
}

// SearchIncidents runs a filtered search over the incident index, newest
// first.
func (i *IncidentIndexer) SearchIncidents(ctx context.Context, q IncidentQuery) ([]*model.SecurityIncident, error) {
	var filters []map[string]interface{}
	if q.Severity != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"severity.keyword": q.Severity},
		})
	}
	if q.Status != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"status.keyword": q.Status},
		})
	}
	if q.MemberID != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"member_id.keyword": q.MemberID},
		})
	}
	if !q.Since.IsZero() {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{
				"detected_at": map[string]interface{}{"gte": q.Since.Format(time.RFC3339)},
			},
		})
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	query := map[string]interface{}{
		"size": limit,
		"sort": []map[string]interface{}{
			{"detected_at": map[string]interface{}{"order": "desc"}},
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal incident query: %w", err)
	}

	res, err := i.client.Client.Search(
		i.client.Client.Search.WithContext(ctx),
		i.client.Client.Search.WithIndex(i.client.IncidentIndex()),
		i.client.Client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search incidents: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("incident search returned %s", res.Status())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source model.SecurityIncident `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	incidents := make([]*model.SecurityIncident, 0, len(parsed.Hits.Hits))
	for idx := range parsed.Hits.Hits {
		incidents = append(incidents, &parsed.Hits.Hits[idx].Source)
	}
	return incidents, nil
}
