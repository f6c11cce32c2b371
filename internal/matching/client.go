package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/pkg/httpclient"
)

// DefaultTopN is the number of matches requested when the caller gives none.
const DefaultTopN = 3

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// UserProfile is the adopter half of a match request.
type UserProfile struct {
	ID          string `json:"id"`
	Lifestyle   string `json:"lifestyle"`
	Experience  string `json:"experience"`
	LivingSpace string `json:"living_space"`
	Preferences string `json:"preferences"`
}

// PetProfile is one candidate pet in a match request.
type PetProfile struct {
	Name        string `json:"name"`
	Species     string `json:"species"`
	Age         int    `json:"age"`
	Color       string `json:"color"`
	Sex         string `json:"sex"`
	Description string `json:"description"`
	PetID       int64  `json:"pet_id"`
}

// Request is the body posted to the matching service.
type Request struct {
	User UserProfile  `json:"user"`
	Pets []PetProfile `json:"pets"`
	TopN int          `json:"top_n"`
}

// Match is one scored suggestion.
type Match struct {
	PetName       string   `json:"pet_name"`
	Species       string   `json:"species"`
	MatchScore    int      `json:"match_score"`
	Reasons       []string `json:"reasons"`
	Consideration string   `json:"consideration"`
}

// Response is the matching service reply.
type Response struct {
	Matches []Match `json:"matches"`
}

// NewRequest builds a match request from the adopter's preferences and the
// candidate pets. A non-positive topN falls back to DefaultTopN.
func NewRequest(userID int64, prefs domain.AdoptionPreferences, pets []domain.Pet, topN int) Request {
	if topN <= 0 {
		topN = DefaultTopN
	}
	profiles := make([]PetProfile, len(pets))
	for i, p := range pets {
		profiles[i] = PetProfile{
			Name:        p.Name,
			Species:     p.Species,
			Age:         p.Age,
			Color:       p.Color,
			Sex:         p.Sex,
			Description: p.Description,
			PetID:       p.ID,
		}
	}
	return Request{
		User: UserProfile{
			ID:          strconv.FormatInt(userID, 10),
			Lifestyle:   prefs.Lifestyle,
			Experience:  prefs.Experience,
			LivingSpace: prefs.LivingSpace,
			Preferences: prefs.Preferences,
		},
		Pets: profiles,
		TopN: topN,
	}
}

// Client calls the external pet matching service.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a matching client for baseURL.
func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{http: doer, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Match posts req to {baseURL}/api/match.
func (c *Client) Match(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal match request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/match", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create match request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call matching service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "matching")
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode match response: %w", err)
	}
	if out.Matches == nil {
		out.Matches = []Match{}
	}

	c.logger.InfoContext(ctx, "matching service responded",
		slog.String("user_id", req.User.ID),
		slog.Int("candidates", len(req.Pets)),
		slog.Int("matches", len(out.Matches)),
	)
	return &out, nil
}
