package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"cryptoden/internal/logger"
)

const (
	fearGreedEndpoint       = "https://api.alternative.me/fng/?limit=1"
	fearGreedErrorBackoff   = 2 * time.Minute
	fearGreedFallbackUpdate = 12 * time.Hour
)

// FearGreedService polls the alternative.me index and caches the latest
// value until the API's own next-update hint expires.
type FearGreedService struct {
	endpoint string
	client   *http.Client

	mu         sync.RWMutex
	value      int
	haveValue  bool
	class      string
	lastUpdate time.Time
	nextUpdate time.Time
	refreshMu  sync.Mutex
}

func NewFearGreedService() *FearGreedService {
	return &FearGreedService{
		endpoint: fearGreedEndpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Value returns the cached index value; ok is false before the first
// successful refresh.
func (s *FearGreedService) Value() (int, bool) {
	if s == nil {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.haveValue
}

func (s *FearGreedService) RefreshIfStale(ctx context.Context) {
	if s == nil {
		return
	}
	if s.fresh(time.Now()) {
		return
	}
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if s.fresh(time.Now()) {
		return
	}
	if err := s.refresh(ctx); err != nil {
		logger.Warnf("fear & greed refresh failed: %v", err)
	}
}

func (s *FearGreedService) fresh(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.lastUpdate.IsZero() && !s.nextUpdate.IsZero() && now.Before(s.nextUpdate)
}

type fearGreedResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		TimeUntilUpdate     string `json:"time_until_update"`
	} `json:"data"`
	Metadata struct {
		Error any `json:"error"`
	} `json:"metadata"`
}

func (s *FearGreedService) refresh(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		s.setError()
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		s.setError()
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.setError()
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload fearGreedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		s.setError()
		return err
	}
	if payload.Metadata.Error != nil {
		s.setError()
		return fmt.Errorf("api error: %v", payload.Metadata.Error)
	}
	if len(payload.Data) == 0 {
		s.setError()
		return fmt.Errorf("api data empty")
	}
	item := payload.Data[0]
	value, err := strconv.Atoi(strings.TrimSpace(item.Value))
	if err != nil {
		s.setError()
		return fmt.Errorf("api value invalid: %w", err)
	}

	now := time.Now()
	next := now.Add(fearGreedFallbackUpdate)
	if raw := strings.TrimSpace(item.TimeUntilUpdate); raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
			next = now.Add(time.Duration(secs) * time.Second)
		}
	}

	s.mu.Lock()
	s.value = value
	s.haveValue = true
	s.class = strings.TrimSpace(item.ValueClassification)
	s.lastUpdate = now
	s.nextUpdate = next
	s.mu.Unlock()
	return nil
}

func (s *FearGreedService) setError() {
	now := time.Now()
	s.mu.Lock()
	s.lastUpdate = now
	s.nextUpdate = now.Add(fearGreedErrorBackoff)
	s.mu.Unlock()
}
