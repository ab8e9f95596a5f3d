package events

import (
	"sort"
	"sync"
	"time"
)

// DeliveryStatus represents the status of a webhook delivery
type DeliveryStatus string

const (
	DeliveryStatusPending  DeliveryStatus = "pending"
	DeliveryStatusSuccess  DeliveryStatus = "success"
	DeliveryStatusFailed   DeliveryStatus = "failed"
	DeliveryStatusRetrying DeliveryStatus = "retrying"
)

// DeliveryLog records one webhook delivery attempt chain.
type DeliveryLog struct {
	ID           string         `json:"id"`
	EndpointID   string         `json:"endpoint_id"`
	EventID      string         `json:"event_id"`
	EventType    Type           `json:"event_type"`
	URL          string         `json:"url"`
	Status       DeliveryStatus `json:"status"`
	StatusCode   int            `json:"status_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Attempts     int            `json:"attempts"`
	NextRetryAt  *time.Time     `json:"next_retry_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Duration     time.Duration  `json:"duration,omitempty"`
}

// DeliveryLogStore keeps recent delivery logs in memory with a bounded
// size.
type DeliveryLogStore struct {
	logs    map[string]*DeliveryLog
	mutex   sync.RWMutex
	maxLogs int
}

// NewDeliveryLogStore creates a new delivery log store
func NewDeliveryLogStore(maxLogs int) *DeliveryLogStore {
	if maxLogs <= 0 {
		maxLogs = 1000
	}
	return &DeliveryLogStore{
		logs:    make(map[string]*DeliveryLog),
		maxLogs: maxLogs,
	}
}

// Add adds a delivery log, evicting the oldest entries when full.
func (s *DeliveryLogStore) Add(log *DeliveryLog) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.logs) >= s.maxLogs {
		s.evictOldest()
	}
	s.logs[log.ID] = log
}

// Get retrieves a delivery log by ID
func (s *DeliveryLogStore) Get(id string) (*DeliveryLog, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	log, exists := s.logs[id]
	return log, exists
}

// GetByEndpoint retrieves delivery logs for an endpoint, newest first.
func (s *DeliveryLogStore) GetByEndpoint(endpointID string, limit int) []*DeliveryLog {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var result []*DeliveryLog
	for _, log := range s.logs {
		if log.EndpointID == endpointID {
			result = append(result, log)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Update updates a delivery log
func (s *DeliveryLogStore) Update(log *DeliveryLog) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.logs[log.ID] = log
}

// GetPendingRetries returns delivery logs whose retry time has passed.
func (s *DeliveryLogStore) GetPendingRetries() []*DeliveryLog {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := time.Now()
	var result []*DeliveryLog
	for _, log := range s.logs {
		if log.Status == DeliveryStatusRetrying &&
			log.NextRetryAt != nil &&
			log.NextRetryAt.Before(now) {
			result = append(result, log)
		}
	}
	return result
}

// evictOldest removes the oldest 10% of logs. Caller holds the lock.
func (s *DeliveryLogStore) evictOldest() {
	logs := make([]*DeliveryLog, 0, len(s.logs))
	for _, log := range s.logs {
		logs = append(logs, log)
	}

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})

	evictCount := len(logs) / 10
	if evictCount == 0 {
		evictCount = 1
	}
	for i := 0; i < evictCount && i < len(logs); i++ {
		delete(s.logs, logs[i].ID)
	}
}
