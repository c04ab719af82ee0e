package workflow

import (
	"sort"
	"sync"
	"time"

	"risk-review-system/internal/models"
)

// LatencyAlpha коэффициент сглаживания средней задержки проверки
const LatencyAlpha = 0.1

// Stats кэш статистики очереди в памяти, может быть пересобран из хранилища
type Stats struct {
	mu     sync.RWMutex
	byOrg  map[string]*models.ReviewStats
	hasEMA map[string]bool
}

func NewStats() *Stats {
	return &Stats{
		byOrg:  make(map[string]*models.ReviewStats),
		hasEMA: make(map[string]bool),
	}
}

func (s *Stats) org(id string) *models.ReviewStats {
	st, ok := s.byOrg[id]
	if !ok {
		st = emptyStats(id)
		s.byOrg[id] = st
	}
	return st
}

func emptyStats(orgID string) *models.ReviewStats {
	return &models.ReviewStats{
		OrganizationID: orgID,
		ByStatus:       make(map[models.ReviewStatus]int),
		ByPriority:     make(map[models.Priority]int),
	}
}

// OnCreated учитывает новый элемент
func (s *Stats) OnCreated(orgID string, priority models.Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.org(orgID)
	st.ByStatus[models.ReviewStatusPending]++
	st.ByPriority[priority]++
}

// OnTransition учитывает смену состояния, latency > 0 только для финального решения
func (s *Stats) OnTransition(orgID string, from, to models.ReviewStatus, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.org(orgID)
	if from == to {
		return
	}
	if st.ByStatus[from] > 0 {
		st.ByStatus[from]--
	}
	st.ByStatus[to]++
	if to.IsTerminal() {
		st.Decided++
		s.observe(orgID, st, latency)
	}
}

func (s *Stats) observe(orgID string, st *models.ReviewStats, latency time.Duration) {
	if !s.hasEMA[orgID] {
		st.AvgReviewLatency = latency
		s.hasEMA[orgID] = true
		return
	}
	st.AvgReviewLatency = time.Duration(LatencyAlpha*float64(latency) + (1-LatencyAlpha)*float64(st.AvgReviewLatency))
}

// Snapshot копия статистики организации
func (s *Stats) Snapshot(orgID string) models.ReviewStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byOrg[orgID]
	if !ok {
		return *emptyStats(orgID)
	}
	out := *st
	out.ByStatus = make(map[models.ReviewStatus]int, len(st.ByStatus))
	for k, v := range st.ByStatus {
		out.ByStatus[k] = v
	}
	out.ByPriority = make(map[models.Priority]int, len(st.ByPriority))
	for k, v := range st.ByPriority {
		out.ByPriority[k] = v
	}
	return out
}

// Rebuild пересчитывает статистику организации по сохраненным элементам и журналу аудита.
// Решения учитываются в порядке времени их принятия, как при инкрементальном подсчете.
func (s *Stats) Rebuild(orgID string, items []*models.ReviewQueueItem, now time.Time) models.ReviewStats {
	st := emptyStats(orgID)

	type decided struct {
		at      time.Time
		id      string
		latency time.Duration
	}
	var decisions []decided

	for _, item := range items {
		st.ByStatus[item.Status]++
		st.ByPriority[item.Priority]++
		if !item.Status.IsTerminal() {
			continue
		}
		st.Decided++
		at := decisionTime(item)
		decisions = append(decisions, decided{at: at, id: item.ID, latency: at.Sub(item.CreatedAt)})
	}

	sort.Slice(decisions, func(i, j int) bool {
		if !decisions[i].at.Equal(decisions[j].at) {
			return decisions[i].at.Before(decisions[j].at)
		}
		return decisions[i].id < decisions[j].id
	})

	s.mu.Lock()
	s.hasEMA[orgID] = false
	for _, d := range decisions {
		s.observe(orgID, st, d.latency)
	}
	st.RebuiltAt = &now
	s.byOrg[orgID] = st
	s.mu.Unlock()

	return s.Snapshot(orgID)
}

// decisionTime время финального решения по журналу аудита
func decisionTime(item *models.ReviewQueueItem) time.Time {
	for i := len(item.AuditLog) - 1; i >= 0; i-- {
		switch item.AuditLog[i].Action {
		case models.AuditApproved, models.AuditRejected, models.AuditSecondApproved, models.AuditSecondRejected:
			return item.AuditLog[i].Timestamp
		}
	}
	if item.ResolvedAt != nil {
		return *item.ResolvedAt
	}
	return item.UpdatedAt
}
