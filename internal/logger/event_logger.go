package logger

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

// Типы событий конвейера оценки и очереди проверки
const (
	EventLedgerReceived        EventType = "ledger_received"
	EventTransactionEvaluated  EventType = "transaction_evaluated"
	EventTransactionAutoPassed EventType = "transaction_auto_approved"
	EventReviewEnqueued        EventType = "review_enqueued"
	EventReviewAssigned        EventType = "review_assigned"
	EventReviewDecided         EventType = "review_decided"
	EventReviewEscalated       EventType = "review_escalated"
	EventPolicyUpdated         EventType = "policy_updated"
	EventAssessmentCached      EventType = "assessment_cached"
	EventKafkaPublished        EventType = "kafka_published"
	EventSLABreached           EventType = "sla_breached"
)

type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Service   string                 `json:"service"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Component string                 `json:"component"` // api, kafka, redis, sqlite, workflow
}

// EventLogger кольцевой буфер последних событий для /api/v1/events
type EventLogger struct {
	mu     sync.RWMutex
	buf    []Event
	next   int
	filled bool
	now    func() time.Time
}

var globalLogger = NewEventLogger(1000)

func NewEventLogger(size int) *EventLogger {
	if size <= 0 {
		size = 1
	}
	return &EventLogger{
		buf: make([]Event, size),
		now: time.Now,
	}
}

func LogEvent(eventType EventType, service string, component string, data map[string]interface{}) {
	globalLogger.LogEvent(eventType, service, component, data)
}

func (el *EventLogger) LogEvent(eventType EventType, service string, component string, data map[string]interface{}) {
	el.mu.Lock()
	defer el.mu.Unlock()

	el.buf[el.next] = Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Service:   service,
		Component: component,
		Timestamp: el.now(),
		Data:      data,
	}
	el.next = (el.next + 1) % len(el.buf)
	if el.next == 0 {
		el.filled = true
	}
}

// Len число событий в буфере
func (el *EventLogger) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.lenLocked()
}

func (el *EventLogger) lenLocked() int {
	if el.filled {
		return len(el.buf)
	}
	return el.next
}

// ordered события от старых к новым
func (el *EventLogger) ordered() []Event {
	n := el.lenLocked()
	out := make([]Event, 0, n)
	if el.filled {
		out = append(out, el.buf[el.next:]...)
	}
	return append(out, el.buf[:el.next]...)
}

func GetEvents(limit int) []Event {
	return globalLogger.GetEvents(limit)
}

// GetEvents последние limit событий, limit <= 0 означает все
func (el *EventLogger) GetEvents(limit int) []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	events := el.ordered()
	if limit > 0 && limit < len(events) {
		events = events[len(events)-limit:]
	}
	return events
}

func GetEventsByType(eventType EventType, limit int) []Event {
	return globalLogger.GetEventsByType(eventType, limit)
}

// GetEventsByType последние события одного типа
func (el *EventLogger) GetEventsByType(eventType EventType, limit int) []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var out []Event
	for _, e := range el.ordered() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out
}

func GetStats() map[string]interface{} {
	return globalLogger.GetStats()
}

func (el *EventLogger) GetStats() map[string]interface{} {
	el.mu.RLock()
	defer el.mu.RUnlock()

	components := make(map[string]int)
	services := make(map[string]int)
	types := make(map[string]int)

	events := el.ordered()
	for _, event := range events {
		components[event.Component]++
		services[event.Service]++
		types[string(event.Type)]++
	}

	stats := map[string]interface{}{
		"total_events": len(events),
		"capacity":     len(el.buf),
		"components":   components,
		"services":     services,
		"event_types":  types,
	}
	if len(events) > 0 {
		stats["last_event_at"] = events[len(events)-1].Timestamp.UTC().Format(time.RFC3339)
	}
	return stats
}

func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		Alias:     (*Alias)(&e),
	})
}
