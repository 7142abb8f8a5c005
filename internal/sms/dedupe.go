package sms

import (
	"context"
	"sync"

	"github.com/dvloznov/budgenudge/internal/domain"
)

// DayLayout is the format of SMSLogEntry.SendDate.
const DayLayout = "2006-01-02"

// Deduper guarantees at most one message per (phone, template, day).
type Deduper interface {
	// CanSend reports whether nothing was recorded yet for the key.
	CanSend(ctx context.Context, phone string, template domain.TemplateType, day string) (bool, error)
	// Record stores entry. It returns false if the key was already taken.
	Record(ctx context.Context, entry domain.SMSLogEntry) (bool, error)
}

// Key builds the dedup key shared by the cache-backed implementations.
func Key(phone string, template domain.TemplateType, day string) string {
	return "sms:sent:" + phone + ":" + string(template) + ":" + day
}

// MemoryDeduper keeps dedup keys in process memory.
type MemoryDeduper struct {
	mu      sync.Mutex
	entries map[string]domain.SMSLogEntry
}

// NewMemoryDeduper creates an empty in-memory deduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{entries: make(map[string]domain.SMSLogEntry)}
}

// CanSend implements Deduper.
func (m *MemoryDeduper) CanSend(_ context.Context, phone string, template domain.TemplateType, day string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, taken := m.entries[Key(phone, template, day)]
	return !taken, nil
}

// Record implements Deduper.
func (m *MemoryDeduper) Record(_ context.Context, entry domain.SMSLogEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(entry.PhoneNumber, entry.TemplateType, entry.SendDate)
	if _, taken := m.entries[k]; taken {
		return false, nil
	}
	m.entries[k] = entry
	return true, nil
}

// Entries returns a copy of everything recorded.
func (m *MemoryDeduper) Entries() []domain.SMSLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SMSLogEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out
}
