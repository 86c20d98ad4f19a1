package alerts

import (
	"context"
	"strings"
)

// KeywordMonitor scans text for priority keywords and sends an alert
// for each match.
type KeywordMonitor struct {
	alerts           *TelegramAlertSystem
	priorityKeywords map[Priority][]string
}

// defaultKeywords is used when no keyword sets are configured.
var defaultKeywords = map[Priority][]string{
	PriorityHigh:   {"urgent", "emergency"},
	PriorityMedium: {"important", "attention"},
	PriorityLow:    {"update", "info"},
}

// priorityOrder fixes the scan order so high priority matches alert
// first.
var priorityOrder = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// NewKeywordMonitor creates a monitor over the given alert system.
// A nil keyword map falls back to the default sets.
func NewKeywordMonitor(alerts *TelegramAlertSystem, priorityKeywords map[Priority][]string) *KeywordMonitor {
	if priorityKeywords == nil {
		priorityKeywords = defaultKeywords
	}
	return &KeywordMonitor{
		alerts:           alerts,
		priorityKeywords: priorityKeywords,
	}
}

// ProcessText checks text against every keyword set and sends one
// alert per matched keyword. Returns the first send error, after
// trying all matches.
func (m *KeywordMonitor) ProcessText(ctx context.Context, text string, metadata map[string]string) error {
	if text == "" {
		return nil
	}

	lowered := strings.ToLower(text)
	var firstErr error
	for _, priority := range priorityOrder {
		for _, keyword := range m.priorityKeywords[priority] {
			if keyword == "" || !strings.Contains(lowered, strings.ToLower(keyword)) {
				continue
			}
			if err := m.alerts.SendAlert(ctx, keyword, text, priority, metadata); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
