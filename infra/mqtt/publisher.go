package mqtt

import (
	"fmt"
	"sync"

	coremqtt "github.com/kilianp07/shopflow/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher records announcements in memory for tests.
type MockPublisher struct {
	mu       sync.Mutex
	Messages []coremqtt.NeedsAnnouncement
	// FailJobs makes publishing fail for the listed job ids.
	FailJobs map[string]bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{FailJobs: make(map[string]bool)}
}

// PublishNeeds records the announcement or returns an error if configured to fail.
func (m *MockPublisher) PublishNeeds(a coremqtt.NeedsAnnouncement) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailJobs[a.JobID] {
		return "", fmt.Errorf("publish failed for %s", a.JobID)
	}
	if a.MessageID == "" {
		a.MessageID = fmt.Sprintf("msg-%d", len(m.Messages)+1)
	}
	m.Messages = append(m.Messages, a)
	return a.MessageID, nil
}

// Published returns a copy of the recorded announcements.
func (m *MockPublisher) Published() []coremqtt.NeedsAnnouncement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.NeedsAnnouncement(nil), m.Messages...)
}
