package mqtt

import "github.com/kilianp07/shopflow/core/model"

// NeedsAnnouncement is the payload published when the material needs of a
// job have been forecast.
type NeedsAnnouncement struct {
	MessageID string               `json:"message_id"`
	JobID     string               `json:"job_id"`
	Operation string               `json:"operation,omitempty"`
	Station   string               `json:"station,omitempty"`
	SimTime   float64              `json:"sim_time"`
	Needs     []model.MaterialNeed `json:"needs"`
	Timestamp int64                `json:"timestamp"`
}

// Publisher announces material needs to external warehouse systems.
type Publisher interface {
	// PublishNeeds sends the announcement and returns the message id it was
	// published under.
	PublishNeeds(a NeedsAnnouncement) (messageID string, err error)
}
