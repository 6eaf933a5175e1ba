package shop

import (
	"github.com/kilianp07/shopflow/core/model"
)

// Station is an in-memory work center with a single processing slot.
type Station struct {
	id       string
	origin   model.Point
	caps     map[string]struct{}
	disabled bool

	moving []model.JobOperation
	queue  []model.JobOperation
	active *model.JobOperation
	// finishAt is the end of the active operation.
	finishAt float64
	last     *model.Operation
}

// NewStation returns an enabled station able to run the named operations.
func NewStation(id string, origin model.Point, capabilities []string) *Station {
	caps := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		caps[c] = struct{}{}
	}
	return &Station{id: id, origin: origin, caps: caps}
}

func (s *Station) ID() string          { return s.id }
func (s *Station) Origin() model.Point { return s.origin }
func (s *Station) Disabled() bool      { return s.disabled }

// Capable reports whether the station can run op.
func (s *Station) Capable(op *model.Operation) bool {
	_, ok := s.caps[op.Name]
	return ok
}

// ExpectedFinishTime is the end of the active operation, or 0 when idle.
func (s *Station) ExpectedFinishTime() float64 {
	if s.active == nil {
		return 0
	}
	return s.finishAt
}

func (s *Station) QueuedOperations() []model.JobOperation {
	return append([]model.JobOperation(nil), s.queue...)
}

func (s *Station) MovingOperations() []model.JobOperation {
	return append([]model.JobOperation(nil), s.moving...)
}

func (s *Station) ActiveOperation() (model.JobOperation, bool) {
	if s.active == nil {
		return model.JobOperation{}, false
	}
	return *s.active, true
}

// LastOperation returns the operation last run by the station.
func (s *Station) LastOperation() *model.Operation { return s.last }

func (s *Station) addMoving(jo model.JobOperation) {
	s.moving = append(s.moving, jo)
}

// arrive moves the job from the moving list to the queue.
func (s *Station) arrive(j *model.Job) bool {
	for i, jo := range s.moving {
		if jo.Job == j {
			s.moving = append(s.moving[:i], s.moving[i+1:]...)
			s.queue = append(s.queue, jo)
			return true
		}
	}
	return false
}

func (s *Station) start(j *model.Job, now float64) (model.JobOperation, bool) {
	for i, jo := range s.queue {
		if jo.Job == j {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.active = &jo
			s.finishAt = now + jo.Operation.TotalTime()
			return jo, true
		}
	}
	return model.JobOperation{}, false
}

func (s *Station) finish() {
	if s.active != nil {
		s.last = s.active.Operation
	}
	s.active = nil
}

// drop removes every entry of j from the moving list and the queue.
func (s *Station) drop(j *model.Job) {
	s.moving = without(s.moving, j)
	s.queue = without(s.queue, j)
}

func without(list []model.JobOperation, j *model.Job) []model.JobOperation {
	out := list[:0]
	for _, jo := range list {
		if jo.Job != j {
			out = append(out, jo)
		}
	}
	return out
}
