package zoo

import (
	"time"
)

// Location describes where a bird identity currently sits in a zoo.
type Location struct {
	BirdID  string  `json:"bird_id"`
	Area    Habitat `json:"area,omitempty"`
	Visitor bool    `json:"visitor"`
}

// Normalize makes sure every area exists and no collection is nil.
func (s *ZooState) Normalize() {
	if s.Areas == nil {
		s.Areas = make(map[Habitat][]*ResidentBird, len(Habitats))
	}
	for _, h := range Habitats {
		if s.Areas[h] == nil {
			s.Areas[h] = []*ResidentBird{}
		}
	}
	if s.Visitors == nil {
		s.Visitors = []*VisitorBird{}
	}
	if s.AdmissionQueue == nil {
		s.AdmissionQueue = []AdmissionRequest{}
	}
	if s.EventLog == nil {
		s.EventLog = []Event{}
	}
}

// Residents returns every resident in area display order.
func (s *ZooState) Residents() []*ResidentBird {
	var out []*ResidentBird
	for _, h := range Habitats {
		out = append(out, s.Areas[h]...)
	}
	return out
}

// Population returns the number of residents plus visitors.
func (s *ZooState) Population() int {
	return len(s.Residents()) + len(s.Visitors)
}

// HasRoom reports whether area can take another resident.
func (s *ZooState) HasRoom(area Habitat, capacity int) bool {
	return len(s.Areas[area]) < capacity
}

// PlaceResident appends b to its area, failing when the area is full.
func (s *ZooState) PlaceResident(b *ResidentBird, capacity int) error {
	if !s.HasRoom(b.Area, capacity) {
		return &CapacityError{Area: b.Area}
	}
	s.Areas[b.Area] = append(s.Areas[b.Area], b)
	return nil
}

// FindResident returns the first resident named name.
func (s *ZooState) FindResident(name string) (*ResidentBird, bool) {
	for _, b := range s.Residents() {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// FindVisitor returns the first visitor named name.
func (s *ZooState) FindVisitor(name string) (*VisitorBird, bool) {
	for _, v := range s.Visitors {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// Locate lists every slot currently held by a bird named name.
func (s *ZooState) Locate(name string) []Location {
	var out []Location
	for _, b := range s.Residents() {
		if b.Name == name {
			out = append(out, Location{BirdID: b.ID, Area: b.Area})
		}
	}
	for _, v := range s.Visitors {
		if v.Name == name {
			out = append(out, Location{BirdID: v.ID, Visitor: true})
		}
	}
	return out
}

// RemoveResident removes the resident with the given id.
func (s *ZooState) RemoveResident(id string) (*ResidentBird, bool) {
	for _, h := range Habitats {
		birds := s.Areas[h]
		for i, b := range birds {
			if b.ID == id {
				s.Areas[h] = append(birds[:i:i], birds[i+1:]...)
				return b, true
			}
		}
	}
	return nil, false
}

// RemoveNamed drops every resident and visitor named name.
func (s *ZooState) RemoveNamed(name string) (residents []*ResidentBird, visitors []*VisitorBird) {
	for _, h := range Habitats {
		kept := s.Areas[h][:0:0]
		for _, b := range s.Areas[h] {
			if b.Name == name {
				residents = append(residents, b)
				continue
			}
			kept = append(kept, b)
		}
		s.Areas[h] = kept
	}
	keptV := s.Visitors[:0:0]
	for _, v := range s.Visitors {
		if v.Name == name {
			visitors = append(visitors, v)
			continue
		}
		keptV = append(keptV, v)
	}
	s.Visitors = keptV
	return residents, visitors
}

// ExpireVisitors removes and returns visitors whose window has passed.
func (s *ZooState) ExpireVisitors(now time.Time) []*VisitorBird {
	var expired []*VisitorBird
	kept := s.Visitors[:0:0]
	for _, v := range s.Visitors {
		if v.ShouldDepart(now) {
			expired = append(expired, v)
			continue
		}
		kept = append(kept, v)
	}
	s.Visitors = kept
	return expired
}

// RemoveDeparted removes and returns residents whose effective departure has passed.
func (s *ZooState) RemoveDeparted(now time.Time) []*ResidentBird {
	var gone []*ResidentBird
	for _, h := range Habitats {
		kept := s.Areas[h][:0:0]
		for _, b := range s.Areas[h] {
			if b.ShouldDepart(now) {
				gone = append(gone, b)
				continue
			}
			kept = append(kept, b)
		}
		s.Areas[h] = kept
	}
	return gone
}

// AppendEvent adds e to the log, evicting the oldest entries beyond capacity.
func (s *ZooState) AppendEvent(e Event, capacity int) {
	s.EventLog = append(s.EventLog, e)
	if capacity > 0 && len(s.EventLog) > capacity {
		s.EventLog = append([]Event{}, s.EventLog[len(s.EventLog)-capacity:]...)
	}
}

// RecentEvents returns up to n of the newest events, newest last.
func (s *ZooState) RecentEvents(n int) []Event {
	if n <= 0 || n > len(s.EventLog) {
		n = len(s.EventLog)
	}
	return append([]Event{}, s.EventLog[len(s.EventLog)-n:]...)
}

// Enqueue appends req to the admission queue and returns its 1-based position.
func (s *ZooState) Enqueue(req AdmissionRequest) int {
	for i, q := range s.AdmissionQueue {
		if q.ID == req.ID {
			return i + 1
		}
	}
	s.AdmissionQueue = append(s.AdmissionQueue, req)
	return len(s.AdmissionQueue)
}

// DequeueFor pops the oldest request waiting for area.
func (s *ZooState) DequeueFor(area Habitat) (AdmissionRequest, bool) {
	for i, q := range s.AdmissionQueue {
		if q.Area == area {
			s.AdmissionQueue = append(s.AdmissionQueue[:i:i], s.AdmissionQueue[i+1:]...)
			return q, true
		}
	}
	return AdmissionRequest{}, false
}
