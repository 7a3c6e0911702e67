package push

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TagSource generates notification tags that are strictly monotonic within a
// process. Wall-clock millis alone can collide under rapid repeated ringing,
// so a sequence number disambiguates deliveries inside the same millisecond.
type TagSource struct {
	seq atomic.Uint64
	now func() time.Time
}

func NewTagSource() *TagSource {
	return &TagSource{now: time.Now}
}

// NewTagSourceWithClock fixes the time source; used in tests.
func NewTagSourceWithClock(now func() time.Time) *TagSource {
	return &TagSource{now: now}
}

// Next returns a tag of the form "ring-<unixmillis>-<seq>".
func (s *TagSource) Next() string {
	n := s.seq.Add(1)
	return fmt.Sprintf("ring-%d-%d", s.now().UnixMilli(), n)
}

var defaultTags = NewTagSource()

// NextTag returns a tag from the process-wide TagSource.
func NextTag() string { return defaultTags.Next() }
