package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/outreach/internal/models"
)

// Outcome итог прохода воркера
type Outcome int

const (
	// Success every task drained its snapshot
	Success Outcome = iota
	// Retry at least one task halted on a transient failure
	Retry
)

func (o Outcome) String() string {
	if o == Retry {
		return "retry"
	}
	return "success"
}

// TypeReport is the result of draining one entity type
type TypeReport struct {
	Err        error // последняя transient ошибка, если задача остановилась
	EntityType models.EntityType
	Applied    int
	Dropped    int
	Remaining  int // записи снимка, оставшиеся в очереди
	Halted     bool
}

// Report aggregates one worker run
type Report struct {
	StartedAt time.Time
	Types     []TypeReport
	Duration  time.Duration
	Purged    int // повреждённые записи очереди, удалённые перед проходом
	Outcome   Outcome
}

// Applied returns the number of mutations confirmed by the remote store
func (r Report) Applied() int {
	n := 0
	for _, t := range r.Types {
		n += t.Applied
	}
	return n
}

// Dropped returns the number of rejected or corrupt mutations removed from the queue
func (r Report) Dropped() int {
	n := r.Purged
	for _, t := range r.Types {
		n += t.Dropped
	}
	return n
}

// Remaining returns the number of mutations left queued by halted tasks
func (r Report) Remaining() int {
	n := 0
	for _, t := range r.Types {
		n += t.Remaining
	}
	return n
}

// For returns the report of one entity type
func (r Report) For(t models.EntityType) (TypeReport, bool) {
	for _, tr := range r.Types {
		if tr.EntityType == t {
			return tr, true
		}
	}
	return TypeReport{}, false
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: applied=%d dropped=%d remaining=%d", r.Outcome, r.Applied(), r.Dropped(), r.Remaining())
	for _, t := range r.Types {
		if t.Halted {
			fmt.Fprintf(&b, " [%s halted: %v]", t.EntityType, t.Err)
		}
	}
	return b.String()
}
