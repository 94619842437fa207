package ledger

import (
	"math/rand"
)

// queue holds receipts waiting for execution.
type queue struct {
	pending []*Receipt
	// rnd is nil for FIFO execution.
	rnd *rand.Rand
}

func newQueue(seed int64, interleave bool) *queue {
	q := &queue{}
	if interleave {
		q.rnd = rand.New(rand.NewSource(seed))
	}
	return q
}

func (q *queue) push(r *Receipt) {
	q.pending = append(q.pending, r)
}

func (q *queue) len() int {
	return len(q.pending)
}

// pop removes the next receipt to execute. With interleaving enabled it is
// chosen at random from the oldest receipts of each pair of predecessor and
// receiver, so the order between two accounts is always kept.
func (q *queue) pop() *Receipt {
	if len(q.pending) == 0 {
		return nil
	}
	i := 0
	if q.rnd != nil {
		seen := make(map[string]struct{})
		var candidates []int
		for n, r := range q.pending {
			pair := string(r.Predecessor) + "|" + string(r.Receiver)
			if _, ok := seen[pair]; ok {
				continue
			}
			seen[pair] = struct{}{}
			candidates = append(candidates, n)
		}
		i = candidates[q.rnd.Intn(len(candidates))]
	}
	r := q.pending[i]
	q.pending = append(q.pending[:i], q.pending[i+1:]...)
	return r
}
