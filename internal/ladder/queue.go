package ladder

// MatchWindow is the widest rating gap the queue will pair.
const MatchWindow = 150

// RatingSource resolves the current rating of a queued player.
type RatingSource interface {
	RatingOf(id string) (int, bool)
}

// Queue is the FIFO matchmaking pool. Pairing only happens when someone joins.
type Queue struct {
	ids []string
}

func NewQueue() *Queue { return &Queue{} }

func (q *Queue) Join(id string) error {
	if q.Contains(id) {
		return ErrAlreadyQueued
	}
	q.ids = append(q.ids, id)
	return nil
}

func (q *Queue) Leave(id string) error {
	if !q.Remove(id) {
		return ErrNotQueued
	}
	return nil
}

// Remove drops id if present and reports whether it was queued.
func (q *Queue) Remove(id string) bool {
	for i, v := range q.ids {
		if v == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) Contains(id string) bool {
	for _, v := range q.ids {
		if v == id {
			return true
		}
	}
	return false
}

// FindMatch pairs id with the closest-rated waiting player inside MatchWindow.
// The earliest queued candidate wins a tie. On success both leave the queue;
// otherwise id stays where it is.
func (q *Queue) FindMatch(id string, ratings RatingSource) (string, bool) {
	own, ok := ratings.RatingOf(id)
	if !ok {
		return "", false
	}
	best, bestDiff := "", MatchWindow+1
	for _, c := range q.ids {
		if c == id {
			continue
		}
		r, ok := ratings.RatingOf(c)
		if !ok {
			continue
		}
		diff := own - r
		if diff < 0 {
			diff = -diff
		}
		if diff <= MatchWindow && diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	if best == "" {
		return "", false
	}
	q.Remove(id)
	q.Remove(best)
	return best, true
}

// Snapshot returns the queued ids in order.
func (q *Queue) Snapshot() []string {
	out := make([]string, len(q.ids))
	copy(out, q.ids)
	return out
}

func (q *Queue) Len() int { return len(q.ids) }
