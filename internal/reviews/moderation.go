package reviews

import (
	"math"
	"time"
)

// Approve publishes a pending review. Reviews in any other status are left
// as they are and false is returned.
func Approve(r *Review, operator string, now time.Time) bool {
	if r.Status != StatusPending {
		return false
	}
	r.Status = StatusApproved
	r.ApprovedAt = &now
	r.ApprovedBy = operator
	r.UpdatedAt = now
	return true
}

// Reject hides a review and clears approval metadata.
func Reject(r *Review, now time.Time) bool {
	if r.Status == StatusRejected && r.ApprovedAt == nil && r.ApprovedBy == "" {
		return false
	}
	r.Status = StatusRejected
	clearApproval(r)
	r.UpdatedAt = now
	return true
}

// ResetPending puts a review back in the moderation queue.
func ResetPending(r *Review, now time.Time) bool {
	if r.Status == StatusPending && r.ApprovedAt == nil && r.ApprovedBy == "" {
		return false
	}
	r.Status = StatusPending
	clearApproval(r)
	r.UpdatedAt = now
	return true
}

// ApplyEdit replaces the content and sends the review back to pending,
// whatever its previous status.
func ApplyEdit(r *Review, e Edit, now time.Time) {
	r.Rating = e.Rating
	r.Title = e.Title
	r.Comment = e.Comment
	r.Status = StatusPending
	clearApproval(r)
	r.UpdatedAt = now
}

func clearApproval(r *Review) {
	r.ApprovedAt = nil
	r.ApprovedBy = ""
}

// Summarize builds Stats from per-star counts of approved reviews.
func Summarize(counts map[int]int) Stats {
	s := Stats{Distribution: make(map[int]int, 5)}
	sum := 0
	for star := 1; star <= 5; star++ {
		n := counts[star]
		s.Distribution[star] = n
		s.Count += n
		sum += star * n
	}
	if s.Count > 0 {
		s.Average = math.Round(float64(sum)/float64(s.Count)*10) / 10
	}
	return s
}
