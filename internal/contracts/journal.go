package contracts

import "time"

// JournalEntry is one daily journal note, at most one per user, day
// and account. Playbook responses may attach to an entry via their
// journal_id subject key. File attachments are out of scope.
type JournalEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	AccountID *int64    `json:"account_id,omitempty"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Title     string    `json:"title,omitempty"`
	NotesMD   string    `json:"notes_md,omitempty"`
	Reviewed  bool      `json:"reviewed"`
	TradeIDs  []int64   `json:"trade_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
