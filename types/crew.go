package types

import (
	"time"
)

type Member struct {
	ID       string    `json:"id"`
	Name     string    `json:"name" validate:"required,min=1,max=120"`
	Email    string    `json:"email" validate:"omitempty,email"`
	JoinedAt time.Time `json:"joined_at"`
}

type CleanupEntry struct {
	ID        string    `json:"id"`
	BeachSlug string    `json:"beach_slug" validate:"required"`
	Date      time.Time `json:"date"`
	Bags      int       `json:"bags" validate:"min=0,max=10000"`
	MemberIDs []string  `json:"member_ids,omitempty"`
	Notes     string    `json:"notes,omitempty" validate:"max=2000"`
}

type CleanupStats struct {
	TotalCleanups int            `json:"total_cleanups"`
	TotalBags     int            `json:"total_bags"`
	BagsByBeach   map[string]int `json:"bags_by_beach"`
	CrewSize      int            `json:"crew_size"`
}
