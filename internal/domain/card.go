package domain

import "time"

// StudyCard is the optional rich content attached to a single StudyItem.
// There is at most one card per item.
type StudyCard struct {
	ItemID      int64     `json:"item_id"`
	Title       string    `json:"title"`
	Bullets     []string  `json:"bullets"`
	ImagePaths  []string  `json:"image_paths"`
	ExternalURL string    `json:"external_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasImages reports whether the card carries at least one image.
func (c StudyCard) HasImages() bool {
	return len(c.ImagePaths) > 0
}
