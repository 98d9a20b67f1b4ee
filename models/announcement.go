package models

// Announcement is the single current club message. Empty text means nothing to show.
type Announcement struct {
	Text string `json:"text"`
}
