package models

import "time"

// Post is a top-level article on the board.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null" json:"userId"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Image     *string   `gorm:"size:512" json:"image"` // /uploads/<name>, NULL when no file was attached
	Likes     int       `gorm:"not null;default:0" json:"likes"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Comments  []Comment `gorm:"foreignKey:PostID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"Comments"`
}

// HasImage reports whether an upload is attached.
func (p Post) HasImage() bool {
	return p.Image != nil && *p.Image != ""
}
