package models

import "time"

type Category struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// Prologue is a top-level discussion thread.
type Prologue struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title      string    `gorm:"not null" json:"title"`
	Content    string    `gorm:"type:text" json:"content"`
	CategoryID *uint     `gorm:"index" json:"category_id"`
	Category   *Category `json:"category,omitempty"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	Replies    []Reply   `gorm:"constraint:OnDelete:CASCADE" json:"replies,omitempty"`
}

// CategoryName returns the category label, or "" for an uncategorized prologue.
func (p Prologue) CategoryName() string {
	if p.Category == nil {
		return ""
	}
	return p.Category.Name
}

type Reply struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PrologueID uint      `gorm:"not null;index" json:"prologue_id"`
	Alias      string    `json:"alias"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IP         string    `json:"-"` // never rendered
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

type InterestEmail struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"not null" json:"email"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// AliasIP records which alias was last used from an address.
type AliasIP struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	IP       string    `gorm:"not null;index" json:"ip"`
	Alias    string    `gorm:"not null" json:"alias"`
	LastSeen time.Time `gorm:"not null" json:"last_seen"`
}
