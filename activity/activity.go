package activity

import (
	"time"

	"gorm.io/gorm"

	"quid/models"
)

// ActivityModule keeps the alias/IP log and computes reply statistics.
type ActivityModule struct {
	db *gorm.DB
}

func NewActivityModule(db *gorm.DB) *ActivityModule {
	return &ActivityModule{db: db}
}

// LogAlias records that alias posted from ip. Failures are ignored: the log is
// only a hint and must never block a reply.
func (a *ActivityModule) LogAlias(ip, alias string) {
	if a == nil || a.db == nil {
		return
	}
	if ip == "" {
		ip = "0.0.0.0"
	}
	_ = a.db.Create(&models.AliasIP{
		IP:       ip,
		Alias:    alias,
		LastSeen: time.Now().UTC(),
	}).Error
}

// KnownAlias returns the most recent alias used from ip, or "".
func (a *ActivityModule) KnownAlias(ip string) string {
	if a == nil || a.db == nil || ip == "" {
		return ""
	}
	var entry models.AliasIP
	if err := a.db.Where("ip = ?", ip).Order("id DESC").Limit(1).Find(&entry).Error; err != nil {
		return ""
	}
	return entry.Alias
}

// RecentAliases returns the last n alias log entries, newest first.
func (a *ActivityModule) RecentAliases(n int) []models.AliasIP {
	var entries []models.AliasIP
	if a == nil || a.db == nil {
		return entries
	}
	a.db.Order("id DESC").Limit(n).Find(&entries)
	return entries
}

// DayReplies is the number of replies posted on one day.
type DayReplies struct {
	Date  string
	Count int64
}

// PrologueReplies is the number of recent replies on one prologue.
type PrologueReplies struct {
	PrologueID uint
	Title      string
	Count      int64
}

// Totals counts every table shown on the dashboard.
type Totals struct {
	Prologues      int64
	Replies        int64
	InterestEmails int64
}

func (a *ActivityModule) GetTotals() Totals {
	var t Totals
	if a == nil || a.db == nil {
		return t
	}
	a.db.Model(&models.Prologue{}).Count(&t.Prologues)
	a.db.Model(&models.Reply{}).Count(&t.Replies)
	a.db.Model(&models.InterestEmail{}).Count(&t.InterestEmails)
	return t
}

// GetRepliesByDay returns one entry per day for the last n days, oldest first,
// with zero counts for days without replies.
func (a *ActivityModule) GetRepliesByDay(days int) []DayReplies {
	if a == nil || a.db == nil || days <= 0 {
		return []DayReplies{}
	}

	now := time.Now().UTC()
	startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	var results []struct {
		Date  string
		Count int64
	}

	a.db.Model(&models.Reply{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("created_at >= ?", startDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&results)

	dayReplies := make([]DayReplies, days)
	for i := 0; i < days; i++ {
		dayReplies[i] = DayReplies{
			Date: startDate.AddDate(0, 0, i).Format("2006-01-02"),
		}
	}

	for _, result := range results {
		for i := range dayReplies {
			if dayReplies[i].Date == result.Date {
				dayReplies[i].Count = result.Count
				break
			}
		}
	}

	return dayReplies
}

// GetTopPrologues returns the prologues with the most replies over the last
// days, most active first.
func (a *ActivityModule) GetTopPrologues(days int, limit int) []PrologueReplies {
	if a == nil || a.db == nil {
		return []PrologueReplies{}
	}

	startDate := time.Now().UTC().AddDate(0, 0, -days)

	var results []PrologueReplies
	a.db.Model(&models.Reply{}).
		Select("replies.prologue_id as prologue_id, prologues.title as title, COUNT(*) as count").
		Joins("JOIN prologues ON prologues.id = replies.prologue_id").
		Where("replies.created_at >= ?", startDate).
		Group("replies.prologue_id, prologues.title").
		Order("count DESC, replies.prologue_id DESC").
		Limit(limit).
		Scan(&results)

	return results
}
