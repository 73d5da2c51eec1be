package board

import (
	"errors"

	"gorm.io/gorm"

	"quid/models"
)

// listPrologues returns the newest prologues first. An unknown category name
// yields an empty list.
func (b *BoardModule) listPrologues(category string) ([]models.Prologue, error) {
	prologues := []models.Prologue{}

	query := b.db.Preload("Category").Order("id DESC").Limit(b.listLimit)
	if category != "" {
		var cat models.Category
		err := b.db.Where("name = ?", category).First(&cat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return prologues, nil
		}
		if err != nil {
			return nil, err
		}
		query = query.Where("category_id = ?", cat.ID)
	}

	err := query.Find(&prologues).Error
	return prologues, err
}

func (b *BoardModule) getPrologue(id uint) (*models.Prologue, error) {
	var p models.Prologue
	err := b.db.Preload("Category").First(&p, id).Error
	return &p, err
}

// listReplies returns replies oldest first.
func (b *BoardModule) listReplies(prologueID uint) ([]models.Reply, error) {
	replies := []models.Reply{}
	err := b.db.Where("prologue_id = ?", prologueID).Order("id ASC").Find(&replies).Error
	return replies, err
}

func (b *BoardModule) createReply(reply *models.Reply) error {
	return b.db.Create(reply).Error
}
