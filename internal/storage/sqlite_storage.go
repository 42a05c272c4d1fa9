package storage

import (
	"errors"
	"fmt"

	"lottery/internal/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type SqliteStorage struct {
	db *gorm.DB
}

func NewSqliteStorage(path string) (*SqliteStorage, error) {

	logger.Debug("initializing database...", zap.String("path", path))
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	err = db.AutoMigrate(
		&RaffleAction{},
		&ActionTouch{},
		&EntrantStatus{},
		&RoundRecord{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	logger.Debug("initializing database... done")
	return &SqliteStorage{
		db: db,
	}, nil
}

func (s *SqliteStorage) Transaction(fn func(Storage) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&SqliteStorage{db: tx})
	})
}

func (s *SqliteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func (s *SqliteStorage) GetActions(contract string, actionType ActionType) ([]*RaffleAction, error) {

	var actions []*RaffleAction
	err := s.db.Where("contract = ? and action_type = ?", contract, actionType).Order("log_index asc").Find(&actions).Error

	if err != nil {
		return nil, err
	}

	return actions, nil
}

func (s *SqliteStorage) UpdateActions(actions []*RaffleAction) error {
	logger.Debug("update raffle actions...")

	if len(actions) == 0 {
		logger.Debug("no raffle actions to persist")
		return nil
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "log_index"}},
		DoNothing: true,
	}).CreateInBatches(actions, 100).Error

	if err != nil {
		return err
	}

	logger.Debug("update raffle actions...done", zap.Int("count", len(actions)))
	return nil
}

func (s *SqliteStorage) GetActionTouch(contract string) (uint64, error) {
	logger.Debug("getting next log index...")

	var logIndex uint64
	err := s.db.Raw(`
		select coalesce(max(log_index), 0) as log_index
		from action_touches
		where contract = ?
	`, contract).Scan(&logIndex).Error

	if err != nil {
		return 0, err
	}

	logger.Debug("getting next log index... done", zap.Uint64("logIndex", logIndex))
	return logIndex, nil
}

func (s *SqliteStorage) UpdateActionTouch(actionTouch *ActionTouch) error {
	logger.Debug("updating action touch...")

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract"}},
		DoUpdates: clause.AssignmentColumns([]string{"log_index"}),
	}).Create(actionTouch).Error

	if err != nil {
		return err
	}

	logger.Debug("updating action touch...done")
	return nil
}

func (s *SqliteStorage) GetEntrantStatus(contract string, address string) (*EntrantStatus, error) {

	var entrantStatus EntrantStatus
	err := s.db.Where("contract = ? and address = ?", contract, address).First(&entrantStatus).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("entrant %s: %w", address, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &entrantStatus, nil
}

func (s *SqliteStorage) GetEntrantStatuses(contract string) ([]*EntrantStatus, error) {

	var entrantStatuses []*EntrantStatus
	tx := s.db.Where("contract = ?", contract).Order("address asc").Find(&entrantStatuses)
	if tx.Error != nil {
		return nil, tx.Error
	}

	return entrantStatuses, nil
}

func (s *SqliteStorage) SumRoundTickets(contract string) (uint64, error) {

	var tickets uint64
	err := s.db.Raw(`
		select coalesce(sum(round_tickets), 0) as tickets
		from entrant_statuses
		where contract = ?
	`, contract).Scan(&tickets).Error

	if err != nil {
		return 0, err
	}

	return tickets, nil
}

func (s *SqliteStorage) UpdateEntrantStatuses(entrantStatuses []*EntrantStatus) error {
	logger.Debug("update entrant statuses...")

	if len(entrantStatuses) == 0 {
		logger.Debug("no entrant statuses to persist")
		return nil
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contract"}, {Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"round_tickets",
			"total_tickets",
			"wins",
			"total_won",
			"last_entered_unix_time",
		}),
	}).CreateInBatches(entrantStatuses, 100).Error
	if err != nil {
		return err
	}

	logger.Debug("update entrant statuses... done")
	return nil
}

func (s *SqliteStorage) ResetRoundTickets(contract string) error {
	return s.db.Model(&EntrantStatus{}).
		Where("contract = ? and round_tickets > 0", contract).
		Update("round_tickets", 0).Error
}

func (s *SqliteStorage) GetRounds(contract string) ([]*RoundRecord, error) {

	var rounds []*RoundRecord
	err := s.db.Where("contract = ?", contract).Order("number asc").Find(&rounds).Error
	if err != nil {
		return nil, err
	}

	return rounds, nil
}

func (s *SqliteStorage) GetOpenRound(contract string) (*RoundRecord, error) {

	var round RoundRecord
	err := s.db.Where("contract = ? and settled_unix_time = 0", contract).Order("number desc").First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("open round of %s: %w", contract, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &round, nil
}

func (s *SqliteStorage) CountRounds(contract string) (uint64, error) {

	var count int64
	err := s.db.Model(&RoundRecord{}).Where("contract = ?", contract).Count(&count).Error
	if err != nil {
		return 0, err
	}

	return uint64(count), nil
}

func (s *SqliteStorage) UpdateRound(round *RoundRecord) error {
	logger.Debug("updating round...", zap.String("id", round.ID), zap.Uint64("number", round.Number))

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(round).Error
	if err != nil {
		return err
	}

	logger.Debug("updating round...done")
	return nil
}

// DeleteContract drops everything indexed for contract.
func (s *SqliteStorage) DeleteContract(contract string) error {
	logger.Debug("deleting contract index...", zap.String("contract", contract))

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&RaffleAction{}, &ActionTouch{}, &EntrantStatus{}, &RoundRecord{}} {
			if err := tx.Where("contract = ?", contract).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("deleting contract index... done")
	return nil
}
