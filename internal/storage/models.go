package storage

type RaffleAction struct {
	ID                  int64      `gorm:"primaryKey"`
	LogIndex            uint64     `gorm:"uniqueIndex"`
	ActionType          ActionType `gorm:"index"`
	Contract            string     `gorm:"not null"`
	Address             string
	RequestID           string
	Amount              string
	TransactionHash     string `gorm:"not null"`
	TransactionUnixTime int64  `gorm:"not null"`
}

type ActionTouch struct {
	Contract string `gorm:"primaryKey"`
	LogIndex uint64 `gorm:"not null"`
}

type EntrantStatus struct {
	Contract            string `gorm:"primaryKey"`
	Address             string `gorm:"primaryKey"`
	RoundTickets        uint64 `gorm:"default:0"`
	TotalTickets        uint64 `gorm:"default:0"`
	Wins                uint64 `gorm:"default:0"`
	TotalWon            string `gorm:"not null"`
	LastEnteredUnixTime int64  `gorm:"default:0"`
}

type RoundRecord struct {
	ID              string `gorm:"primaryKey"`
	Contract        string `gorm:"index;not null"`
	Number          uint64 `gorm:"not null"`
	RequestID       string `gorm:"uniqueIndex"`
	Entrants        uint64 `gorm:"default:0"`
	Winner          string
	Amount          string
	ClosedUnixTime  int64 `gorm:"not null"`
	SettledUnixTime int64 `gorm:"default:0"`
}
