package sqlstore

import (
	"bank_ledger/internal/repository"
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var _ repository.Persister = (*Persister)(nil)

const batchSize = 200

// Persister mirrors the three collections into SQL tables. Each Save replaces
// the table contents inside one database transaction.
type Persister struct {
	db *gorm.DB
}

// Open connects with the named driver ("sqlite" or "postgres") and migrates
// the schema.
func Open(driver, dsn string) (*Persister, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	p := New(db)
	if err := p.Migrate(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func New(db *gorm.DB) *Persister {
	return &Persister{db: db}
}

func (p *Persister) Migrate() error {
	if err := p.db.AutoMigrate(&customerModel{}, &accountModel{}, &transactionModel{}); err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return nil
}

func (p *Persister) Load(ctx context.Context) (*repository.Snapshot, error) {
	db := p.db.WithContext(ctx)

	var customers []customerModel
	if err := db.Order("position ASC").Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}
	var accounts []accountModel
	if err := db.Order("position ASC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	var transactions []transactionModel
	if err := db.Order("position ASC").Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	if len(customers) == 0 && len(accounts) == 0 && len(transactions) == 0 {
		return nil, nil
	}

	snapshot := repository.EmptySnapshot()
	for _, m := range customers {
		snapshot.Customers = append(snapshot.Customers, m.toDomain())
	}
	for _, m := range accounts {
		account, err := m.toDomain()
		if err != nil {
			return nil, err
		}
		snapshot.Accounts = append(snapshot.Accounts, account)
	}
	for _, m := range transactions {
		tx, err := m.toDomain()
		if err != nil {
			return nil, err
		}
		snapshot.Transactions = append(snapshot.Transactions, tx)
	}

	return snapshot, nil
}

func (p *Persister) Save(ctx context.Context, snapshot *repository.Snapshot) error {
	customers := make([]customerModel, 0, len(snapshot.Customers))
	for i, c := range snapshot.Customers {
		customers = append(customers, fromCustomer(c, i))
	}
	accounts := make([]accountModel, 0, len(snapshot.Accounts))
	for i, a := range snapshot.Accounts {
		accounts = append(accounts, fromAccount(a, i))
	}
	transactions := make([]transactionModel, 0, len(snapshot.Transactions))
	for i, tx := range snapshot.Transactions {
		transactions = append(transactions, fromTransaction(tx, i))
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := all.Delete(&transactionModel{}).Error; err != nil {
			return err
		}
		if err := all.Delete(&accountModel{}).Error; err != nil {
			return err
		}
		if err := all.Delete(&customerModel{}).Error; err != nil {
			return err
		}

		if len(customers) > 0 {
			if err := tx.CreateInBatches(customers, batchSize).Error; err != nil {
				return err
			}
		}
		if len(accounts) > 0 {
			if err := tx.CreateInBatches(accounts, batchSize).Error; err != nil {
				return err
			}
		}
		if len(transactions) > 0 {
			if err := tx.CreateInBatches(transactions, batchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

func (p *Persister) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
