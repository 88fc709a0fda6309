package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pharmacy/internal/domain"
)

// OpenPostgres connects through the pgx stdlib driver and wraps the pool in gorm.
func OpenPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	const op = "OpenPostgres"
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sqlDB, err := sql.Open("pgx", stdlib.RegisterConnConfig(connConfig))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return db, nil
}

type medicineRow struct {
	ID                   string          `gorm:"primaryKey"`
	Position             int             `gorm:"not null"`
	Name                 string          `gorm:"not null"`
	Brand                string          `gorm:"not null"`
	Description          string
	Price                decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Image                string
	Category             string   `gorm:"not null"`
	RequiresPrescription bool     `gorm:"not null"`
	Dosage               string
	SideEffects          []string `gorm:"serializer:json"`
	Ingredients          []string `gorm:"serializer:json"`
	InStock              bool     `gorm:"not null"`
	Rating               float64
	ReviewCount          int
	DiscountPercentage   int
}

func (medicineRow) TableName() string { return "medicines" }

func (r medicineRow) toDomain() domain.Medicine {
	return domain.Medicine{
		ID:                   r.ID,
		Name:                 r.Name,
		Brand:                r.Brand,
		Description:          r.Description,
		Price:                r.Price,
		Image:                r.Image,
		Category:             domain.Category(r.Category),
		RequiresPrescription: r.RequiresPrescription,
		Dosage:               r.Dosage,
		SideEffects:          r.SideEffects,
		Ingredients:          r.Ingredients,
		InStock:              r.InStock,
		Rating:               r.Rating,
		ReviewCount:          r.ReviewCount,
		DiscountPercentage:   r.DiscountPercentage,
	}
}

type orderRow struct {
	ID                string                 `gorm:"primaryKey"`
	UserID            string                 `gorm:"index;not null"`
	Items             []domain.OrderLine     `gorm:"serializer:json"`
	TotalAmount       decimal.Decimal        `gorm:"type:numeric(12,2);not null"`
	Status            string                 `gorm:"not null"`
	ShippingAddress   domain.ShippingAddress `gorm:"serializer:json"`
	PaymentMethod     string                 `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	EstimatedDelivery *time.Time
	TrackingNumber    string
}

func (orderRow) TableName() string { return "orders" }

func orderToRow(o domain.Order) orderRow {
	return orderRow{
		ID:                o.ID,
		UserID:            o.UserID,
		Items:             o.Items,
		TotalAmount:       o.TotalAmount,
		Status:            string(o.Status),
		ShippingAddress:   o.ShippingAddress,
		PaymentMethod:     string(o.PaymentMethod),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		EstimatedDelivery: o.EstimatedDelivery,
		TrackingNumber:    o.TrackingNumber,
	}
}

func (r orderRow) toDomain() domain.Order {
	return domain.Order{
		ID:                r.ID,
		UserID:            r.UserID,
		Items:             r.Items,
		TotalAmount:       r.TotalAmount,
		Status:            domain.OrderStatus(r.Status),
		ShippingAddress:   r.ShippingAddress,
		PaymentMethod:     domain.PaymentMethod(r.PaymentMethod),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		EstimatedDelivery: r.EstimatedDelivery,
		TrackingNumber:    r.TrackingNumber,
	}
}

type profileRow struct {
	UID               string `gorm:"primaryKey"`
	Email             string
	DisplayName       string
	FirstName         string
	LastName          string
	PhoneNumber       string
	Address           string
	City              string
	State             string
	PinCode           string
	MedicalConditions []string `gorm:"serializer:json"`
	Allergies         []string `gorm:"serializer:json"`
	Medications       []string `gorm:"serializer:json"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (profileRow) TableName() string { return "profiles" }

func profileToRow(p domain.UserProfile) profileRow {
	return profileRow(p)
}

func (r profileRow) toDomain() domain.UserProfile {
	return domain.UserProfile(r)
}

type accountRow struct {
	UID          string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	DisplayName  string
	PasswordHash string `gorm:"not null"`
	TokenVersion int    `gorm:"not null;default:0"`
	CreatedAt    time.Time
}

func (accountRow) TableName() string { return "accounts" }

type stateRow struct {
	Key       string `gorm:"column:state_key;primaryKey"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (stateRow) TableName() string { return "workspace_state" }

type gormTxKey struct{}

// GormStore implements every repository interface on one postgres database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var (
	_ MedicineSource    = (*GormStore)(nil)
	_ DocumentStore     = (*GormStore)(nil)
	_ AccountRepository = (*GormStore)(nil)
	_ StateStore        = (*GormStore)(nil)
	_ TxManager         = (*GormStore)(nil)
)

// conn returns the transaction bound to ctx, if any.
func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func (s *GormStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, gormTxKey{}, tx))
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) ListMedicines(ctx context.Context) ([]domain.Medicine, error) {
	var rows []medicineRow
	if err := s.conn(ctx).Order("position asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Medicine, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ImportMedicines upserts the catalog keeping the given order.
func (s *GormStore) ImportMedicines(ctx context.Context, ms []domain.Medicine) error {
	if len(ms) == 0 {
		return nil
	}
	rows := make([]medicineRow, 0, len(ms))
	for i, m := range ms {
		rows = append(rows, medicineRow{
			ID:                   m.ID,
			Position:             i,
			Name:                 m.Name,
			Brand:                m.Brand,
			Description:          m.Description,
			Price:                m.Price,
			Image:                m.Image,
			Category:             string(m.Category),
			RequiresPrescription: m.RequiresPrescription,
			Dosage:               m.Dosage,
			SideEffects:          m.SideEffects,
			Ingredients:          m.Ingredients,
			InStock:              m.InStock,
			Rating:               m.Rating,
			ReviewCount:          m.ReviewCount,
			DiscountPercentage:   m.DiscountPercentage,
		})
	}
	return s.conn(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func (s *GormStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	o.ID = uuid.NewString()
	row := orderToRow(*o)
	return s.conn(ctx).Create(&row).Error
}

func (s *GormStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var row orderRow
	if err := s.conn(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	o := row.toDomain()
	return &o, nil
}

func (s *GormStore) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	var rows []orderRow
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *GormStore) UpdateOrder(ctx context.Context, id string, patch domain.OrderPatch) (*domain.Order, error) {
	fields := map[string]any{"updated_at": patch.UpdatedAt}
	if patch.Status != nil {
		fields["status"] = string(*patch.Status)
	}
	if patch.TrackingNumber != nil {
		fields["tracking_number"] = *patch.TrackingNumber
	}
	res := s.conn(ctx).Model(&orderRow{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetOrder(ctx, id)
}

func (s *GormStore) PutProfile(ctx context.Context, p domain.UserProfile) error {
	row := profileToRow(p)
	return s.conn(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *GormStore) GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	var row profileRow
	if err := s.conn(ctx).Where("uid = ?", uid).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	p := row.toDomain()
	return &p, nil
}

func (s *GormStore) MergeProfile(ctx context.Context, uid string, u domain.ProfileUpdate, at time.Time) (*domain.UserProfile, error) {
	var merged domain.UserProfile
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		var row profileRow
		err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("uid = ?", uid).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = profileRow{UID: uid, CreatedAt: at}
		case err != nil:
			return err
		}
		merged = row.toDomain()
		u.ApplyTo(&merged)
		merged.UpdatedAt = at
		next := profileToRow(merged)
		return s.conn(ctx).Save(&next).Error
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func (s *GormStore) CreateAccount(ctx context.Context, a Account) error {
	row := accountRow{
		UID:          a.UID,
		Email:        strings.ToLower(a.Email),
		DisplayName:  a.DisplayName,
		PasswordHash: a.PasswordHash,
		TokenVersion: a.TokenVersion,
		CreatedAt:    a.CreatedAt,
	}
	err := s.conn(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *GormStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.findAccount(ctx, "email = ?", strings.ToLower(email))
}

func (s *GormStore) GetAccountByUID(ctx context.Context, uid string) (*Account, error) {
	return s.findAccount(ctx, "uid = ?", uid)
}

func (s *GormStore) findAccount(ctx context.Context, query string, arg any) (*Account, error) {
	var row accountRow
	if err := s.conn(ctx).Where(query, arg).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return &Account{
		UID:          row.UID,
		Email:        row.Email,
		DisplayName:  row.DisplayName,
		PasswordHash: row.PasswordHash,
		TokenVersion: row.TokenVersion,
		CreatedAt:    row.CreatedAt,
	}, nil
}

func (s *GormStore) BumpTokenVersion(ctx context.Context, uid string) (int, error) {
	res := s.conn(ctx).Model(&accountRow{}).
		Where("uid = ?", uid).
		Update("token_version", gorm.Expr("token_version + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	a, err := s.GetAccountByUID(ctx, uid)
	if err != nil {
		return 0, err
	}
	return a.TokenVersion, nil
}

func (s *GormStore) GetState(ctx context.Context, key string) ([]byte, error) {
	var row stateRow
	if err := s.conn(ctx).Where("state_key = ?", key).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.Value, nil
}

func (s *GormStore) PutState(ctx context.Context, key string, value []byte) error {
	row := stateRow{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.conn(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *GormStore) DeleteState(ctx context.Context, key string) error {
	return s.conn(ctx).Where("state_key = ?", key).Delete(&stateRow{}).Error
}
