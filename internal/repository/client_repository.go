package repository

import (
	"context"

	"github.com/sjperalta/fintera-contracts/internal/models"
	"gorm.io/gorm"
)

// ClientRepository defines the interface for client data access
type ClientRepository interface {
	FindByClientID(ctx context.Context, clientID string) (*models.Client, error)
	FindAll(ctx context.Context) ([]models.Client, error)
	List(ctx context.Context, query *ListQuery) ([]models.Client, int64, error)
	Create(ctx context.Context, client *models.Client) error
	Update(ctx context.Context, client *models.Client) error
	UpdateRisk(ctx context.Context, clientID string, riskScore int, rating, history string) error
	RefreshTotals(ctx context.Context) (int64, error)
}

type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) FindByClientID(ctx context.Context, clientID string) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).Where("client_id = ?", clientID).First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) FindAll(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	err := r.db.WithContext(ctx).Order("company_name ASC").Find(&clients).Error
	return clients, err
}

var clientSortColumns = map[string]string{
	"companyName":        "company_name",
	"totalContractValue": "total_contract_value",
	"riskScore":          "risk_score",
}

func (r *clientRepository) List(ctx context.Context, query *ListQuery) ([]models.Client, int64, error) {
	var clients []models.Client
	var total int64

	query.Normalize()
	db := r.db.WithContext(ctx).Model(&models.Client{})

	if query.Search != "" {
		search := likePattern(query.Search)
		db = db.Where("LOWER(company_name) LIKE ? ESCAPE '\\' OR LOWER(contact_name) LIKE ? ESCAPE '\\'", search, search)
	}
	if query.Filters["industry"] != "" {
		db = db.Where("industry = ?", query.Filters["industry"])
	}

	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.
		Order(orderClause(query.SortBy, query.SortDir, clientSortColumns, "company_name ASC")).
		Offset(query.Offset()).
		Limit(query.PerPage).
		Find(&clients).Error
	return clients, total, err
}

func (r *clientRepository) Create(ctx context.Context, client *models.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *clientRepository) Update(ctx context.Context, client *models.Client) error {
	return r.db.WithContext(ctx).Save(client).Error
}

func (r *clientRepository) UpdateRisk(ctx context.Context, clientID string, riskScore int, rating, history string) error {
	return r.db.WithContext(ctx).Model(&models.Client{}).
		Where("client_id = ?", clientID).
		Updates(map[string]any{
			"risk_score":      riskScore,
			"credit_rating":   rating,
			"payment_history": history,
		}).Error
}

// RefreshTotals recomputes the denormalized contract count and value of every
// client from its active contracts and returns the number of clients touched.
func (r *clientRepository) RefreshTotals(ctx context.Context) (int64, error) {
	type totalsRow struct {
		ClientID   string
		RowCount   int
		TotalValue float64
	}
	var rows []totalsRow
	if err := r.db.WithContext(ctx).Model(&models.Contract{}).
		Select("client_id, COUNT(*) AS row_count, COALESCE(SUM(total_value), 0) AS total_value").
		Where("is_active = ? AND client_id <> ''", true).
		Group("client_id").
		Scan(&rows).Error; err != nil {
		return 0, err
	}

	var touched int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Client{}).Where("1 = 1").
			Updates(map[string]any{"contract_count": 0, "total_contract_value": 0}).Error; err != nil {
			return err
		}
		for _, row := range rows {
			res := tx.Model(&models.Client{}).Where("client_id = ?", row.ClientID).
				Updates(map[string]any{"contract_count": row.RowCount, "total_contract_value": row.TotalValue})
			if res.Error != nil {
				return res.Error
			}
			touched += res.RowsAffected
		}
		return nil
	})
	return touched, err
}
