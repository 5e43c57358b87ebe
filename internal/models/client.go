package models

import (
	"time"
)

// Client is the counterparty of one or more contracts
type Client struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	ClientID           string    `gorm:"size:64;uniqueIndex;not null" json:"clientId"`
	CompanyName        string    `gorm:"not null" json:"companyName"`
	ContactName        string    `json:"contactName"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	Industry           string    `json:"industry"`
	ContractCount      int       `json:"contractCount"`
	TotalContractValue float64   `gorm:"type:decimal(18,2)" json:"totalContractValue"`
	PaymentHistory     string    `gorm:"size:16" json:"paymentHistory"`
	CreditRating       string    `gorm:"size:8" json:"creditRating"`
	RiskScore          int       `json:"riskScore"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Client
func (Client) TableName() string {
	return "clients"
}

// Payment history classification
const (
	PaymentHistoryExcellent = "Excellent"
	PaymentHistoryGood      = "Good"
	PaymentHistoryFair      = "Fair"
	PaymentHistoryPoor      = "Poor"
)
