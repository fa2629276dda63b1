// Package transactions serves synthetic bank transaction histories
package transactions

import (
	"net/http"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-modulus/internal/models"
	"github.com/prasenjit/go-modulus/internal/service"
)

// Transaction types
const (
	Debit  = "DEBIT"
	Credit = "CREDIT"
)

const dateLayout = "2006-01-02"

// Transaction is one synthetic ledger line
type Transaction struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Channel     string `json:"channel"`
}

// History is the response body
type History struct {
	UserID       string        `json:"userId"`
	Transactions []Transaction `json:"transactions"`
}

var debitChannels = []string{
	"Debit Card",
	"Cash Withdrawal",
	"ATM Withdrawal",
	"UPI Debit",
	"Internet Banking Debit",
}

var creditChannels = []string{
	"Credit Card",
	"UPI",
	"Internet Banking",
	"Digital Wallet",
	"E-commerce",
}

var descriptions = map[string][]string{
	"Debit Card": {
		"Grocery purchase at supermarket",
		"Clothing and apparel purchase",
		"Dining/restaurant spend",
		"Electronics store purchase",
		"Fuel station payment",
		"Pharmacy/medical store purchase",
	},
	"Cash Withdrawal": {
		"Cash withdrawn at bank branch counter",
		"Cash withdrawal via teller",
		"Over-the-counter cash withdrawal",
	},
	"ATM Withdrawal": {
		"Cash withdrawal at ATM",
		"ATM cash dispense transaction",
		"Cash withdrawn from out-of-network ATM",
	},
	"UPI Debit": {
		"UPI payment to merchant",
		"UPI transfer to friend",
		"UPI payment for food delivery",
		"Bill payment via UPI",
		"UPI transfer to utility provider",
	},
	"Internet Banking Debit": {
		"Online bill payment via net banking",
		"Fund transfer using NEFT/IMPS",
		"Subscription renewal through internet banking",
		"Utility payment using net banking",
		"E-commerce purchase through internet banking",
	},
	"Credit Card": {
		"Refund from merchant on credit card",
		"Cashback credited to credit card account",
		"Reward points redemption credit",
		"Reversal of previous card transaction",
		"Credit card promotional bonus credit",
	},
	"UPI": {
		"UPI transfer received from friend",
		"UPI refund from merchant",
		"UPI payment reversal credit",
		"Salary component received via UPI",
		"UPI cashback credited",
	},
	"Internet Banking": {
		"Salary credited via net banking",
		"NEFT/IMPS transfer received",
		"Refund from e-commerce site via net banking",
		"Interest income credited",
		"Reversal of previous bank charge",
	},
	"Digital Wallet": {
		"Wallet cashback credited",
		"Refund from wallet transaction",
		"Wallet top-up reversal",
		"Promotional credit added to wallet",
		"Peer-to-peer wallet transfer received",
	},
	"E-commerce": {
		"Online order refund processed",
		"Return item credit from marketplace",
		"Promotional credit from e-commerce platform",
		"Reversal of duplicate online transaction",
		"Gift card balance credited after refund",
	},
}

// Service is the transaction details mock
type Service struct {
	faker *gofakeit.Faker
	now   func() time.Time
}

// New creates the mock. A zero seed picks a random one.
func New(seed int64) *Service {
	return &Service{
		faker: gofakeit.New(seed),
		now:   time.Now,
	}
}

// Describe implements service.Describer
func (s *Service) Describe() service.Metadata {
	return service.Metadata{
		Name:             "Transaction Details",
		Description:      "Mocks to fake transaction details",
		DefaultVariantID: "success",
		Variants: []models.VariantMeta{
			{ID: "success", Name: "success"},
			{ID: "error", Name: "error"},
		},
	}
}

// Register implements service.CodeService
func (s *Service) Register(group *gin.RouterGroup) {
	group.GET("/api/users/:userId/transactions", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.History(c.Param("userId")))
	})
}

// History builds 5 to 100 daily transactions starting 6 to 24 months ago
func (s *Service) History(userID string) History {
	daysAgo := s.faker.Number(6*30, 24*30)
	base := s.now().AddDate(0, 0, -daysAgo)
	count := s.faker.Number(5, 100)

	txs := make([]Transaction, 0, count)
	for i := 0; i < count; i++ {
		txType := Debit
		// Opening entry is always a credit, the rest mostly debits
		if i == 0 || s.faker.Number(0, 24) == 0 {
			txType = Credit
		}
		txs = append(txs, s.transaction(base.AddDate(0, 0, i), txType))
	}

	return History{UserID: userID, Transactions: txs}
}

func (s *Service) transaction(date time.Time, txType string) Transaction {
	channels := debitChannels
	if txType == Credit {
		channels = creditChannels
	}
	channel := s.faker.RandomString(channels)

	return Transaction{
		Date:        date.Format(dateLayout),
		Description: s.faker.RandomString(descriptions[channel]),
		Type:        txType,
		Amount:      strconv.Itoa(s.faker.Number(0, 9999)),
		Channel:     channel,
	}
}
