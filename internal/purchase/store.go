package purchase

import (
	"sarvbot/internal/models"
	"sarvbot/internal/repository"
)

// DBStore adapts the repository layer to the Store interface.
type DBStore struct {
	Users     *repository.UserRepository
	Products  *repository.ProductRepository
	Panels    *repository.PanelRepository
	Purchases *repository.PurchaseStore
}

func (s *DBStore) FindUser(chatID string) (*models.User, error) {
	return s.Users.FindByID(chatID)
}

func (s *DBStore) FindProduct(code string) (*models.Product, error) {
	return s.Products.FindByCode(code)
}

func (s *DBStore) FindPanel(code string) (*models.Panel, error) {
	return s.Panels.FindByCode(code)
}

func (s *DBStore) Commit(invoice *models.Invoice, referrerID string, referralReward int64) error {
	return s.Purchases.Commit(invoice, referrerID, referralReward)
}
