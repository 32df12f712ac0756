package api

import (
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/fratpos/internal/app"
	iauth "github.com/charlesng35/fratpos/internal/auth"
	"github.com/charlesng35/fratpos/internal/permissions"
	"github.com/charlesng35/fratpos/internal/services"
)

// Services bundles the application services shared by the router, the
// bootstrap sequence and background jobs.
type Services struct {
	Checker      *permissions.Checker
	Audit        *services.AuditService
	Users        *services.UserService
	Auth         *services.AuthService
	Permissions  *services.PermissionService
	Products     *services.ProductService
	Statuses     *services.StatusService
	Paytypes     *services.PaytypeService
	Obligations  *services.ObligationCatalogService
	Assignments  *services.ObligationService
	Feedback     *services.FeedbackService
	Transactions *services.TransactionService
}

// NewServices constructs every service against db. Catalog and POS changes are
// published through publisher, which may be nil.
func NewServices(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, publisher services.EventPublisher) (*Services, error) {
	if db == nil {
		return nil, errors.New("api: database handle must be provided")
	}
	if jwt == nil {
		return nil, errors.New("api: jwt service must be provided")
	}
	if cfg == nil {
		return nil, errors.New("api: config must be provided")
	}

	var (
		s   Services
		err error
	)

	if s.Checker, err = permissions.NewChecker(db); err != nil {
		return nil, err
	}
	if s.Audit, err = services.NewAuditService(db); err != nil {
		return nil, err
	}
	if s.Users, err = services.NewUserService(db, s.Audit); err != nil {
		return nil, err
	}
	if s.Auth, err = services.NewAuthService(s.Users, jwt, s.Audit); err != nil {
		return nil, err
	}
	if s.Permissions, err = services.NewPermissionService(db, s.Audit); err != nil {
		return nil, err
	}
	if s.Products, err = services.NewProductService(db, s.Audit, publisher); err != nil {
		return nil, err
	}
	if s.Statuses, err = services.NewStatusService(db, s.Audit, publisher); err != nil {
		return nil, err
	}
	if s.Paytypes, err = services.NewPaytypeService(db, s.Audit, publisher); err != nil {
		return nil, err
	}
	if s.Obligations, err = services.NewObligationCatalogService(db, s.Audit); err != nil {
		return nil, err
	}
	if s.Assignments, err = services.NewObligationService(db, s.Audit); err != nil {
		return nil, err
	}
	if s.Feedback, err = services.NewFeedbackService(db, s.Audit); err != nil {
		return nil, err
	}
	if s.Transactions, err = services.NewTransactionService(db, s.Audit, publisher, cfg.POS.RecentTransactions); err != nil {
		return nil, err
	}

	return &s, nil
}
