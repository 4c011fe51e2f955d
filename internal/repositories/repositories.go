package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schoolhub/internal/models"
)

// Every method takes an optional *gorm.DB so callers inside a transaction can
// pass their tx handle; nil falls back to the repository's pooled connection.

type BranchRepository interface {
	Create(db *gorm.DB, branch *models.Branch) error
	GetByCode(db *gorm.DB, code string) (*models.Branch, error)
	List(db *gorm.DB) ([]models.Branch, error)
}

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Book, error)
	List(db *gorm.DB, branchID *uuid.UUID) ([]models.Book, error)
	// ReserveCopy decrements available_copies iff the book is active and at
	// least one copy remains; returns the number of rows affected.
	ReserveCopy(db *gorm.DB, id uuid.UUID) (int64, error)
	// ReleaseCopy increments available_copies iff it is below total_copies;
	// zero rows affected signals a counter-consistency fault to the caller.
	ReleaseCopy(db *gorm.DB, id uuid.UUID) (int64, error)
	Retire(db *gorm.DB, id uuid.UUID) error
}

type LoanRepository interface {
	Create(db *gorm.DB, loan *models.Loan) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Loan, error)
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Loan, error)
	Update(db *gorm.DB, loan *models.Loan) error
	// CountOverdueActive counts ACTIVE loans for the borrower whose due date
	// is strictly before asOf, across all branches.
	CountOverdueActive(db *gorm.DB, borrower models.BorrowerRef, asOf time.Time) (int64, error)
	ListByBorrower(db *gorm.DB, borrower models.BorrowerRef, branchID *uuid.UUID) ([]models.Loan, error)
}

type FineRepository interface {
	Create(db *gorm.DB, fine *models.Fine) error
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Fine, error)
	GetByLoan(db *gorm.DB, loanID uuid.UUID) (*models.Fine, error)
	Update(db *gorm.DB, fine *models.Fine) error
}

// concrete implementations

type branchRepository struct {
	db *gorm.DB
}

func NewBranchRepository(db *gorm.DB) BranchRepository {
	return &branchRepository{db: db}
}

func (r *branchRepository) Create(db *gorm.DB, branch *models.Branch) error {
	if db == nil {
		db = r.db
	}
	return db.Create(branch).Error
}

func (r *branchRepository) GetByCode(db *gorm.DB, code string) (*models.Branch, error) {
	if db == nil {
		db = r.db
	}
	var branch models.Branch
	if err := db.First(&branch, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *branchRepository) List(db *gorm.DB) ([]models.Branch, error) {
	if db == nil {
		db = r.db
	}
	var branches []models.Branch
	if err := db.Order("code").Find(&branches).Error; err != nil {
		return nil, err
	}
	return branches, nil
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Create(book).Error
}

func (r *bookRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	if err := db.First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&book, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) List(db *gorm.DB, branchID *uuid.UUID) ([]models.Book, error) {
	if db == nil {
		db = r.db
	}
	q := db.Where("status = ?", models.BookStatusActive)
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}
	var books []models.Book
	if err := q.Order("title").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) ReserveCopy(db *gorm.DB, id uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	res := db.Model(&models.Book{}).
		Where("id = ? AND status = ? AND available_copies >= 1", id, models.BookStatusActive).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
	return res.RowsAffected, res.Error
}

func (r *bookRepository) ReleaseCopy(db *gorm.DB, id uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	res := db.Model(&models.Book{}).
		Where("id = ? AND available_copies < total_copies", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies + 1"))
	return res.RowsAffected, res.Error
}

func (r *bookRepository) Retire(db *gorm.DB, id uuid.UUID) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Book{}).
		Where("id = ?", id).
		Update("status", models.BookStatusRetired).
		Error
}

type loanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(db *gorm.DB, loan *models.Loan) error {
	if db == nil {
		db = r.db
	}
	return db.Create(loan).Error
}

func (r *loanRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Loan, error) {
	if db == nil {
		db = r.db
	}
	var loan models.Loan
	if err := db.First(&loan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Loan, error) {
	if db == nil {
		db = r.db
	}
	var loan models.Loan
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&loan, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) Update(db *gorm.DB, loan *models.Loan) error {
	if db == nil {
		db = r.db
	}
	return db.Save(loan).Error
}

func borrowerClause(db *gorm.DB, borrower models.BorrowerRef) *gorm.DB {
	if borrower.Type == models.BorrowerTypeStudent {
		return db.Where("student_id = ?", borrower.ID)
	}
	return db.Where("teacher_id = ?", borrower.ID)
}

func (r *loanRepository) CountOverdueActive(db *gorm.DB, borrower models.BorrowerRef, asOf time.Time) (int64, error) {
	if db == nil {
		db = r.db
	}
	var n int64
	err := borrowerClause(db.Model(&models.Loan{}), borrower).
		Where("status = ? AND due_date < ?", models.LoanStatusActive, asOf).
		Count(&n).Error
	return n, err
}

func (r *loanRepository) ListByBorrower(db *gorm.DB, borrower models.BorrowerRef, branchID *uuid.UUID) ([]models.Loan, error) {
	if db == nil {
		db = r.db
	}
	q := borrowerClause(db.Model(&models.Loan{}), borrower)
	if branchID != nil {
		q = q.Joins("JOIN books ON books.id = loans.book_id").
			Where("books.branch_id = ?", *branchID)
	}
	var loans []models.Loan
	if err := q.Order("issue_date DESC").Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

type fineRepository struct {
	db *gorm.DB
}

func NewFineRepository(db *gorm.DB) FineRepository {
	return &fineRepository{db: db}
}

func (r *fineRepository) Create(db *gorm.DB, fine *models.Fine) error {
	if db == nil {
		db = r.db
	}
	return db.Create(fine).Error
}

func (r *fineRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Fine, error) {
	if db == nil {
		db = r.db
	}
	var fine models.Fine
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&fine, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &fine, nil
}

func (r *fineRepository) GetByLoan(db *gorm.DB, loanID uuid.UUID) (*models.Fine, error) {
	if db == nil {
		db = r.db
	}
	var fine models.Fine
	if err := db.First(&fine, "loan_id = ?", loanID).Error; err != nil {
		return nil, err
	}
	return &fine, nil
}

func (r *fineRepository) Update(db *gorm.DB, fine *models.Fine) error {
	if db == nil {
		db = r.db
	}
	return db.Save(fine).Error
}
