package services

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"schoolhub/internal/models"
	"schoolhub/internal/repositories"
)

// ─── Circulation Policy ───────────────────────────────────────────────────────

const (
	// LoanPeriodDays is the number of days a borrower may keep a book; renewals
	// extend the due date by the same period.
	LoanPeriodDays = 14

	// RenewalLimit is the maximum number of times a single loan may be renewed.
	RenewalLimit = 2

	// FinePerDay is the fine amount (in currency units) charged per day overdue.
	// Any partial day overdue counts as a full day.
	FinePerDay = 10
)

// Policy bundles the circulation parameters so deployments (and tests) can
// override them; DefaultPolicy returns the standard values above.
type Policy struct {
	LoanPeriodDays int
	RenewalLimit   int
	FinePerDay     int
}

func DefaultPolicy() Policy {
	return Policy{
		LoanPeriodDays: LoanPeriodDays,
		RenewalLimit:   RenewalLimit,
		FinePerDay:     FinePerDay,
	}
}

// ─── Sentinel Errors ──────────────────────────────────────────────────────────

var (
	// ErrBookNotFound is returned when the requested book does not exist or has
	// been retired from circulation.
	ErrBookNotFound = errors.New("book not found")

	// ErrLoanNotFound is returned when the referenced loan does not exist.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrFineNotFound is returned when the referenced fine does not exist.
	ErrFineNotFound = errors.New("fine not found")

	// ErrNoAvailableCopy is returned when every copy of the book is out on loan.
	ErrNoAvailableCopy = errors.New("no copies of this book are available")

	// ErrBorrowerBlocked is returned when the borrower holds an overdue active
	// loan; issuance is refused outright until it is returned.
	ErrBorrowerBlocked = errors.New("borrower has overdue books")

	// ErrLoanNotActive is returned when a return or renewal targets a loan that
	// is not in the ACTIVE state (e.g. a second return of the same loan).
	ErrLoanNotActive = errors.New("loan is not active")

	// ErrRenewalLimitReached is returned when a loan has already been renewed
	// the maximum number of times.
	ErrRenewalLimitReached = errors.New("renewal limit reached")

	// ErrBookOutOfScope is returned when the book exists but belongs to a
	// branch the requesting actor cannot operate on.
	ErrBookOutOfScope = errors.New("book belongs to another branch")
)

// TxRunner abstracts the transactional entry point of *gorm.DB so the service
// can be exercised against fakes.
type TxRunner interface {
	Transaction(fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// ─── Service Interface ────────────────────────────────────────────────────────

// CirculationService owns the loan lifecycle and everything that must move with
// it: copy counters, the overdue-borrower gate, and fine bookkeeping.
//
// branchScope, where accepted, restricts the operation to a single branch; nil
// means unrestricted (the caller is a super admin).
type CirculationService interface {
	IssueBook(bookID uuid.UUID, borrower models.BorrowerRef, issuedBy uuid.UUID, notes string, branchScope *uuid.UUID) (*models.Loan, error)
	ReturnBook(loanID, returnedTo uuid.UUID) (*models.Loan, *models.Fine, error)
	RenewBook(loanID uuid.UUID) (*models.Loan, error)

	GetBorrowerLoans(borrower models.BorrowerRef, branchScope *uuid.UUID) ([]models.Loan, error)
	ListBooks(branchScope *uuid.UUID) ([]models.Book, error)

	PayFine(fineID uuid.UUID, amount int, method string) (*models.Fine, error)
	WaiveFine(fineID, waivedBy uuid.UUID, reason string) (*models.Fine, error)
}

// ─── Implementation ───────────────────────────────────────────────────────────

type circulationService struct {
	db       TxRunner
	bookRepo repositories.BookRepository
	loanRepo repositories.LoanRepository
	fineRepo repositories.FineRepository
	policy   Policy
}

// NewCirculationService wires up all dependencies and returns a CirculationService.
func NewCirculationService(
	db TxRunner,
	bookRepo repositories.BookRepository,
	loanRepo repositories.LoanRepository,
	fineRepo repositories.FineRepository,
	policy Policy,
) CirculationService {
	return &circulationService{
		db:       db,
		bookRepo: bookRepo,
		loanRepo: loanRepo,
		fineRepo: fineRepo,
		policy:   policy,
	}
}

// ─── Issue ────────────────────────────────────────────────────────────────────

// IssueBook implements the transactional issue flow.
//
// Steps (all in one transaction):
//  1. Hard gate: refuse if the borrower holds any overdue active loan, in any
//     branch.
//  2. Lock the Book row (FOR UPDATE) and validate it is active and in scope.
//  3. Reserve a copy via a conditional decrement of available_copies.
//  4. Create the Loan in ACTIVE state with due date issue_date + loan period.
func (s *circulationService) IssueBook(bookID uuid.UUID, borrower models.BorrowerRef, issuedBy uuid.UUID, notes string, branchScope *uuid.UUID) (*models.Loan, error) {
	var loan *models.Loan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		overdue, err := s.loanRepo.CountOverdueActive(tx, borrower, now)
		if err != nil {
			return err
		}
		if overdue > 0 {
			log.Printf("[WARN] IssueBook: %s %s blocked, %d overdue active loan(s)", borrower.Type, borrower.ID, overdue)
			return ErrBorrowerBlocked
		}

		book, err := s.bookRepo.GetByIDForUpdate(tx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		if book.Status != models.BookStatusActive {
			return ErrBookNotFound
		}
		if branchScope != nil && book.BranchID != *branchScope {
			return ErrBookOutOfScope
		}
		if book.AvailableCopies < 1 {
			return ErrNoAvailableCopy
		}

		rows, err := s.bookRepo.ReserveCopy(tx, bookID)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Lost the copy to a concurrent issue despite the row lock.
			return ErrNoAvailableCopy
		}

		l := &models.Loan{
			BookID:    bookID,
			IssueDate: now,
			DueDate:   now.AddDate(0, 0, s.policy.LoanPeriodDays),
			Status:    models.LoanStatusActive,
			IssuedBy:  issuedBy,
			Notes:     notes,
		}
		l.SetBorrower(borrower)
		if err := s.loanRepo.Create(tx, l); err != nil {
			log.Printf("[ERROR] IssueBook: failed to create loan for book %s: %v", bookID, err)
			return err
		}
		loan = l
		return nil
	})

	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] IssueBook: loan %s created for %s %s / book %s, due %s",
		loan.ID, borrower.Type, borrower.ID, bookID, loan.DueDate.Format("2006-01-02"))
	return loan, nil
}

// ─── Return ───────────────────────────────────────────────────────────────────

// ReturnBook implements the transactional return flow.
//
// Steps (all in one transaction):
//  1. Lock the Loan row (FOR UPDATE).
//  2. Guard against double-return: only ACTIVE loans can be returned.
//  3. Mark the loan RETURNED and record the receiving actor.
//  4. Release the copy back to the book's available counter. A release that
//     would push available_copies past total_copies affects no rows and is
//     surfaced as a consistency fault, never clamped.
//  5. If the return is strictly after the due instant, create the fine.
//
// The returned Fine is nil for an on-time return.
func (s *circulationService) ReturnBook(loanID, returnedTo uuid.UUID) (*models.Loan, *models.Fine, error) {
	var updated *models.Loan
	var fine *models.Fine

	err := s.db.Transaction(func(tx *gorm.DB) error {
		loan, err := s.loanRepo.GetByIDForUpdate(tx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoanNotFound
			}
			return err
		}
		if loan.Status != models.LoanStatusActive {
			log.Printf("[WARN] ReturnBook: loan %s is %s, rejecting return", loanID, loan.Status)
			return ErrLoanNotActive
		}

		now := time.Now().UTC()
		loan.Status = models.LoanStatusReturned
		loan.ReturnDate = &now
		loan.ReturnedTo = &returnedTo
		if err := s.loanRepo.Update(tx, loan); err != nil {
			log.Printf("[ERROR] ReturnBook: failed to mark loan %s returned: %v", loanID, err)
			return err
		}

		rows, err := s.bookRepo.ReleaseCopy(tx, loan.BookID)
		if err != nil {
			return err
		}
		if rows == 0 {
			// available_copies already equals total_copies while a loan was
			// still active; the counters are corrupt and must not be papered over.
			return fmt.Errorf("book %s: available_copies would exceed total_copies on release", loan.BookID)
		}

		if days := overdueDays(loan.DueDate, now); days > 0 {
			f := &models.Fine{
				LoanID:        loan.ID,
				FineAmount:    days * s.policy.FinePerDay,
				DaysOverdue:   days,
				PaymentStatus: models.PaymentStatusUnpaid,
			}
			if err := s.fineRepo.Create(tx, f); err != nil {
				log.Printf("[ERROR] ReturnBook: failed to create fine for loan %s: %v", loanID, err)
				return err
			}
			fine = f
		}

		updated = loan
		return nil
	})

	if err != nil {
		return nil, nil, err
	}
	if fine != nil {
		log.Printf("[INFO] ReturnBook: loan %s returned %d day(s) overdue, fine %d created (id=%s)",
			loanID, fine.DaysOverdue, fine.FineAmount, fine.ID)
	} else {
		log.Printf("[INFO] ReturnBook: loan %s returned on time", loanID)
	}
	return updated, fine, nil
}

// ─── Renew ────────────────────────────────────────────────────────────────────

// RenewBook extends an active loan's due date by one loan period, counted from
// the current due date rather than from today. It never touches the copy
// counters and never re-runs the overdue gate.
func (s *circulationService) RenewBook(loanID uuid.UUID) (*models.Loan, error) {
	var updated *models.Loan

	err := s.db.Transaction(func(tx *gorm.DB) error {
		loan, err := s.loanRepo.GetByIDForUpdate(tx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoanNotFound
			}
			return err
		}
		if loan.Status != models.LoanStatusActive {
			return ErrLoanNotActive
		}
		if loan.RenewedCount >= s.policy.RenewalLimit {
			log.Printf("[WARN] RenewBook: loan %s already renewed %d time(s)", loanID, loan.RenewedCount)
			return ErrRenewalLimitReached
		}

		loan.DueDate = loan.DueDate.AddDate(0, 0, s.policy.LoanPeriodDays)
		loan.RenewedCount++
		if err := s.loanRepo.Update(tx, loan); err != nil {
			log.Printf("[ERROR] RenewBook: failed to update loan %s: %v", loanID, err)
			return err
		}
		updated = loan
		return nil
	})

	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] RenewBook: loan %s renewed (%d/%d), now due %s",
		loanID, updated.RenewedCount, s.policy.RenewalLimit, updated.DueDate.Format("2006-01-02"))
	return updated, nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// GetBorrowerLoans returns all loans (active and returned) for a borrower,
// restricted to the scope branch unless the scope is unrestricted.
func (s *circulationService) GetBorrowerLoans(borrower models.BorrowerRef, branchScope *uuid.UUID) ([]models.Loan, error) {
	return s.loanRepo.ListByBorrower(nil, borrower, branchScope)
}

// ListBooks returns the active books visible to the scope.
func (s *circulationService) ListBooks(branchScope *uuid.UUID) ([]models.Book, error) {
	return s.bookRepo.List(nil, branchScope)
}

// ─── Fines ────────────────────────────────────────────────────────────────────

// PayFine records a (possibly partial) payment against a fine and re-derives
// its payment status. Payments beyond the outstanding balance are capped at
// the fine amount.
func (s *circulationService) PayFine(fineID uuid.UUID, amount int, method string) (*models.Fine, error) {
	var updated *models.Fine

	err := s.db.Transaction(func(tx *gorm.DB) error {
		fine, err := s.fineRepo.GetByIDForUpdate(tx, fineID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFineNotFound
			}
			return err
		}

		fine.PaidAmount += amount
		if fine.PaidAmount > fine.FineAmount {
			fine.PaidAmount = fine.FineAmount
		}
		fine.PaymentMethod = &method

		prev := fine.PaymentStatus
		fine.PaymentStatus = paymentStatusFor(fine)
		if fine.PaymentStatus == models.PaymentStatusPaid && prev != models.PaymentStatusPaid {
			now := time.Now().UTC()
			fine.PaymentDate = &now
		}

		if err := s.fineRepo.Update(tx, fine); err != nil {
			log.Printf("[ERROR] PayFine: failed to update fine %s: %v", fineID, err)
			return err
		}
		updated = fine
		return nil
	})

	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] PayFine: fine %s paid %d via %s, now %s (%d/%d)",
		fineID, amount, method, updated.PaymentStatus, updated.PaidAmount, updated.FineAmount)
	return updated, nil
}

// WaiveFine forgives the outstanding balance. The paid amount is kept as a
// historical record; the status is forced to PAID regardless of it. Waiving an
// already-waived or fully-paid fine is a no-op beyond updating the audit fields.
func (s *circulationService) WaiveFine(fineID, waivedBy uuid.UUID, reason string) (*models.Fine, error) {
	var updated *models.Fine

	err := s.db.Transaction(func(tx *gorm.DB) error {
		fine, err := s.fineRepo.GetByIDForUpdate(tx, fineID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFineNotFound
			}
			return err
		}

		fine.Waived = true
		fine.WaivedBy = &waivedBy
		fine.WaiveReason = reason
		fine.PaymentStatus = paymentStatusFor(fine)

		if err := s.fineRepo.Update(tx, fine); err != nil {
			log.Printf("[ERROR] WaiveFine: failed to update fine %s: %v", fineID, err)
			return err
		}
		updated = fine
		return nil
	})

	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] WaiveFine: fine %s waived by %s (%q)", fineID, waivedBy, reason)
	return updated, nil
}

// ─── Internal Helpers ─────────────────────────────────────────────────────────

// overdueDays computes how many whole days overdue a return is. A return at or
// before the due instant is on time; any positive overdue duration rounds up,
// so even a minute late counts as one full day.
func overdueDays(dueDate, returnedAt time.Time) int {
	if !returnedAt.After(dueDate) {
		return 0
	}
	late := returnedAt.Sub(dueDate)
	days := int(late / (24 * time.Hour))
	if late%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// paymentStatusFor derives the payment status from the fine's amounts. A
// waived fine reports PAID no matter how much was actually collected.
func paymentStatusFor(f *models.Fine) models.PaymentStatus {
	switch {
	case f.Waived:
		return models.PaymentStatusPaid
	case f.PaidAmount >= f.FineAmount:
		return models.PaymentStatusPaid
	case f.PaidAmount > 0:
		return models.PaymentStatusPartiallyPaid
	default:
		return models.PaymentStatusUnpaid
	}
}
