package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type BookStatus string

const (
	BookStatusActive  BookStatus = "ACTIVE"
	BookStatusRetired BookStatus = "RETIRED"
)

type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "ACTIVE"
	LoanStatusReturned LoanStatus = "RETURNED"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "UNPAID"
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentStatusPaid          PaymentStatus = "PAID"
)

// Branch is the tenant boundary. Books belong to exactly one branch; loans and
// fines belong to a branch transitively through their book.
type Branch struct {
	ID   uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name string    `gorm:"size:255;not null" json:"name"`
	Code string    `gorm:"size:32;not null;uniqueIndex" json:"code"`
}

// Book carries the physical-copy counters for a title. AvailableCopies is
// mutated only by the circulation service's issue/return transactions.
type Book struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BranchID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"branch_id"`
	Branch          Branch     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Author          string     `gorm:"size:255" json:"author"`
	ISBN            string     `gorm:"size:32;index" json:"isbn"`
	TotalCopies     int        `gorm:"not null;check:total_copies >= 0" json:"total_copies"`
	AvailableCopies int        `gorm:"not null;check:available_copies >= 0 AND available_copies <= total_copies" json:"available_copies"`
	Status          BookStatus `gorm:"type:varchar(16);not null;default:'ACTIVE'" json:"status"`
}

// Loan is a single borrowing transaction. Exactly one of StudentID/TeacherID is
// set; callers work with the BorrowerRef view instead of the raw columns.
type Loan struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"book_id"`
	Book         Book       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	StudentID    *uuid.UUID `gorm:"type:uuid;index" json:"student_id,omitempty"`
	TeacherID    *uuid.UUID `gorm:"type:uuid;index" json:"teacher_id,omitempty"`
	IssueDate    time.Time  `gorm:"not null" json:"issue_date"`
	DueDate      time.Time  `gorm:"not null" json:"due_date"`
	ReturnDate   *time.Time `json:"return_date,omitempty"`
	Status       LoanStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	RenewedCount int        `gorm:"not null;default:0" json:"renewed_count"`
	IssuedBy     uuid.UUID  `gorm:"type:uuid;not null" json:"issued_by"`
	ReturnedTo   *uuid.UUID `gorm:"type:uuid" json:"returned_to,omitempty"`
	Notes        string     `gorm:"type:text" json:"notes,omitempty"`
}

// Fine is the monetary penalty for an overdue return. At most one per loan.
type Fine struct {
	ID            uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LoanID        uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex" json:"loan_id"`
	Loan          Loan          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	FineAmount    int           `gorm:"not null;check:fine_amount > 0" json:"fine_amount"`
	DaysOverdue   int           `gorm:"not null;check:days_overdue > 0" json:"days_overdue"`
	PaidAmount    int           `gorm:"not null;default:0" json:"paid_amount"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(16);not null;default:'UNPAID'" json:"payment_status"`
	PaymentMethod *string       `gorm:"size:32" json:"payment_method,omitempty"`
	PaymentDate   *time.Time    `json:"payment_date,omitempty"`
	Waived        bool          `gorm:"not null;default:false" json:"waived"`
	WaivedBy      *uuid.UUID    `gorm:"type:uuid" json:"waived_by,omitempty"`
	WaiveReason   string        `gorm:"type:text" json:"waive_reason,omitempty"`
}

// ─── Borrower Reference ───────────────────────────────────────────────────────

type BorrowerType string

const (
	BorrowerTypeStudent BorrowerType = "STUDENT"
	BorrowerTypeTeacher BorrowerType = "TEACHER"
)

// ErrInvalidBorrowerType is returned by ParseBorrowerType for unknown type names.
var ErrInvalidBorrowerType = errors.New("borrower type must be STUDENT or TEACHER")

// BorrowerRef identifies a borrower as exactly one of a student or a teacher.
// Constructing it through StudentRef/TeacherRef rules out the "both set" and
// "neither set" shapes the raw loan columns would otherwise allow.
type BorrowerRef struct {
	Type BorrowerType `json:"type"`
	ID   uuid.UUID    `json:"id"`
}

func StudentRef(id uuid.UUID) BorrowerRef {
	return BorrowerRef{Type: BorrowerTypeStudent, ID: id}
}

func TeacherRef(id uuid.UUID) BorrowerRef {
	return BorrowerRef{Type: BorrowerTypeTeacher, ID: id}
}

// ParseBorrowerType maps a request-level type name onto a BorrowerType.
func ParseBorrowerType(s string) (BorrowerType, error) {
	switch BorrowerType(s) {
	case BorrowerTypeStudent:
		return BorrowerTypeStudent, nil
	case BorrowerTypeTeacher:
		return BorrowerTypeTeacher, nil
	default:
		return "", ErrInvalidBorrowerType
	}
}

// Borrower reconstructs the tagged reference from the loan's columns.
func (l *Loan) Borrower() BorrowerRef {
	if l.StudentID != nil {
		return StudentRef(*l.StudentID)
	}
	return TeacherRef(*l.TeacherID)
}

// SetBorrower writes the reference back to the mutually exclusive columns.
func (l *Loan) SetBorrower(ref BorrowerRef) {
	id := ref.ID
	switch ref.Type {
	case BorrowerTypeStudent:
		l.StudentID = &id
		l.TeacherID = nil
	case BorrowerTypeTeacher:
		l.TeacherID = &id
		l.StudentID = nil
	}
}
