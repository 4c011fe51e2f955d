package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"schoolhub/internal/models"
	"schoolhub/internal/scope"
	"schoolhub/internal/services"
)

// response is the envelope every endpoint answers with, success or failure,
// so calling UIs can always branch on success + message.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, response{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, response{Success: false, Message: message})
}

// failFrom maps the service's error kinds onto HTTP statuses. The message is
// the sentinel's own text, so each failure kind stays distinguishable to the
// caller; anything unrecognised is an internal data-store failure and stays
// opaque.
func failFrom(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrBookNotFound),
		errors.Is(err, services.ErrLoanNotFound),
		errors.Is(err, services.ErrFineNotFound),
		errors.Is(err, services.ErrBookOutOfScope):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNoAvailableCopy),
		errors.Is(err, services.ErrBorrowerBlocked),
		errors.Is(err, services.ErrLoanNotActive),
		errors.Is(err, services.ErrRenewalLimitReached):
		fail(c, http.StatusConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, "internal error")
	}
}

type LibraryHandler struct {
	svc services.CirculationService
}

func RegisterRoutes(r *gin.Engine, svc services.CirculationService, resolver scope.Resolver) {
	h := &LibraryHandler{svc: svc}

	api := r.Group("/api/library", scope.Middleware(resolver))

	api.POST("/issue", h.issueBook)
	api.POST("/loans/:id/return", h.returnBook)
	api.POST("/loans/:id/renew", h.renewBook)
	api.GET("/borrowers/:type/:id/loans", h.getBorrowerLoans)
	api.POST("/fines/:id/pay", h.payFine)
	api.POST("/fines/:id/waive", h.waiveFine)
	api.GET("/books", h.listBooks)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// ─── Circulation ──────────────────────────────────────────────────────────────

type issueBookRequest struct {
	BookID       string `json:"book_id" binding:"required,uuid"`
	BorrowerType string `json:"borrower_type" binding:"required"`
	BorrowerID   string `json:"borrower_id" binding:"required,uuid"`
	Notes        string `json:"notes"`
}

func (h *LibraryHandler) issueBook(c *gin.Context) {
	var req issueBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	borrowerType, err := models.ParseBorrowerType(req.BorrowerType)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	borrower := models.BorrowerRef{Type: borrowerType, ID: uuid.MustParse(req.BorrowerID)}

	sc, _ := scope.FromContext(c)
	loan, err := h.svc.IssueBook(uuid.MustParse(req.BookID), borrower, sc.ActorID, req.Notes, sc.BranchFilter())
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusCreated, "book issued", loan)
}

func (h *LibraryHandler) returnBook(c *gin.Context) {
	loanID, valid := pathID(c)
	if !valid {
		return
	}

	sc, _ := scope.FromContext(c)
	loan, fine, err := h.svc.ReturnBook(loanID, sc.ActorID)
	if err != nil {
		failFrom(c, err)
		return
	}

	if fine != nil {
		ok(c, http.StatusOK, "book returned overdue, fine created", gin.H{
			"loan": loan,
			"fine": fine,
		})
		return
	}
	ok(c, http.StatusOK, "book returned", gin.H{"loan": loan})
}

func (h *LibraryHandler) renewBook(c *gin.Context) {
	loanID, valid := pathID(c)
	if !valid {
		return
	}

	loan, err := h.svc.RenewBook(loanID)
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, "loan renewed", loan)
}

func (h *LibraryHandler) getBorrowerLoans(c *gin.Context) {
	borrowerType, err := models.ParseBorrowerType(c.Param("type"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	borrowerID, valid := pathID(c)
	if !valid {
		return
	}

	sc, _ := scope.FromContext(c)
	loans, err := h.svc.GetBorrowerLoans(models.BorrowerRef{Type: borrowerType, ID: borrowerID}, sc.BranchFilter())
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, "loans fetched", loans)
}

func (h *LibraryHandler) listBooks(c *gin.Context) {
	sc, _ := scope.FromContext(c)
	books, err := h.svc.ListBooks(sc.BranchFilter())
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, "books fetched", books)
}

// ─── Fines ────────────────────────────────────────────────────────────────────

type payFineRequest struct {
	Amount int    `json:"amount" binding:"required,min=1"`
	Method string `json:"method" binding:"required"`
}

func (h *LibraryHandler) payFine(c *gin.Context) {
	fineID, valid := pathID(c)
	if !valid {
		return
	}

	var req payFineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	fine, err := h.svc.PayFine(fineID, req.Amount, req.Method)
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, "payment recorded", fine)
}

type waiveFineRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *LibraryHandler) waiveFine(c *gin.Context) {
	fineID, valid := pathID(c)
	if !valid {
		return
	}

	var req waiveFineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	sc, _ := scope.FromContext(c)
	fine, err := h.svc.WaiveFine(fineID, sc.ActorID, req.Reason)
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, "fine waived", fine)
}
