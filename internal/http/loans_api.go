package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/growlin/internal/auth"
	"github.com/mrlokans/growlin/internal/circulation"
)

// LoansAPIController is the JSON face of the loan desk, used by scanners
// and kiosks with a bearer token.
type LoansAPIController struct {
	loans Circulation
}

func NewLoansAPIController(loans Circulation) *LoansAPIController {
	return &LoansAPIController{loans: loans}
}

type BorrowPayload struct {
	ItemID    uint   `json:"item_id"`
	Accession string `json:"accession"`
	LongTerm  bool   `json:"longterm"`
}

type ReturnPayload struct {
	Accession string `json:"accession"`
}

// loanError pairs a loan failure with its status and machine-readable code.
type loanError struct {
	err    error
	status int
	code   string
}

var loanErrors = []loanError{
	{circulation.ErrAlreadyBorrowed, http.StatusConflict, "already_borrowed"},
	{circulation.ErrAccessionMismatch, http.StatusUnprocessableEntity, "accession_mismatch"},
	{circulation.ErrNotBorrowed, http.StatusConflict, "not_borrowed"},
	{circulation.ErrItemNotFound, http.StatusNotFound, "item_not_found"},
	{circulation.ErrBorrowerNotFound, http.StatusNotFound, "borrower_not_found"},
	{circulation.ErrBorrowerInactive, http.StatusForbidden, "borrower_inactive"},
	{circulation.ErrItemUnavailable, http.StatusConflict, "item_unavailable"},
	{circulation.ErrLoanLimitReached, http.StatusConflict, "loan_limit_reached"},
	{circulation.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
}

func classifyLoanError(err error) (int, string) {
	for _, le := range loanErrors {
		if errors.Is(err, le.err) {
			return le.status, le.code
		}
	}
	return http.StatusInternalServerError, ""
}

func loanErrorStatus(err error) int {
	status, _ := classifyLoanError(err)
	return status
}

func respondLoanError(c *gin.Context, err error, context string) {
	status, code := classifyLoanError(err)
	if code == "" {
		respondInternalError(c, err, context)
		return
	}
	respondError(c, status, circulation.Message(err), code)
}

// Shelf handles GET /api/shelf
func (lc *LoansAPIController) Shelf(c *gin.Context) {
	loans, err := lc.loans.CurrentLoans(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "current loans")
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans})
}

// History handles GET /api/shelf/history?limit=&offset=
func (lc *LoansAPIController) History(c *gin.Context) {
	limit, offset := parsePage(c, historyPageSize, 100)
	records, total, err := lc.loans.PastLoans(c.Request.Context(), auth.GetUserID(c), limit, offset)
	if err != nil {
		respondInternalError(c, err, "past loans")
		return
	}
	c.JSON(http.StatusOK, newPaginatedResponse(records, total, limit, offset))
}

// Borrow handles POST /api/loans
func (lc *LoansAPIController) Borrow(c *gin.Context) {
	var payload BorrowPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, "invalid JSON payload")
		return
	}

	item, err := lc.loans.Borrow(c.Request.Context(), circulation.BorrowRequest{
		BorrowerID: auth.GetUserID(c),
		ItemID:     payload.ItemID,
		Accession:  payload.Accession,
		LongTerm:   payload.LongTerm,
	})
	if err != nil {
		respondLoanError(c, err, "borrow")
		return
	}
	respondCreated(c, gin.H{"item": item, "loan": item.Loan})
}

// Return handles POST /api/loans/:itemID/return
func (lc *LoansAPIController) Return(c *gin.Context) {
	itemID, ok := parseIDParam(c, "itemID")
	if !ok {
		return
	}

	var payload ReturnPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, "invalid JSON payload")
		return
	}

	record, err := lc.loans.Unborrow(c.Request.Context(), circulation.ReturnRequest{
		BorrowerID: auth.GetUserID(c),
		ItemID:     itemID,
		Accession:  payload.Accession,
	})
	if err != nil {
		respondLoanError(c, err, "return")
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": record})
}

// Lookup handles GET /api/items/lookup?accession=
func (lc *LoansAPIController) Lookup(c *gin.Context) {
	accession := circulation.NormalizeAccession(c.Query("accession"))
	if accession == "" {
		respondError(c, http.StatusBadRequest, "accession is required", "invalid_request")
		return
	}

	item, err := lc.loans.FindByAccession(c.Request.Context(), accession)
	if err != nil {
		respondLoanError(c, err, "item lookup")
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "borrowed": item.IsBorrowed()})
}
