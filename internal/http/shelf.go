package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/growlin/internal/auth"
	"github.com/mrlokans/growlin/internal/circulation"
)

const historyPageSize = 25

// ShelfController serves the patron pages: the current shelf, history and
// the borrow and return forms.
type ShelfController struct {
	pages
	loans Circulation
	now   func() time.Time
}

func NewShelfController(loans Circulation, p pages) *ShelfController {
	return &ShelfController{pages: p, loans: loans, now: time.Now}
}

func (sc *ShelfController) Home(c *gin.Context) {
	c.Redirect(http.StatusFound, "/shelf")
}

// ShelfPage lists what the signed-in borrower holds.
// GET /shelf
func (sc *ShelfController) ShelfPage(c *gin.Context) {
	loans, err := sc.loans.CurrentLoans(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		sc.renderError(c, err, "current loans")
		return
	}

	sc.render(c, http.StatusOK, "shelf.html", gin.H{
		"Title": "My shelf",
		"Loans": loans,
		"Now":   sc.now(),
	})
}

// HistoryPage lists returned items, most recent first.
// GET /shelf/history
func (sc *ShelfController) HistoryPage(c *gin.Context) {
	page := pageNumber(c)
	records, total, err := sc.loans.PastLoans(c.Request.Context(), auth.GetUserID(c), historyPageSize, (page-1)*historyPageSize)
	if err != nil {
		sc.renderError(c, err, "past loans")
		return
	}

	sc.render(c, http.StatusOK, "history.html", gin.H{
		"Title":      "History",
		"Records":    records,
		"Page":       page,
		"TotalPages": totalPages(total, historyPageSize),
	})
}

// BorrowPage is the first step of borrowing. Without an accession it asks
// for one; with one it shows the matching title for confirmation.
// GET /shelf/borrow
func (sc *ShelfController) BorrowPage(c *gin.Context) {
	accession := circulation.NormalizeAccession(c.Query("accession"))
	data := gin.H{"Title": "Borrow", "Accession": accession}
	if accession == "" {
		sc.render(c, http.StatusOK, "borrow.html", data)
		return
	}

	item, err := sc.loans.FindByAccession(c.Request.Context(), accession)
	if err == nil && item.IsBorrowed() {
		err = circulation.ErrAlreadyBorrowed
	}
	if err != nil {
		if !errors.Is(err, circulation.ErrBorrow) {
			sc.renderError(c, err, "item lookup")
			return
		}
		data["Error"] = circulation.Message(err)
		sc.render(c, loanErrorStatus(err), "borrow.html", data)
		return
	}

	data["Item"] = item
	sc.render(c, http.StatusOK, "borrow.html", data)
}

// Borrow lends the confirmed item. The accession typed in the first step
// travels with the form and is checked again against the item.
// POST /shelf/borrow
func (sc *ShelfController) Borrow(c *gin.Context) {
	itemID, _ := strconv.ParseUint(c.PostForm("item_id"), 10, 32)
	req := circulation.BorrowRequest{
		BorrowerID: auth.GetUserID(c),
		ItemID:     uint(itemID),
		Accession:  c.PostForm("accession"),
		LongTerm:   c.PostForm("longterm") != "",
	}

	item, err := sc.loans.Borrow(c.Request.Context(), req)
	if err != nil {
		sc.flashError(c, "/shelf/borrow", circulation.Message(err))
		return
	}
	sc.flash(c, "/shelf", fmt.Sprintf("You borrowed %s.", item.DisplayTitle()))
}

// ReturnPage asks for the accession of an item on the borrower's shelf.
// GET /shelf/:itemID/return
func (sc *ShelfController) ReturnPage(c *gin.Context) {
	itemID, err := strconv.ParseUint(c.Param("itemID"), 10, 32)
	if err != nil {
		sc.flashError(c, "/shelf", circulation.Message(circulation.ErrItemNotFound))
		return
	}

	item, err := sc.loans.GetItem(c.Request.Context(), uint(itemID))
	if err == nil && (item.Loan == nil || item.Loan.UserID != auth.GetUserID(c)) {
		err = circulation.ErrNotBorrowed
	}
	if err != nil {
		if !errors.Is(err, circulation.ErrBorrow) {
			sc.renderError(c, err, "item lookup")
			return
		}
		sc.flashError(c, "/shelf", circulation.Message(err))
		return
	}

	sc.render(c, http.StatusOK, "return.html", gin.H{
		"Title": "Return",
		"Item":  item,
	})
}

// Return ends the loan when the typed accession matches the item.
// POST /shelf/:itemID/return
func (sc *ShelfController) Return(c *gin.Context) {
	itemID, err := strconv.ParseUint(c.Param("itemID"), 10, 32)
	if err != nil {
		sc.flashError(c, "/shelf", circulation.Message(circulation.ErrItemNotFound))
		return
	}

	record, err := sc.loans.Unborrow(c.Request.Context(), circulation.ReturnRequest{
		BorrowerID: auth.GetUserID(c),
		ItemID:     uint(itemID),
		Accession:  c.PostForm("accession"),
	})
	if err != nil {
		location := "/shelf"
		if errors.Is(err, circulation.ErrAccessionMismatch) || errors.Is(err, circulation.ErrInvalidRequest) {
			location = "/shelf/" + url.PathEscape(c.Param("itemID")) + "/return"
		}
		sc.flashError(c, location, circulation.Message(err))
		return
	}
	sc.flash(c, "/shelf", fmt.Sprintf("You returned %s.", record.ItemTitle))
}

func (sc *ShelfController) renderError(c *gin.Context, err error, context string) {
	log.Printf("Shelf: failed to load %s: %v", context, err)
	sc.render(c, http.StatusInternalServerError, "error.html", gin.H{
		"Title": "Something went wrong",
		"Error": circulation.Message(err),
	})
}
