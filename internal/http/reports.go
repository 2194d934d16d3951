package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/growlin/internal/database/reports"
)

const dateLayout = "2006-01-02"

type ReportsController struct {
	reports Reports
	now     func() time.Time
}

func NewReportsController(r Reports) *ReportsController {
	return &ReportsController{reports: r, now: time.Now}
}

// LoansPerGroup handles GET /admin/api/reports/loans-per-group?since=&until=
func (rc *ReportsController) LoansPerGroup(c *gin.Context) {
	period, ok := parsePeriod(c)
	if !ok {
		return
	}
	rows, err := rc.reports.LoansPerGroup(c.Request.Context(), period)
	if err != nil {
		respondInternalError(c, err, "loans per group report")
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": rows})
}

// MostBorrowed handles GET /admin/api/reports/most-borrowed?since=&until=&limit=
func (rc *ReportsController) MostBorrowed(c *gin.Context) {
	period, ok := parsePeriod(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := rc.reports.MostBorrowed(c.Request.Context(), period, limit)
	if err != nil {
		respondInternalError(c, err, "most borrowed report")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

// Overdue handles GET /admin/api/reports/overdue
func (rc *ReportsController) Overdue(c *gin.Context) {
	rows, err := rc.reports.OverdueLoans(c.Request.Context(), rc.now())
	if err != nil {
		respondInternalError(c, err, "overdue report")
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": rows})
}

// Status handles GET /admin/api/reports/status
func (rc *ReportsController) Status(c *gin.Context) {
	rows, err := rc.reports.StatusCounts(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "status report")
		return
	}
	c.JSON(http.StatusOK, gin.H{"statuses": rows})
}

// parsePeriod reads since and until as dates. until is inclusive, so the
// period ends at the start of the following day.
func parsePeriod(c *gin.Context) (reports.Period, bool) {
	var period reports.Period
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(dateLayout, v)
		if err != nil {
			respondBadRequest(c, "since must be a date like 2006-01-02")
			return period, false
		}
		period.Since = since
	}
	if v := c.Query("until"); v != "" {
		until, err := time.Parse(dateLayout, v)
		if err != nil {
			respondBadRequest(c, "until must be a date like 2006-01-02")
			return period, false
		}
		period.Until = until.AddDate(0, 0, 1)
	}
	return period, true
}
