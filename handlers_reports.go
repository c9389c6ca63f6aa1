package main

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"bezis/models"
	"bezis/pkg/ledger"
	"bezis/pkg/receipt"
	"bezis/process/report"

	"github.com/gin-gonic/gin"
)

const maxReceiptBytes = 5 * 1024 * 1024

func timeMonth(m uint) time.Month {
	if m < 1 || m > 12 {
		return 0
	}
	return time.Month(m)
}

// uploadReceiptHandler stores a transfer receipt for a penerimaan. The OCR
// amount is returned as a suggestion; the penerimaan itself is untouched.
func uploadReceiptHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, ledger.Invalid("file", "file missing"))
		return
	}
	if file.Size > maxReceiptBytes {
		respondError(c, ledger.Invalid("file", "file too large (max 5MB)"))
		return
	}
	if !receipt.Supported(file.Filename) {
		respondError(c, ledger.Invalid("file", "unsupported file type"))
		return
	}
	tmp, err := os.CreateTemp("", "receipt-*")
	if err != nil {
		respondError(c, err)
		return
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		respondError(c, err)
		return
	}

	got, err := receipts.Attach(c.Request.Context(), tmpPath, file.Filename, &id, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, got)
}

func listReceiptsHandler(c *gin.Context) {
	limit, offset, err := paging(c)
	if err != nil {
		respondError(c, err)
		return
	}
	f := receipt.Filter{Limit: limit, Offset: offset}
	if f.PenerimaanID, err = optionalUint(c, "penerimaan_id"); err != nil {
		respondError(c, err)
		return
	}
	if v := c.Query("failed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(c, ledger.Invalid("failed", "failed must be true or false"))
			return
		}
		f.Failed = &b
	}
	rows, total, err := receipts.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": total, "limit": limit, "offset": offset})
}

func listAuditHandler(c *gin.Context) {
	limit, offset, err := paging(c)
	if err != nil {
		respondError(c, err)
		return
	}
	f := ledger.AuditFilter{Table: c.Query("table"), Limit: limit, Offset: offset}
	if f.ActorID, err = optionalUint(c, "actor_id"); err != nil {
		respondError(c, err)
		return
	}
	switch a := models.AuditAction(c.Query("action")); a {
	case "", models.AuditInsert, models.AuditUpdate, models.AuditDelete:
		f.Action = a
	default:
		respondError(c, ledger.Invalid("action", "action must be INSERT, UPDATE or DELETE"))
		return
	}
	from, to := c.Query("from"), c.Query("to")
	if f.From, err = parseDate("from", &from); err != nil {
		respondError(c, err)
		return
	}
	if f.To, err = parseDate("to", &to); err != nil {
		respondError(c, err)
		return
	}
	rows, total, err := ledger.ListAudit(c.Request.Context(), db, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": total, "limit": limit, "offset": offset})
}

func monthlyReportHandler(c *gin.Context) {
	now := time.Now()
	year, month := now.Year(), now.Month()
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			respondError(c, ledger.Invalid("year", "year must be a positive integer"))
			return
		}
		year = y
	}
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			respondError(c, ledger.Invalid("month", "month must be between 1 and 12"))
			return
		}
		month = time.Month(m)
	}
	summary, err := report.MonthlySummary(c.Request.Context(), db, year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
