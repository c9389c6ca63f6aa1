package main

import (
	"errors"
	"net/http"
	"strings"

	"bezis/models"
	"bezis/pkg/ledger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type counterpartyRequest struct {
	Name    string `json:"name" binding:"required,max=255"`
	NIK     string `json:"nik" binding:"omitempty,max=32"`
	NPWZ    string `json:"npwz" binding:"omitempty,max=32"`
	Phone   string `json:"phone" binding:"omitempty,max=64"`
	Address string `json:"address" binding:"omitempty,max=512"`
	Region  string `json:"region" binding:"omitempty,max=128"`
	Asnaf   string `json:"asnaf" binding:"omitempty,max=32"`
	Status  string `json:"status" binding:"omitempty,oneof=active inactive blacklisted"`
}

func (r counterpartyRequest) input() ledger.CounterpartyInput {
	return ledger.CounterpartyInput{
		Name:    r.Name,
		NIK:     r.NIK,
		NPWZ:    r.NPWZ,
		Phone:   r.Phone,
		Address: r.Address,
		Region:  r.Region,
		Asnaf:   r.Asnaf,
		Status:  models.CounterpartyStatus(r.Status),
	}
}

type penerimaanRequest struct {
	MuzakkiID       uint            `json:"muzakki_id" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate *string         `json:"transaction_date"`
	AmilFeeRateID   uint            `json:"amil_fee_rate_id" binding:"required"`
	Category        string          `json:"category" binding:"omitempty,oneof=zakat infaq sedekah"`
	PaymentMethod   string          `json:"payment_method" binding:"omitempty,max=32"`
	Note            string          `json:"note" binding:"omitempty,max=512"`
}

func (r penerimaanRequest) input() (ledger.PenerimaanInput, error) {
	date, err := parseDate("transaction_date", r.TransactionDate)
	if err != nil {
		return ledger.PenerimaanInput{}, err
	}
	return ledger.PenerimaanInput{
		MuzakkiID:       r.MuzakkiID,
		Amount:          r.Amount,
		TransactionDate: date,
		AmilFeeRateID:   r.AmilFeeRateID,
		Category:        r.Category,
		PaymentMethod:   r.PaymentMethod,
		Note:            r.Note,
	}, nil
}

type distribusiRequest struct {
	MustahiqID      uint            `json:"mustahiq_id" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate *string         `json:"transaction_date"`
	Status          string          `json:"status" binding:"omitempty,oneof=pending accepted rejected"`
	Program         string          `json:"program" binding:"omitempty,max=128"`
	Note            string          `json:"note" binding:"omitempty,max=512"`
}

func (r distribusiRequest) input() (ledger.DistribusiInput, error) {
	date, err := parseDate("transaction_date", r.TransactionDate)
	if err != nil {
		return ledger.DistribusiInput{}, err
	}
	status, err := models.ParseDistribusiStatus(r.Status)
	if err != nil {
		return ledger.DistribusiInput{}, ledger.Invalid("status", err.Error())
	}
	return ledger.DistribusiInput{
		MustahiqID:      r.MustahiqID,
		Amount:          r.Amount,
		TransactionDate: date,
		Status:          status,
		Program:         r.Program,
		Note:            r.Note,
	}, nil
}

// findByID loads one row into dest, mapping a miss to a NotFound error.
func findByID(c *gin.Context, entity string, dest any, id uint) error {
	err := db.WithContext(c.Request.Context()).First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.NotFound(entity, id)
	}
	return err
}

// counterpartyQuery applies the shared ?q=&status=&region= filters.
func counterpartyQuery(c *gin.Context, model any) *gorm.DB {
	q := db.WithContext(c.Request.Context()).Model(model)
	if s := strings.TrimSpace(c.Query("q")); s != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if s := c.Query("status"); s != "" {
		q = q.Where("status = ?", s)
	}
	if s := c.Query("region"); s != "" {
		q = q.Where("region = ?", s)
	}
	return q
}

// listPage counts q, then fetches one page of it into dest.
func listPage(c *gin.Context, q *gorm.DB, dest any) {
	limit, offset, err := paging(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(dest).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dest, "total": total, "limit": limit, "offset": offset})
}

func listMuzakkiHandler(c *gin.Context) {
	q := counterpartyQuery(c, &models.Muzakki{})
	if s := c.Query("npwz"); s != "" {
		q = q.Where("npwz = ?", s)
	}
	rows := []models.Muzakki{}
	listPage(c, q, &rows)
}

func listMustahiqHandler(c *gin.Context) {
	q := counterpartyQuery(c, &models.Mustahiq{})
	if s := c.Query("asnaf"); s != "" {
		q = q.Where("asnaf = ?", s)
	}
	rows := []models.Mustahiq{}
	listPage(c, q, &rows)
}

func getMuzakkiHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var m models.Muzakki
	if err := findByID(c, "muzakki", &m, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func getMustahiqHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var m models.Mustahiq
	if err := findByID(c, "mustahiq", &m, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func createMuzakkiHandler(c *gin.Context) {
	var req counterpartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	m, err := ledgerSvc.RegisterMuzakki(c.Request.Context(), req.input(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func updateMuzakkiHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req counterpartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	m, err := ledgerSvc.UpdateMuzakki(c.Request.Context(), id, req.input(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func createMustahiqHandler(c *gin.Context) {
	var req counterpartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	m, err := ledgerSvc.RegisterMustahiq(c.Request.Context(), req.input(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func updateMustahiqHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req counterpartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	m, err := ledgerSvc.UpdateMustahiq(c.Request.Context(), id, req.input(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// recomputeHandler rebuilds the aggregates of the counterparty fed by kind.
func recomputeHandler(kind ledger.EntryKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		change, err := ledgerSvc.Recompute(c.Request.Context(), kind, id, actorID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"before": change.Before, "after": change.After})
	}
}

func listPenerimaanHandler(c *gin.Context) {
	q := db.WithContext(c.Request.Context()).Model(&models.Penerimaan{})
	muzakkiID, err := optionalUint(c, "muzakki_id")
	if err != nil {
		respondError(c, err)
		return
	}
	if muzakkiID != nil {
		q = q.Where("muzakki_id = ?", *muzakkiID)
	}
	if q, err = bucketFilter(c, q); err != nil {
		respondError(c, err)
		return
	}
	if s := c.Query("category"); s != "" {
		q = q.Where("category = ?", s)
	}
	rows := []models.Penerimaan{}
	listPage(c, q, &rows)
}

func listDistribusiHandler(c *gin.Context) {
	q := db.WithContext(c.Request.Context()).Model(&models.Distribusi{})
	mustahiqID, err := optionalUint(c, "mustahiq_id")
	if err != nil {
		respondError(c, err)
		return
	}
	if mustahiqID != nil {
		q = q.Where("mustahiq_id = ?", *mustahiqID)
	}
	if q, err = bucketFilter(c, q); err != nil {
		respondError(c, err)
		return
	}
	if s := c.Query("status"); s != "" {
		status, err := models.ParseDistribusiStatus(s)
		if err != nil {
			respondError(c, ledger.Invalid("status", err.Error()))
			return
		}
		if status == models.DistribusiPending {
			q = q.Where("status IS NULL OR status = ''")
		} else {
			q = q.Where("status = ?", string(status))
		}
	}
	rows := []models.Distribusi{}
	listPage(c, q, &rows)
}

// bucketFilter applies ?year=&month= (1-12) against the month bucket columns.
func bucketFilter(c *gin.Context, q *gorm.DB) (*gorm.DB, error) {
	year, err := optionalUint(c, "year")
	if err != nil {
		return nil, err
	}
	if year != nil {
		q = q.Where("year = ?", *year)
	}
	month, err := optionalUint(c, "month")
	if err != nil {
		return nil, err
	}
	if month != nil {
		name := ledger.MonthName(timeMonth(*month))
		if name == "" {
			return nil, ledger.Invalid("month", "month must be between 1 and 12")
		}
		q = q.Where("month_name = ?", name)
	}
	return q, nil
}

func getPenerimaanHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var p models.Penerimaan
	if err := findByID(c, "penerimaan", &p, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func getDistribusiHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var d models.Distribusi
	if err := findByID(c, "distribusi", &d, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func createPenerimaanHandler(c *gin.Context) {
	var req penerimaanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := ledgerSvc.CreatePenerimaan(c.Request.Context(), in, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func updatePenerimaanHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req penerimaanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := ledgerSvc.UpdatePenerimaan(c.Request.Context(), id, in, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func deletePenerimaanHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := ledgerSvc.DeletePenerimaan(c.Request.Context(), id, actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func createDistribusiHandler(c *gin.Context) {
	var req distribusiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(c, err)
		return
	}
	d, err := ledgerSvc.CreateDistribusi(c.Request.Context(), in, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func updateDistribusiHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req distribusiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(c, err)
		return
	}
	d, err := ledgerSvc.UpdateDistribusi(c.Request.Context(), id, in, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func deleteDistribusiHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := ledgerSvc.DeleteDistribusi(c.Request.Context(), id, actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
