// Package http 提供计费服务的 HTTP 接入层.
// 对外序列化只发生在这一层，核心不定义任何线上格式.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wealthops/advisorybilling/internal/billing/application"
	"github.com/wealthops/advisorybilling/internal/billing/domain"
	"github.com/wealthops/advisorybilling/pkg/response"
)

// BillingHandler 计费 HTTP 处理器
type BillingHandler struct {
	app *application.BillingService
}

// NewBillingHandler 创建计费 HTTP 处理器
func NewBillingHandler(app *application.BillingService) *BillingHandler {
	return &BillingHandler{app: app}
}

// RegisterRoutes 将处理器方法绑定到 Gin 路由引擎
func (h *BillingHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/billing")
	{
		api.POST("/fee-schedules", h.CreateFeeSchedule)
		api.POST("/fee-schedules/legacy", h.CreateLegacyFeeSchedule)
		api.GET("/fee-schedules", h.ListFeeSchedules)
		api.GET("/fee-schedules/:id", h.GetFeeSchedule)
		api.POST("/clients", h.CreateClient)
		api.GET("/clients/:id", h.GetClient)
		api.GET("/periods/quarterly/:year", h.QuarterlyPeriods)
		api.GET("/periods/monthly/:year", h.MonthlyPeriods)
		api.POST("/calculations", h.Calculate)
	}
}

// CreateFeeSchedule 注册费率表
func (h *BillingHandler) CreateFeeSchedule(c *gin.Context) {
	var schedule domain.FeeSchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.app.RegisterFeeSchedule(c.Request.Context(), &schedule)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSchedule) {
			response.ErrorWithData(c, http.StatusBadRequest, "fee schedule validation failed", result)
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Created(c, gin.H{"schedule": schedule, "validation": result})
}

// CreateLegacyFeeSchedule 从旧系统扁平记录注册费率表
func (h *BillingHandler) CreateLegacyFeeSchedule(c *gin.Context) {
	var row legacyRowRequest
	if err := c.ShouldBindJSON(&row); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	schedule, err := h.app.RegisterLegacySchedule(c.Request.Context(), row.toDomain())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSchedule) {
			response.Error(c, http.StatusBadRequest, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Created(c, schedule)
}

// GetFeeSchedule 查询费率表
func (h *BillingHandler) GetFeeSchedule(c *gin.Context) {
	schedule, err := h.app.GetFeeSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			response.Error(c, http.StatusNotFound, "fee schedule not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, schedule)
}

// ListFeeSchedules 列出费率表
func (h *BillingHandler) ListFeeSchedules(c *gin.Context) {
	schedules, err := h.app.ListFeeSchedules(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, schedules)
}

// CreateClient 注册客户
func (h *BillingHandler) CreateClient(c *gin.Context) {
	var client domain.Client
	if err := c.ShouldBindJSON(&client); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.app.RegisterClient(c.Request.Context(), &client); err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Created(c, client)
}

// GetClient 查询客户
func (h *BillingHandler) GetClient(c *gin.Context) {
	client, err := h.app.GetClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			response.Error(c, http.StatusNotFound, "client not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, client)
}

// QuarterlyPeriods 列出某年的季度计费周期
func (h *BillingHandler) QuarterlyPeriods(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid year")
		return
	}
	response.Success(c, domain.QuarterlyPeriods(year))
}

// MonthlyPeriods 列出某年的月度计费周期
func (h *BillingHandler) MonthlyPeriods(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid year")
		return
	}
	response.Success(c, domain.MonthlyPeriods(year))
}

// Calculate 执行计费运行
func (h *BillingHandler) Calculate(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	period, err := req.Period.toDomain()
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	runID, result := h.app.CalculateFees(c.Request.Context(), req.Balances, req.Positions, period, req.ClientID)
	response.Success(c, application.ToRunDTO(runID, result))
}

// calculateRequest 计费运行请求体
type calculateRequest struct {
	Balances  []domain.AccountBalance  `json:"balances"`
	Positions []domain.AccountPosition `json:"positions"`
	Period    periodRequest            `json:"period"`
	ClientID  string                   `json:"client_id"`
}

// periodRequest 计费周期描述：preset 取 quarterly/monthly 时按年份与序号
// 查表，custom 时按显式起止日期构造
type periodRequest struct {
	Preset    string `json:"preset"`
	Year      int    `json:"year"`
	Index     int    `json:"index"` // 季度或月份序号，1 起
	Name      string `json:"name"`
	StartDate string `json:"start_date"` // 2006-01-02
	EndDate   string `json:"end_date"`
	Frequency string `json:"frequency"`
	AsOfDate  string `json:"as_of_date"`
}

var errInvalidPeriod = errors.New("invalid billing period")

func (p periodRequest) toDomain() (domain.BillingPeriod, error) {
	switch p.Preset {
	case "quarterly":
		if p.Index < 1 || p.Index > 4 {
			return domain.BillingPeriod{}, errInvalidPeriod
		}
		return domain.QuarterlyPeriods(p.Year)[p.Index-1], nil
	case "monthly":
		if p.Index < 1 || p.Index > 12 {
			return domain.BillingPeriod{}, errInvalidPeriod
		}
		return domain.MonthlyPeriods(p.Year)[p.Index-1], nil
	case "custom":
		start, err := time.Parse("2006-01-02", p.StartDate)
		if err != nil {
			return domain.BillingPeriod{}, errInvalidPeriod
		}
		end, err := time.Parse("2006-01-02", p.EndDate)
		if err != nil {
			return domain.BillingPeriod{}, errInvalidPeriod
		}
		if end.Before(start) {
			return domain.BillingPeriod{}, errInvalidPeriod
		}
		var asOf time.Time
		if p.AsOfDate != "" {
			if asOf, err = time.Parse("2006-01-02", p.AsOfDate); err != nil {
				return domain.BillingPeriod{}, errInvalidPeriod
			}
		}
		return domain.CustomPeriod(p.Name, start, end, domain.BillingFrequency(p.Frequency), asOf), nil
	default:
		return domain.BillingPeriod{}, errInvalidPeriod
	}
}

// legacyRowRequest 旧系统扁平费率记录请求体
type legacyRowRequest struct {
	FeeCode     string  `json:"fee_code"`
	FlatPercent float64 `json:"flat_percent"`
	FlatAmount  float64 `json:"flat_amount"`
	Tiers       []struct {
		Percent float64 `json:"percent"`
		Limit   float64 `json:"limit"`
		Cap     float64 `json:"cap"`
	} `json:"tiers"`
}

func (r legacyRowRequest) toDomain() domain.LegacyScheduleRow {
	row := domain.LegacyScheduleRow{
		FeeCode:     r.FeeCode,
		FlatPercent: r.FlatPercent,
		FlatAmount:  r.FlatAmount,
	}
	for i, t := range r.Tiers {
		if i >= domain.MaxTiers {
			break
		}
		row.TierSlots[i] = domain.LegacyTierSlot{Percent: t.Percent, Limit: t.Limit, Cap: t.Cap}
	}
	return row
}
