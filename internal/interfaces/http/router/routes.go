package router

import (
	"github.com/erp/settlement/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers bundles the handlers mounted by SettlementGroups.
type Handlers struct {
	Auth       *handler.AuthHandler
	Config     *handler.ConfigHandler
	Settlement *handler.SettlementHandler
	Dashboard  *handler.DashboardHandler
	Pages      *handler.PageHandler
	System     *handler.SystemHandler
}

// Gates are the middleware placed in front of route groups.
type Gates struct {
	Session   gin.HandlerFunc // required on every route that talks upstream
	Edit      gin.HandlerFunc // in front of mutating routes
	LoginRate gin.HandlerFunc // optional limiter for POST /auth/login
}

// SettlementGroups returns the dashboard route table: probes and public
// routes first, then everything behind the session gate.
func SettlementGroups(h Handlers, g Gates) []*DomainGroup {
	system := NewDomainGroup("system", "")
	system.GET("/health", h.System.Health)
	system.GET("/ready", h.System.Ready)

	public := NewDomainGroup("public", "")
	public.GET("/api/config", h.Config.GetConfig)
	public.GET("/login", h.Pages.Login)
	login := []gin.HandlerFunc{h.Auth.Login}
	if g.LoginRate != nil {
		login = append([]gin.HandlerFunc{g.LoginRate}, login...)
	}
	public.POST("/auth/login", login...)

	private := NewDomainGroup("session", "").Use(g.Session)
	private.GET("/", h.Pages.Index)

	auth := private.Group("auth", "/auth")
	auth.GET("/user", h.Auth.CurrentUser)
	auth.POST("/logout", h.Auth.Logout)

	api := private.Group("api", "/api")
	api.GET("/system/info", h.System.GetSystemInfo)

	invoices := api.Group("invoices", "/invoices")
	invoices.GET("", h.Settlement.ListInvoices)
	invoices.GET("/open", h.Settlement.ListOpenInvoices)
	invoices.GET("/unpaid", h.Settlement.ListUnpaidInvoices)

	payments := api.Group("payments", "/payments")
	payments.GET("", h.Settlement.ListPayments)
	payments.GET("/open", h.Settlement.ListOpenPayments)
	payments.GET("/unallocated", h.Settlement.ListUnallocatedPayments)

	allocations := api.Group("allocations", "/allocations")
	allocations.GET("", h.Settlement.ListAllocations)
	allocations.POST("", g.Edit, h.Settlement.CreateAllocation)
	allocations.DELETE("/:id", g.Edit, h.Settlement.DeleteAllocation)

	api.GET("/counterparties", h.Settlement.ListCounterparties)
	api.GET("/companies", h.Settlement.ListCompanies)

	dashboard := api.Group("dashboard", "/dashboard")
	dashboard.POST("/view", h.Dashboard.View)
	dashboard.POST("/allocate", g.Edit, h.Dashboard.Allocate)

	return []*DomainGroup{system, public, private}
}
