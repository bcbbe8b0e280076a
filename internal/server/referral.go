package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	referraldomain "github.com/pagescope/pagescope/internal/referral/domain"
	waitlistdomain "github.com/pagescope/pagescope/internal/waitlist/domain"
	"github.com/pagescope/pagescope/pkg/db/pagination"
)

type createReferralCodeRequest struct {
	Code         string `json:"code"`
	OwnerSaleRef string `json:"owner_sale_ref"`
	CompanyName  string `json:"company_name"`
	Tier         string `json:"tier"`
}

func (s *Server) HandleCreateReferralCode(c *gin.Context) {
	var req createReferralCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.referralSvc.CreateCode(c.Request.Context(), referraldomain.CreateCodeRequest{
		Code:         strings.TrimSpace(req.Code),
		OwnerSaleRef: strings.TrimSpace(req.OwnerSaleRef),
		CompanyName:  strings.TrimSpace(req.CompanyName),
		Tier:         strings.TrimSpace(req.Tier),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) HandleGetReferralCode(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	resp, err := s.referralSvc.GetCode(c.Request.Context(), referraldomain.GetCodeRequest{
		Code: code,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) HandleListReferralCodes(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.referralSvc.ListCodes(c.Request.Context(), referraldomain.ListCodesRequest{
		Pagination: query,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) HandleListReferralConversions(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.referralSvc.ListConversions(c.Request.Context(), referraldomain.ListConversionsRequest{
		Code:       strings.TrimSpace(c.Param("code")),
		Pagination: query,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) HandleListWaitlist(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.waitlistSvc.List(c.Request.Context(), waitlistdomain.ListRequest{
		Pagination: query,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
