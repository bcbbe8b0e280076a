package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	cartdomain "github.com/pagescope/pagescope/internal/cart/domain"
	checkoutdomain "github.com/pagescope/pagescope/internal/checkout/domain"
	consentdomain "github.com/pagescope/pagescope/internal/consent/domain"
	surveydomain "github.com/pagescope/pagescope/internal/survey/domain"
	waitlistdomain "github.com/pagescope/pagescope/internal/waitlist/domain"
)

type waitlistSignupRequest struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

func (s *Server) HandleWaitlistSignup(c *gin.Context) {
	var req waitlistSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.waitlistSvc.Signup(c.Request.Context(), waitlistdomain.SignupRequest{
		Email:  strings.TrimSpace(req.Email),
		Source: strings.TrimSpace(req.Source),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type cartTrackRequest struct {
	Email       string `json:"email"`
	UTMCampaign string `json:"utm_campaign"`
}

// HandleCartTrack records that a visitor reached the pricing page. The stage
// is fixed server-side; checkout and completion advance it through their own
// paths.
func (s *Server) HandleCartTrack(c *gin.Context) {
	var req cartTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	session, err := s.cartSvc.Track(c.Request.Context(), cartdomain.TrackInput{
		Email:       strings.TrimSpace(req.Email),
		UTMCampaign: strings.TrimSpace(req.UTMCampaign),
		Stage:       cartdomain.StageStarted,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

type createCheckoutSessionRequest struct {
	Token        string `json:"token"`
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code"`
}

func (s *Server) HandleCreateCheckoutSession(c *gin.Context) {
	var req createCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.checkoutSvc.CreateSession(c.Request.Context(), checkoutdomain.CreateSessionRequest{
		Token:        strings.TrimSpace(req.Token),
		Email:        strings.TrimSpace(req.Email),
		ReferralCode: strings.TrimSpace(req.ReferralCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type mintCampaignTokenRequest struct {
	UTMCampaign string `json:"utm_campaign"`
}

func (s *Server) HandleMintCampaignToken(c *gin.Context) {
	var req mintCampaignTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.checkoutSvc.MintToken(c.Request.Context(), checkoutdomain.MintTokenRequest{
		UTMCampaign: strings.TrimSpace(req.UTMCampaign),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type surveySubmitRequest struct {
	SaleRef string         `json:"sale_ref"`
	Score   int            `json:"score"`
	Answers map[string]any `json:"answers"`
}

func (s *Server) HandleSurveySubmit(c *gin.Context) {
	var req surveySubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.surveySvc.Submit(c.Request.Context(), surveydomain.SubmitRequest{
		SaleRef: strings.TrimSpace(req.SaleRef),
		Score:   req.Score,
		Answers: req.Answers,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type consentRecordRequest struct {
	VisitorID string              `json:"visitor_id"`
	Prefs     consentdomain.Prefs `json:"prefs"`
}

func (s *Server) HandleConsentRecord(c *gin.Context) {
	var req consentRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.consentSvc.Record(c.Request.Context(), consentdomain.RecordRequest{
		VisitorID: strings.TrimSpace(req.VisitorID),
		Prefs:     req.Prefs,
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
