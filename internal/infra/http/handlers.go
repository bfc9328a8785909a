package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/usecase"
	"github.com/filiksyos/ghostmrr/pkg/badge"
)

const maxClaimBytes = 64 << 10

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type submitResponse struct {
	Badge    domain.PublicBadge `json:"badge"`
	IsUpdate bool               `json:"isUpdate"`
}

type badgeResponse struct {
	Badge domain.PublicBadge `json:"badge"`
}

type listResponse struct {
	Badges []domain.PublicBadge `json:"badges"`
}

type verifyResponse struct {
	Valid  bool                `json:"valid"`
	Reason domain.RejectReason `json:"reason,omitempty"`
	Detail string              `json:"detail,omitempty"`
	DID    string              `json:"did"`
	Tier   string              `json:"tier,omitempty"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	if s.submitUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	claim, err := readClaim(c)
	if err != nil {
		writeError(c, err)
		return
	}
	resp, err := s.submitUC.Execute(c.Request.Context(), usecase.SubmitBadgeRequest{
		Claim:    claim,
		ClientID: c.ClientIP(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if resp.IsUpdate {
		status = http.StatusOK
	}
	c.JSON(status, submitResponse{Badge: domain.Project(resp.Record), IsUpdate: resp.IsUpdate})
}

func (s *Server) handleReplace(c *gin.Context) {
	if s.replaceUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	claim, err := readClaim(c)
	if err != nil {
		writeError(c, err)
		return
	}
	record, err := s.replaceUC.Execute(c.Request.Context(), usecase.ReplaceBadgeRequest{
		DID:      didParam(c),
		Claim:    claim,
		ClientID: c.ClientIP(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, badgeResponse{Badge: domain.Project(record)})
}

func (s *Server) handleList(c *gin.Context) {
	if s.queryUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	badges, err := s.queryUC.List(c.Request.Context(), domain.GroupTag(c.Query("group")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse{Badges: badges})
}

func (s *Server) handleGet(c *gin.Context) {
	if s.queryUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	out, err := s.queryUC.Get(c.Request.Context(), didParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, badgeResponse{Badge: out})
}

// handleVerify checks a claim without storing it. A claim that fails
// verification is still a 200: the verdict is the payload.
func (s *Server) handleVerify(c *gin.Context) {
	claim, err := readClaim(c)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := s.verifyUC.Execute(claim)
	c.JSON(http.StatusOK, verifyResponse{
		Valid:  resp.Outcome.Valid,
		Reason: resp.Outcome.Reason,
		Detail: resp.Outcome.Detail,
		DID:    resp.DID,
		Tier:   resp.Tier,
	})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func didParam(c *gin.Context) string {
	raw := c.Param("did")
	if did, err := url.PathUnescape(raw); err == nil {
		return did
	}
	return raw
}

func readClaim(c *gin.Context) (domain.Claim, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxClaimBytes))
	if err != nil {
		return domain.Claim{}, errors.Join(domain.ErrMalformedClaim, err)
	}
	return badge.ParseClaim(body)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := usecase.ErrorCode(err)
	var details map[string]any
	switch {
	case errors.Is(err, domain.ErrMalformedClaim),
		errors.Is(err, domain.ErrIdentifierMismatch),
		errors.Is(err, domain.ErrSignatureInvalid),
		errors.Is(err, domain.ErrStaleSubmission),
		errors.Is(err, domain.ErrUnknownGroup),
		errors.Is(err, domain.ErrGroupIneligible),
		errors.Is(err, domain.ErrDIDMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountHashMismatch):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrStorageUnavailable):
		details = map[string]any{"retryable": true}
	}
	message := err.Error()
	switch code {
	case "STORAGE_UNAVAILABLE":
		message = domain.ErrStorageUnavailable.Error()
	case "INTERNAL":
		message = "internal error"
	}
	c.JSON(status, errorResponse{Code: code, Message: message, Details: details})
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
