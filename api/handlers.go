package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/0xmhha/stomatrade-go/records"
	"github.com/0xmhha/stomatrade-go/workflow"
)

type approveRequest struct {
	ApprovedBy string `json:"approvedBy"`
}

type rejectRequest struct {
	RejectedBy string `json:"rejectedBy"`
	Reason     string `json:"reason"`
}

type investRequest struct {
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
	Amount    string `json:"amount"`
}

type depositRequest struct {
	ProjectID string `json:"projectId"`
	Amount    string `json:"amount"`
}

type claimRequest struct {
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
}

type projectRequest struct {
	ProjectID string `json:"projectId"`
}

// chained runs h with the request's chain id, answering 400 when the
// header is missing or malformed.
func (s *Server) chained(h func(w http.ResponseWriter, r *http.Request, chainID uint64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chainID, err := ParseChainID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, chainIDMessage(err))
			return
		}
		h(w, r, chainID)
	}
}

func (s *Server) createFarmerSubmission(w http.ResponseWriter, r *http.Request) {
	chainID, err := optionalChainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, chainIDMessage(err))
		return
	}
	var in workflow.CreateFarmerSubmission
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.workflows.Farmers.Create(r.Context(), in, chainID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) createProjectSubmission(w http.ResponseWriter, r *http.Request) {
	var in workflow.CreateProjectSubmission
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.workflows.Projects.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) approveFarmerSubmission(w http.ResponseWriter, r *http.Request, chainID uint64) {
	var in approveRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.workflows.Farmers.Approve(r.Context(), chi.URLParam(r, "id"), in.ApprovedBy, chainID)
	s.respond(w, r, out, err)
}

func (s *Server) approveProjectSubmission(w http.ResponseWriter, r *http.Request, chainID uint64) {
	var in approveRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.workflows.Projects.Approve(r.Context(), chi.URLParam(r, "id"), in.ApprovedBy, chainID)
	s.respond(w, r, out, err)
}

func (s *Server) rejectFarmerSubmission(w http.ResponseWriter, r *http.Request) {
	var in rejectRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.workflows.Farmers.Reject(r.Context(), chi.URLParam(r, "id"), in.RejectedBy, in.Reason)
	s.respond(w, r, out, err)
}

func (s *Server) rejectProjectSubmission(w http.ResponseWriter, r *http.Request) {
	var in rejectRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.workflows.Projects.Reject(r.Context(), chi.URLParam(r, "id"), in.RejectedBy, in.Reason)
	s.respond(w, r, out, err)
}

func (s *Server) getFarmerSubmission(w http.ResponseWriter, r *http.Request) {
	out, err := s.workflows.Farmers.Get(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, r, out, err)
}

func (s *Server) getProjectSubmission(w http.ResponseWriter, r *http.Request) {
	out, err := s.workflows.Projects.Get(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, r, out, err)
}

func (s *Server) listFarmerSubmissions(w http.ResponseWriter, r *http.Request) {
	out, err := s.workflows.Farmers.List(r.Context(), records.SubmissionStatus(r.URL.Query().Get("status")))
	s.respondList(w, r, out, err)
}

func (s *Server) listProjectSubmissions(w http.ResponseWriter, r *http.Request) {
	out, err := s.workflows.Projects.List(r.Context(), records.SubmissionStatus(r.URL.Query().Get("status")))
	s.respondList(w, r, out, err)
}

func (s *Server) createInvestment(w http.ResponseWriter, r *http.Request, chainID uint64) {
	var in investRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.workflows.Investments.Create(r.Context(), workflow.CreateInvestment{
		UserID:    in.UserID,
		ProjectID: in.ProjectID,
		Amount:    in.Amount,
	}, chainID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) depositProfit(w http.ResponseWriter, r *http.Request, chainID uint64) {
	var in depositRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.workflows.Profits.Deposit(r.Context(), in.ProjectID, in.Amount, chainID)
	s.respond(w, r, out, err)
}

func (s *Server) claimProfit(w http.ResponseWriter, r *http.Request, chainID uint64) {
	var in claimRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.workflows.Profits.Claim(r.Context(), in.UserID, in.ProjectID, chainID)
	s.respond(w, r, out, err)
}

func (s *Server) markRefundable(w http.ResponseWriter, r *http.Request, chainID uint64) {
	var in projectRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.workflows.Refunds.MarkRefundable(r.Context(), in.ProjectID, chainID)
	s.respond(w, r, out, err)
}

func (s *Server) claimRefund(w http.ResponseWriter, r *http.Request, chainID uint64) {
	var in claimRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.workflows.Refunds.Claim(r.Context(), in.UserID, in.ProjectID, chainID)
	s.respond(w, r, out, err)
}

func (s *Server) projectOnChain(w http.ResponseWriter, r *http.Request, chainID uint64) {
	out, err := s.workflows.ProjectOnChain(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("investor"), chainID)
	s.respond(w, r, out, err)
}

func (s *Server) closeProject(w http.ResponseWriter, r *http.Request, chainID uint64) {
	out, err := s.workflows.CloseProject(r.Context(), chi.URLParam(r, "id"), chainID)
	s.respond(w, r, out, err)
}

// InvalidateResponse reports a contract cache eviction.
type InvalidateResponse struct {
	ChainID     uint64 `json:"chainId"`
	Invalidated bool   `json:"invalidated"`
}

func (s *Server) invalidateContract(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "chainId")
	chainID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || chainID == 0 {
		writeError(w, http.StatusBadRequest, chainIDMessage(&ChainIDError{Value: raw, Reason: "must be a positive number"}))
		return
	}
	writeJSON(w, http.StatusOK, InvalidateResponse{
		ChainID:     chainID,
		Invalidated: s.contracts.Invalidate(chainID),
	})
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                  `json:"status"`
	Timestamp string                  `json:"timestamp"`
	Chains    map[string]*ChainHealth `json:"chains"`
}

// ChainHealth is the health of one connected chain.
type ChainHealth struct {
	Healthy     bool   `json:"healthy"`
	LatestBlock uint64 `json:"latestBlock"`
	GasPriceWei string `json:"gasPriceWei,omitempty"`
	LatencyMs   int64  `json:"latencyMs"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Chains:    make(map[string]*ChainHealth),
	}
	status := http.StatusOK

	if s.health != nil {
		for chainID, st := range s.health.HealthCheck(r.Context()) {
			resp.Chains[strconv.FormatUint(chainID, 10)] = &ChainHealth{
				Healthy:     st.IsHealthy,
				LatestBlock: st.LatestBlock,
				GasPriceWei: st.GasPrice,
				LatencyMs:   st.Latency.Milliseconds(),
				Error:       st.LastError,
			}
			if !st.IsHealthy {
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, out interface{}, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) respondList(w http.ResponseWriter, r *http.Request, out []*records.Submission, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if out == nil {
		out = []*records.Submission{}
	}
	writeJSON(w, http.StatusOK, out)
}
