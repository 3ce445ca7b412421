package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mobigaurav/ai-release-guardian/internal/metrics"
	"github.com/mobigaurav/ai-release-guardian/internal/release"
)

// SignatureHeader carries the HMAC-SHA256 of the delivery body.
const SignatureHeader = "X-Hub-Signature-256"

type webhookRQ struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number int `json:"number"`
	} `json:"pull_request"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
}

// handleWebhook reviews a pull request when it is opened or receives new
// commits. Other actions are acknowledged and ignored.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		s.observeWebhook(metrics.WebhookRejected)
		return
	}
	if s.settings.WebhookSecret != "" && !ValidSignature(s.settings.WebhookSecret, body, r.Header.Get(SignatureHeader)) {
		s.observeWebhook(metrics.WebhookRejected)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var rq webhookRQ
	if err := json.Unmarshal(body, &rq); err != nil {
		s.observeWebhook(metrics.WebhookRejected)
		writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}
	if rq.Action != "opened" && rq.Action != "synchronize" {
		s.observeWebhook(metrics.WebhookIgnored)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Webhook ignored"))
		return
	}

	ref := release.Ref{Owner: rq.Repository.Owner.Login, Repo: rq.Repository.Name, Number: rq.PullRequest.Number}
	s.logger.InfoContext(r.Context(), "processing pull request", "ref", ref.String())
	if ref.Validate() != nil {
		s.observeWebhook(metrics.WebhookRejected)
		writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	a, err := s.svc.Review(r.Context(), ref)
	if err != nil {
		s.observeWebhook(metrics.WebhookFailed)
		s.logger.ErrorContext(r.Context(), "error processing webhook", "ref", ref.String(), "error", err)
		writeUpstreamError(w, err, http.StatusInternalServerError)
		return
	}
	s.observeWebhook(metrics.WebhookProcessed)
	s.logger.InfoContext(r.Context(), "successfully processed pull request", "ref", ref.String())
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"pr_number":       ref.Number,
		"tests_generated": a.Tests.Total,
		"risk_score":      a.Risk.RiskScore,
	})
}

func (s *Server) observeWebhook(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveWebhook(outcome)
	}
}

// ValidSignature checks a "sha256=<hex>" signature against body.
func ValidSignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
