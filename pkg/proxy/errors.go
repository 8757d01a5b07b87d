package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/admission"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/pipeline"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/upstream"
)

// writeError maps an enforcement error to its HTTP response. The blocked
// body reuses the pipeline's structured rejection shape; everything else
// gets a small typed error object.
func writeError(w http.ResponseWriter, err error) {
	var blocked *pipeline.BlockedError
	if errors.As(err, &blocked) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnavailableForLegalReasons)
		w.Write(pipeline.BlockBody(blocked, false))
		return
	}

	var queueFull *admission.QueueFullError
	if errors.As(err, &queueFull) {
		writeErrorObject(w, http.StatusTooManyRequests, "queue_full", queueFull.Error())
		return
	}

	var queueTimeout *admission.QueueTimeoutError
	if errors.As(err, &queueTimeout) {
		writeErrorObject(w, http.StatusServiceUnavailable, "queue_timeout", queueTimeout.Error())
		return
	}

	var timeout *upstream.TimeoutError
	if errors.As(err, &timeout) {
		writeErrorObject(w, http.StatusGatewayTimeout, "upstream_timeout", "backend did not respond in time")
		return
	}

	var connect *upstream.ConnectError
	if errors.As(err, &connect) {
		writeErrorObject(w, http.StatusBadGateway, "upstream_unreachable", "backend is unreachable")
		return
	}

	// Backend's own errors pass through with their status.
	var status *upstream.StatusError
	if errors.As(err, &status) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status.StatusCode)
		w.Write([]byte(status.Body))
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		writeErrorObject(w, http.StatusGatewayTimeout, "request_timeout", "request did not complete in time")
		return
	}

	writeErrorObject(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
}

// rejectionReason labels admission rejections for metrics; empty for other
// errors.
func rejectionReason(err error) string {
	var queueFull *admission.QueueFullError
	if errors.As(err, &queueFull) {
		return "queue_full"
	}
	var queueTimeout *admission.QueueTimeoutError
	if errors.As(err, &queueTimeout) {
		return "queue_timeout"
	}
	return ""
}

func writeErrorObject(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"type":    errType,
			"message": message,
		},
	})
}
