package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
)

// PluginName is the path segment shells use to address the plugin.
const PluginName = "CapAndroidSteps"

// CallIDHeader lets a shell supply its own call id; it must be a UUID.
const CallIDHeader = "X-Call-Id"

const (
	maxBodyBytes   = 64 << 10
	maxPromptWait  = 30 * time.Second
	androidGranted = 0
)

// PromptQueue is the host side of the permission flow: prompts waiting to be
// shown and the states the user picked.
type PromptQueue interface {
	Next(ctx context.Context) (domain.PermissionRequest, error)
	Record(permissions []string, grants []domain.PermissionState)
}

// ResultHandler correlates a prompt answer with the call waiting on it.
type ResultHandler interface {
	HandleResult(requestCode int, permissions []string, grants []domain.PermissionState) bool
}

// PermissionResultRequest mirrors onRequestPermissionsResult: grantResults
// uses the Android encoding, 0 for granted and -1 for denied.
type PermissionResultRequest struct {
	RequestCode  int      `json:"requestCode"`
	Permissions  []string `json:"permissions"`
	GrantResults []int    `json:"grantResults"`
}

type errorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	CallID string     `json:"callId"`
	Data   any        `json:"data,omitempty"`
	Error  *errorBody `json:"error,omitempty"`
}

type method func(ctx context.Context, body []byte) (any, error)

// Handler serves plugin calls and, when a prompt queue is configured, the
// host permission endpoints.
type Handler struct {
	plugin  *Plugin
	prompts PromptQueue
	results ResultHandler
	log     logrus.FieldLogger
	methods map[string]method
}

// NewHandler wires the plugin methods. prompts and results may be nil when
// the host never prompts.
func NewHandler(plugin *Plugin, prompts PromptQueue, results ResultHandler, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &Handler{
		plugin:  plugin,
		prompts: prompts,
		results: results,
		log:     log.WithField("component", "bridge"),
	}
	h.methods = map[string]method{
		"getStepsForPeriod": func(_ context.Context, body []byte) (any, error) {
			var opts StepPeriodOptions
			if err := decodeOptions(body, &opts); err != nil {
				return nil, err
			}
			return plugin.GetStepsForPeriod(opts)
		},
		"requestActivityRecognitionPermission": func(ctx context.Context, _ []byte) (any, error) {
			return plugin.RequestActivityRecognitionPermission(ctx)
		},
		"getRawSensorValues": func(_ context.Context, _ []byte) (any, error) {
			return plugin.GetRawSensorValues()
		},
		"invertString": func(_ context.Context, body []byte) (any, error) {
			var opts InvertStringOptions
			if err := decodeOptions(body, &opts); err != nil {
				return nil, err
			}
			return plugin.InvertString(opts)
		},
	}
	return h
}

// Register mounts the bridge routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /plugins/"+PluginName+"/{method}", h.handleCall)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h.prompts != nil && h.results != nil {
		mux.HandleFunc("GET /host/permissions/prompts", h.handleNextPrompt)
		mux.HandleFunc("POST /host/permissions/result", h.handlePermissionResult)
	}
}

func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request) {
	callID := callIDFrom(r)
	name := r.PathValue("method")
	log := h.log.WithFields(logrus.Fields{"method": name, "call_id": callID})
	start := time.Now()

	fn, ok := h.methods[name]
	if !ok {
		h.writeRejection(w, callID, reject(CodeUnimplemented, "Method "+name+" is not implemented", nil))
		log.Info("unknown plugin method")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeRejection(w, callID, reject(CodeInvalidArgument, "Unreadable call options", err))
		return
	}

	data, err := fn(r.Context(), body)
	if err != nil {
		rej := AsRejection(err)
		h.writeRejection(w, callID, rej)
		entry := log.WithFields(logrus.Fields{"code": rej.Code, "duration": time.Since(start)})
		if rej.Code == CodeUnavailable {
			entry.WithError(err).Warn("plugin call failed")
		} else {
			entry.Debug("plugin call rejected")
		}
		return
	}

	writeJSON(w, http.StatusOK, envelope{CallID: callID, Data: data})
	log.WithField("duration", time.Since(start)).Debug("plugin call resolved")
}

func (h *Handler) handleNextPrompt(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), maxPromptWait)
	defer cancel()

	p, err := h.prompts.Next(ctx)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handlePermissionResult(w http.ResponseWriter, r *http.Request) {
	var req PermissionResultRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: CodeInvalidArgument, Message: err.Error()})
		return
	}

	grants := make([]domain.PermissionState, len(req.GrantResults))
	for i, g := range req.GrantResults {
		if g == androidGranted {
			grants[i] = domain.PermissionGranted
		} else {
			grants[i] = domain.PermissionDenied
		}
	}

	h.prompts.Record(req.Permissions, grants)
	matched := h.results.HandleResult(req.RequestCode, req.Permissions, grants)
	writeJSON(w, http.StatusOK, map[string]bool{"matched": matched})
}

func (h *Handler) writeRejection(w http.ResponseWriter, callID string, rej *Rejection) {
	writeJSON(w, rej.Code.HTTPStatus(), envelope{
		CallID: callID,
		Error:  &errorBody{Code: rej.Code, Message: rej.Message},
	})
}

// decodeOptions accepts an empty body as empty options.
func decodeOptions(body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return reject(CodeInvalidArgument, "Call options must be a JSON object", err)
	}
	return nil
}

func callIDFrom(r *http.Request) string {
	if id, err := uuid.Parse(r.Header.Get(CallIDHeader)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Debug("write response")
	}
}
