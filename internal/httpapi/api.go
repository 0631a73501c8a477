package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/yuqie6/PlayPulse/internal/dto"
	"github.com/yuqie6/PlayPulse/internal/service"
)

const requestTimeout = 10 * time.Second

func (a *apiServer) registerJSONRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/playthroughs", a.wrapAny(a.playthroughs))
	mux.HandleFunc("/api/playthroughs/detail", a.wrapGET(a.getPlaythrough))
	mux.HandleFunc("/api/playthroughs/delete", a.wrapWrite(a.deletePlaythrough))

	svc := a.core.Services.Playthroughs
	mux.HandleFunc("/api/playthroughs/start", a.wrapWrite(a.playthroughAction(svc.Start)))
	mux.HandleFunc("/api/playthroughs/pause", a.wrapWrite(a.playthroughAction(svc.Pause)))
	mux.HandleFunc("/api/playthroughs/stop", a.wrapWrite(a.playthroughAction(svc.Stop)))
	mux.HandleFunc("/api/playthroughs/drop", a.wrapWrite(a.playthroughAction(svc.Drop)))
	mux.HandleFunc("/api/playthroughs/pickup", a.wrapWrite(a.playthroughAction(svc.Pickup)))
	mux.HandleFunc("/api/playthroughs/end-session", a.wrapWrite(a.playthroughAction(svc.EndSession)))

	mux.HandleFunc("/api/playthroughs/duration", a.wrapWrite(a.updateDuration))
	mux.HandleFunc("/api/playthroughs/platform", a.wrapWrite(a.updateText(svc.UpdatePlatform)))
	mux.HandleFunc("/api/playthroughs/title", a.wrapWrite(a.updateText(svc.UpdateTitle)))
	mux.HandleFunc("/api/playthroughs/log-session", a.wrapWrite(a.logManualSession))
	mux.HandleFunc("/api/playthroughs/import", a.wrapWrite(a.importSessions))
	mux.HandleFunc("/api/playthroughs/sessions", a.wrapGET(a.listSessions))
	mux.HandleFunc("/api/playthroughs/sessions/delete", a.wrapWrite(a.deleteSession))

	mux.HandleFunc("/api/wellness/daily", a.wrapGET(a.getDailyMetrics))
	mux.HandleFunc("/api/wellness/range", a.wrapGET(a.listMetrics))
	mux.HandleFunc("/api/wellness/recompute", a.wrapWrite(a.recomputeMetrics))
	mux.HandleFunc("/api/wellness/backfill", a.wrapWrite(a.backfillMetrics))
	mux.HandleFunc("/api/wellness/dashboard", a.wrapGET(a.getDashboard))
	mux.HandleFunc("/api/wellness/mood", a.wrapWrite(a.submitMood))
	mux.HandleFunc("/api/wellness/settings", a.wrapAny(a.healthSettings))

	mux.HandleFunc("/api/users/profile", a.wrapAny(a.userProfile))
}

func (a *apiServer) wrapGET(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

func (a *apiServer) wrapPOST(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

// wrapWrite POST + 安全模式检查
func (a *apiServer) wrapWrite(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return a.wrapPOST(func(w http.ResponseWriter, r *http.Request) {
		if !a.requireWritableDB(w) {
			return
		}
		fn(w, r)
	})
}

func (a *apiServer) wrapAny(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { fn(w, r) }
}

func (a *apiServer) requireWritableDB(w http.ResponseWriter) bool {
	if err := a.core.RequireWritable(); err != nil {
		writeAPIError(w, http.StatusServiceUnavailable, APIError{
			Error: err.Error(),
			Code:  "db_safe_mode",
			Hint:  "请查看 /api/status 中的原因并修复后重启",
		})
		return false
	}
	return true
}

// ========== playthroughs ==========

func (a *apiServer) playthroughs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listPlaythroughs(w, r)
	case http.MethodPost:
		if !a.requireWritableDB(w) {
			return
		}
		a.createPlaythrough(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *apiServer) listPlaythroughs(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := a.core.Services.Playthroughs.ListByUser(ctx, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *apiServer) createPlaythrough(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req dto.CreatePlaythroughRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	v, err := a.core.Services.Playthroughs.Create(ctx, service.CreatePlaythroughInput{
		UserID:          uid,
		GameID:          req.GameID,
		PlaythroughType: req.PlaythroughType,
		Title:           req.Title,
		Platform:        req.Platform,
		StartDate:       strings.TrimSpace(req.StartDate),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (a *apiServer) getPlaythrough(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	v, err := a.core.Services.Playthroughs.Get(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *apiServer) deletePlaythrough(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := a.core.Services.Playthroughs.Delete(ctx, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

type playthroughOp func(ctx context.Context, id int64) (*service.PlaythroughView, error)

// playthroughAction 只需要 id 的状态机操作
func (a *apiServer) playthroughAction(op playthroughOp) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := queryID(w, r, "id")
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		v, err := op(ctx, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (a *apiServer) updateDuration(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdateDurationRequestDTO
	if err := readJSON(r, &req); err != nil || req.DurationSeconds == nil {
		writeError(w, http.StatusBadRequest, "duration_seconds 不能为空")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	v, err := a.core.Services.Playthroughs.UpdateDuration(ctx, id, *req.DurationSeconds)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *apiServer) updateText(op func(ctx context.Context, id int64, value string) (*service.PlaythroughView, error)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := queryID(w, r, "id")
		if !ok {
			return
		}
		var req dto.UpdateTextRequestDTO
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		v, err := op(ctx, id, req.Value)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (a *apiServer) logManualSession(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ManualSessionRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	start, err := parseRFC3339("started_at", req.StartedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseRFC3339("ended_at", req.EndedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	v, err := a.core.Services.Playthroughs.LogManualSession(ctx, id, start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *apiServer) importSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ImportSessionsRequestDTO
	if err := readJSON(r, &req); err != nil || req.SourcePlaythroughID <= 0 {
		writeError(w, http.StatusBadRequest, "source_playthrough_id 不能为空")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	v, err := a.core.Services.Playthroughs.ImportSessions(ctx, id, req.SourcePlaythroughID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *apiServer) listSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := a.core.Services.Playthroughs.ListSessions(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *apiServer) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r, "id")
	if !ok {
		return
	}
	sessionID, ok := queryID(w, r, "session_id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	v, err := a.core.Services.Playthroughs.DeleteSession(ctx, id, sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ========== wellness ==========

func (a *apiServer) getDailyMetrics(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = a.core.Services.Wellness.Today()
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	m, err := a.core.Services.Wellness.GetDaily(ctx, uid, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if m == nil {
		writeAPIError(w, http.StatusNotFound, APIError{Error: "当天没有健康指标", Code: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *apiServer) listMetrics(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := a.core.Services.Wellness.ListRange(ctx, uid, strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *apiServer) recomputeMetrics(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = a.core.Services.Wellness.Today()
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	m, err := a.core.Services.Wellness.Recompute(ctx, uid, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "metrics": m})
}

func (a *apiServer) backfillMetrics(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	to := strings.TrimSpace(q.Get("to"))
	if to == "" {
		to = a.core.Services.Wellness.Today()
	}
	from := strings.TrimSpace(q.Get("from"))
	if from == "" {
		from = to
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	res, err := a.core.Services.Wellness.Backfill(ctx, uid, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *apiServer) getDashboard(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	d, err := a.core.Services.Wellness.Dashboard(ctx, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *apiServer) submitMood(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req dto.MoodRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	entry, m, err := a.core.Services.Wellness.SubmitMood(ctx, service.SubmitMoodInput{
		UserID:           uid,
		MoodRating:       req.MoodRating,
		SessionHistoryID: req.SessionHistoryID,
		Note:             req.Note,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"mood": entry, "metrics": m})
}

func (a *apiServer) healthSettings(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		settings, err := a.core.Services.Wellness.GetSettings(ctx, uid)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		if !a.requireWritableDB(w) {
			return
		}
		var patch service.SettingsPatch
		if err := readJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		settings, err := a.core.Services.Wellness.UpdateSettings(ctx, uid, patch)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// ========== users ==========

func (a *apiServer) userProfile(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		age, err := a.core.Repos.User.GetAge(ctx, uid)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.UserProfileDTO{UserID: uid, Age: age})
	case http.MethodPut:
		if !a.requireWritableDB(w) {
			return
		}
		var req dto.UpdateUserProfileRequestDTO
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Age != nil && (*req.Age < 0 || *req.Age > 150) {
			writeAPIError(w, http.StatusBadRequest, APIError{Error: "age 超出范围", Code: "validation"})
			return
		}
		if err := a.core.Repos.User.UpsertAge(ctx, uid, req.Age); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.UserProfileDTO{UserID: uid, Age: req.Age})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func queryID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := parseInt64Param(r.URL.Query().Get(key))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, key+" 无效")
		return 0, false
	}
	return id, true
}
