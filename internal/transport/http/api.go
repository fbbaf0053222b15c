package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"placement-quiz-service/internal/app"
	"placement-quiz-service/internal/auth"
	"placement-quiz-service/internal/domain"
)

// API serves the JSON endpoints of the quiz.
type API struct {
	service       *app.QuizService
	accounts      *auth.Accounts
	tokens        *auth.AuthService
	secureCookies bool
}

func NewAPI(service *app.QuizService, accounts *auth.Accounts, tokens *auth.AuthService, secureCookies bool) *API {
	return &API{service: service, accounts: accounts, tokens: tokens, secureCookies: secureCookies}
}

// NewRouter mounts the API and the websocket endpoint.
func NewRouter(api *API, ws *WSHandler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(auth.Middleware(api.tokens))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/guest", api.guest)
		r.Post("/signup", api.signup)
		r.Post("/login", api.login)
		r.Post("/logout", api.logout)
	})

	r.Get("/api/subjects", api.subjects)
	r.Group(func(r chi.Router) {
		r.Use(auth.Require)
		r.Route("/api/quiz", func(r chi.Router) {
			r.Post("/", api.startQuiz)
			r.Get("/", api.currentQuiz)
			r.Post("/answer", api.answer)
			r.Get("/remaining", api.remaining)
			r.Post("/finish", api.finish)
		})
		r.Post("/api/report", api.report)
		r.Get("/api/history", api.history)
		if ws != nil {
			r.Get("/ws", ws.ServeWS)
		}
	})
	return r
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type identityResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	Guest       bool   `json:"guest"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token"`
}

func (a *API) guest(w http.ResponseWriter, r *http.Request) {
	a.issue(w, http.StatusCreated, a.accounts.Guest())
}

func (a *API) signup(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	who, err := a.accounts.Signup(r.Context(), in.Email, in.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	a.issue(w, http.StatusCreated, who)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	who, err := a.accounts.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	a.issue(w, http.StatusOK, who)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) issue(w http.ResponseWriter, status int, who domain.Identity) {
	token, err := a.tokens.IssueJWT(who)
	if err != nil {
		log.Printf("issue token for %s: %v", who.ID, err)
		writeErr(w, http.StatusInternalServerError, "token error")
		return
	}
	a.tokens.SetCookie(w, token, a.secureCookies)
	writeJSON(w, status, identityResponse{
		ID:          who.ID,
		Email:       who.Email,
		Guest:       who.Guest,
		DisplayName: who.DisplayName(),
		Token:       token,
	})
}

type subjectInfo struct {
	Name   string `json:"name"`
	Abbrev string `json:"abbrev"`
}

type subjectsResponse struct {
	Subjects     []subjectInfo       `json:"subjects"`
	Difficulties []domain.Difficulty `json:"difficulties"`
	MaxQuestions int                 `json:"max_questions"`
}

func (a *API) subjects(w http.ResponseWriter, r *http.Request) {
	out := subjectsResponse{
		Difficulties: []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard},
		MaxQuestions: app.MaxQuestions,
	}
	for _, s := range domain.Subjects {
		out.Subjects = append(out.Subjects, subjectInfo{Name: s, Abbrev: domain.SubjectAbbrev(s)})
	}
	writeJSON(w, http.StatusOK, out)
}

type startRequest struct {
	Subjects     []string `json:"subjects"`
	Difficulty   string   `json:"difficulty"`
	NumQuestions int      `json:"num_questions"`
	Timed        bool     `json:"timed_test"`
}

func (a *API) startQuiz(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	var in startRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(in.Subjects) == 0 {
		writeErr(w, http.StatusBadRequest, "select at least one subject")
		return
	}
	view, err := a.service.Start(r.Context(), who.ID, app.StartRequest{
		Subjects:     in.Subjects,
		Difficulty:   domain.ParseDifficulty(in.Difficulty),
		NumQuestions: in.NumQuestions,
		Timed:        in.Timed,
	})
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) currentQuiz(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	view, err := a.service.Current(r.Context(), who.ID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type answerRequest struct {
	QuestionIndex *int    `json:"question_index"`
	Selected      *string `json:"selected_option"`
}

// toSubmission maps the request body. Unrecognized labels count as no selection.
func (in answerRequest) toSubmission() domain.AnswerSubmission {
	sub := domain.AnswerSubmission{QuestionIndex: in.QuestionIndex}
	if in.Selected != nil {
		if l, ok := domain.ParseLabel(*in.Selected); ok {
			sub.Selected = l
		}
	}
	return sub
}

func (a *API) answer(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	var in answerRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	outcome, err := a.service.SubmitAnswer(r.Context(), who.ID, in.toSubmission())
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type remainingResponse struct {
	Timed            bool     `json:"timed_test"`
	RemainingSeconds *float64 `json:"time_left"`
}

func (a *API) remaining(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	left, timed, err := a.service.Remaining(r.Context(), who.ID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, remainingOf(left.Seconds(), timed))
}

func remainingOf(secs float64, timed bool) remainingResponse {
	out := remainingResponse{Timed: timed}
	if timed {
		if secs < 0 {
			secs = 0
		}
		out.RemainingSeconds = &secs
	}
	return out
}

type finishRequest struct {
	TimedOut bool `json:"timed_out"`
}

func (a *API) finish(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	var in finishRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	data, err := a.service.Finish(r.Context(), who.ID, who, in.TimedOut)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

type reportResponse struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

func (a *API) report(w http.ResponseWriter, r *http.Request) {
	var data domain.ReportData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	rep, err := a.service.Report(r.Context(), data)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Markdown: rep.Markdown, HTML: rep.HTML})
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.IdentityFromContext(r.Context())
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	account, err := a.accounts.Resolve(r.Context(), who)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	results, err := a.service.History(r.Context(), account, limit)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResp struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// statusOf maps service errors to HTTP statuses and client-facing messages.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusConflict, "Session expired"
	case errors.Is(err, domain.ErrInvalidIndex):
		return http.StatusBadRequest, "Invalid question index"
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrUserNotFound):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "Email already registered"
	case errors.Is(err, domain.ErrReportFailed):
		return http.StatusBadGateway, "Report generation failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeServiceErr(w http.ResponseWriter, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeErr(w, status, msg)
}
