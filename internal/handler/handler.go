package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/config"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/progress"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/queue"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/repository"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	repository *repository.Repository
	translator ut.Translator
	publisher  *queue.Publisher
	progress   *progress.Store

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, publisher *queue.Publisher, progressStore *progress.Store) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		repository: repo,
		translator: trans,
		publisher:  publisher,
		progress:   progressStore,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logRequests)
	h.Mux.Use(h.recoverPanics)

	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下接口需要登录
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		adminOnly := h.requireRole(domain.RoleAdmin)

		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.loadUser)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Get("/scheduling-runs", h.GetMySchedulingRuns)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.GetAllUsers)
			r.With(adminOnly).Post("/", h.CreateUser)
		})

		r.Route("/subjects", func(r chi.Router) {
			r.Get("/", h.GetAllSubjects)
			r.With(adminOnly).Post("/", h.CreateSubject)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.loadSubject)
				r.Get("/", h.GetSubject)
				r.With(adminOnly).Patch("/", h.UpdateSubject)
				r.With(adminOnly).Delete("/", h.DeleteSubject)
			})
		})

		// 所有人都可以发起排课，停止和删除只能由发起者或管理员进行
		r.Route("/scheduling-runs", func(r chi.Router) {
			r.Get("/", h.GetAllSchedulingRuns)
			r.Post("/", h.CreateSchedulingRun)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.loadRun)
				r.Get("/", h.GetSchedulingRun)
				r.Get("/progress", h.GetSchedulingRunProgress)
				r.Get("/result", h.GetSchedulingRunResult)
				r.With(h.requireRunOwner).Post("/stop", h.StopSchedulingRun)
				r.With(h.requireRunOwner).Delete("/", h.DeleteSchedulingRun)
			})
		})
	})
}
