package router

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/examtrace/api/database"
	analysis_handlers "github.com/examtrace/api/handlers/analysis"
	paper_handlers "github.com/examtrace/api/handlers/paper"
	subject_handlers "github.com/examtrace/api/handlers/subject"
	"github.com/examtrace/api/services"
	"github.com/examtrace/api/services/storage"
	"github.com/examtrace/api/utils/response"
)

// Dependencies carries everything the handlers need. Spaces may be nil when
// object storage is not configured.
type Dependencies struct {
	DB       *gorm.DB
	Store    *database.GORMStore
	Reports  *database.PostgreSQLStore
	Analysis *services.AnalysisService
	Spaces   *storage.SpacesClient
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	subjectHandler := subject_handlers.NewSubjectHandler(deps.DB)
	paperHandler := paper_handlers.NewPaperHandler(deps.DB, deps.Spaces)
	analysisHandler := analysis_handlers.NewAnalysisHandler(deps.DB, deps.Analysis, deps.Reports)

	// Health check endpoint (public)
	app.Get("/ping", func(c *fiber.Ctx) error {
		if err := deps.Store.HealthCheck(); err != nil {
			return response.ServiceUnavailable(c, "Database unavailable")
		}
		return response.Success(c, fiber.Map{"status": "ok"})
	})

	// API v1 group
	api := app.Group("/api/v1")

	// Subject routes: curriculum structure, exam pattern and rules
	subjects := api.Group("/subjects")
	subjects.Get("/", subjectHandler.ListSubjects)
	subjects.Post("/", subjectHandler.CreateSubject)
	subjects.Get("/:id", subjectHandler.GetSubject)
	subjects.Put("/:id", subjectHandler.UpdateSubject)
	subjects.Delete("/:id", subjectHandler.DeleteSubject)
	subjects.Put("/:id/modules", subjectHandler.ReplaceModules)
	subjects.Put("/:id/exam-pattern", subjectHandler.PutExamPattern)
	subjects.Get("/:id/rules", subjectHandler.ListRules)
	subjects.Post("/:id/rules", subjectHandler.CreateRule)
	subjects.Delete("/:id/rules/:rule_id", subjectHandler.DeleteRule)

	// Paper routes (nested under subjects for creation and listing)
	subjectPapers := api.Group("/subjects/:subject_id/papers")
	subjectPapers.Get("/", paperHandler.ListPapers)
	subjectPapers.Post("/", paperHandler.CreatePaper)

	papers := api.Group("/papers")
	papers.Get("/:id", paperHandler.GetPaper)
	papers.Delete("/:id", paperHandler.DeletePaper)
	papers.Get("/:id/download", paperHandler.GetDownloadURL)

	// Analysis pipeline
	papers.Post("/:id/analyze", analysisHandler.AnalyzePaper)
	papers.Post("/:id/reset", analysisHandler.ResetPaper)
	api.Get("/analysis-jobs/:job_id", analysisHandler.GetJobStatus)

	// Clustering and study priority
	subjects.Post("/:id/reset", analysisHandler.ResetSubject)
	subjects.Post("/:id/cluster", analysisHandler.ClusterSubject)
	subjects.Get("/:id/clusters", analysisHandler.ListClusters)
	subjects.Get("/:id/priority-report", analysisHandler.GetPriorityReport)
}
