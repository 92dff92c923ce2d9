package paper

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/examtrace/api/model"
	"github.com/examtrace/api/services"
	"github.com/examtrace/api/services/storage"
	"github.com/examtrace/api/utils/response"
	"github.com/examtrace/api/utils/validation"
)

// PaperHandler handles paper upload and retrieval. A paper can arrive as a
// PDF upload (Spaces + text extraction) or as pre-extracted raw text.
type PaperHandler struct {
	db        *gorm.DB
	spaces    *storage.SpacesClient // nil when Spaces is not configured
	pdf       *services.PDFExtractor
	ocr       *services.OCRClient
	validator *validation.Validator
}

// NewPaperHandler creates a new paper handler; spaces may be nil
func NewPaperHandler(db *gorm.DB, spaces *storage.SpacesClient) *PaperHandler {
	return &PaperHandler{
		db:        db,
		spaces:    spaces,
		pdf:       services.NewPDFExtractor(),
		ocr:       services.NewOCRClient(),
		validator: validation.NewValidator(),
	}
}

// CreatePaperRequest is the JSON payload for raw-text paper creation.
// Multipart uploads carry the same fields as form values plus "file".
type CreatePaperRequest struct {
	Title    string `json:"title" form:"title" validate:"required,min=2,max=255"`
	Year     string `json:"year" form:"year" validate:"max=50"`
	ExamType string `json:"exam_type" form:"exam_type" validate:"max=100"`
	RawText  string `json:"raw_text" form:"raw_text"`
}

// ListPapers handles GET /api/v1/subjects/:subject_id/papers
func (h *PaperHandler) ListPapers(c *fiber.Ctx) error {
	subjectID, err := parseID(c, "subject_id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var papers []model.Paper
	err = h.db.Preload("Questions").
		Where("subject_id = ?", subjectID).
		Order("year DESC, created_at DESC").
		Find(&papers).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch papers")
	}

	summaries := make([]model.PaperSummary, len(papers))
	for i := range papers {
		summaries[i] = papers[i].ToSummary()
	}
	return response.Success(c, fiber.Map{
		"papers": summaries,
		"total":  len(summaries),
	})
}

// GetPaper handles GET /api/v1/papers/:id
func (h *PaperHandler) GetPaper(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid paper ID")
	}

	var paper model.Paper
	err = h.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.id ASC")
	}).Preload("Questions.Module").First(&paper, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Paper not found")
		}
		return response.InternalServerError(c, "Failed to fetch paper")
	}

	return response.Success(c, paper)
}

// CreatePaper handles POST /api/v1/subjects/:subject_id/papers.
// With a multipart "file" part the PDF is stored and its text extracted;
// otherwise the JSON body must carry raw_text.
func (h *PaperHandler) CreatePaper(c *fiber.Ctx) error {
	subjectID, err := parseID(c, "subject_id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var subject model.Subject
	if err := h.db.First(&subject, subjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	var req CreatePaperRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	paper := model.Paper{
		SubjectID: subject.ID,
		Title:     validation.SanitizeString(req.Title),
		Year:      validation.SanitizeString(req.Year),
		ExamType:  validation.SanitizeString(req.ExamType),
		Status:    model.PaperPending,
	}

	if fileHeader, err := c.FormFile("file"); err == nil {
		if err := h.ingestPDF(c, &paper, fileHeader); err != nil {
			return err // ingestPDF writes the response
		}
	} else {
		if req.RawText == "" {
			return response.BadRequest(c, "Either a PDF file or raw_text is required")
		}
		paper.RawText = req.RawText
	}

	if err := h.db.Create(&paper).Error; err != nil {
		return response.InternalServerError(c, "Failed to create paper")
	}
	return response.Created(c, paper)
}

// ingestPDF fills the paper from an uploaded PDF: dedup by content hash,
// optional Spaces upload, then text extraction with an OCR fallback for
// scanned documents. Returns a non-nil error only after writing a response.
func (h *PaperHandler) ingestPDF(c *fiber.Ctx, paper *model.Paper, fileHeader *multipart.FileHeader) error {
	file, err := fileHeader.Open()
	if err != nil {
		return response.BadRequest(c, "Failed to read uploaded file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return response.BadRequest(c, "Failed to read uploaded file")
	}

	hash := sha256.Sum256(content)
	paper.FileHash = hex.EncodeToString(hash[:])

	var duplicate model.Paper
	err = h.db.Where("subject_id = ? AND file_hash = ?", paper.SubjectID, paper.FileHash).
		First(&duplicate).Error
	if err == nil {
		return response.Conflict(c, "This paper has already been uploaded")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return response.InternalServerError(c, "Failed to check for duplicate paper")
	}

	if h.spaces != nil {
		key := storage.PaperKey(paper.SubjectID, fileHeader.Filename)
		if err := h.spaces.UploadPaper(c.Context(), key, content); err != nil {
			log.Printf("PaperHandler: spaces upload failed: %v", err)
			return response.InternalServerError(c, "Failed to store paper file")
		}
		paper.SpacesKey = key
	}

	text, pageCount, err := h.pdf.ExtractText(content)
	if err != nil {
		// Scanned papers go through the OCR sidecar when it is up
		if h.ocr.IsAvailable(c.Context()) {
			ocrResp, ocrErr := h.ocr.ProcessPDFFile(c.Context(), content, fileHeader.Filename)
			if ocrErr != nil {
				log.Printf("PaperHandler: OCR fallback failed: %v", ocrErr)
				return response.BadRequest(c, "Could not extract text from PDF")
			}
			text = ocrResp.Text
			if ocrResp.PageCount > 0 {
				pageCount = ocrResp.PageCount
			}
		} else {
			return response.BadRequest(c, "Could not extract text from PDF: "+err.Error())
		}
	}

	paper.RawText = text
	paper.PageCount = pageCount
	return nil
}

// DeletePaper handles DELETE /api/v1/papers/:id
func (h *PaperHandler) DeletePaper(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid paper ID")
	}

	var paper model.Paper
	if err := h.db.First(&paper, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Paper not found")
		}
		return response.InternalServerError(c, "Failed to fetch paper")
	}

	if err := h.db.Delete(&paper).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete paper")
	}

	if h.spaces != nil && paper.SpacesKey != "" {
		if err := h.spaces.DeletePaper(c.Context(), paper.SpacesKey); err != nil {
			log.Printf("PaperHandler: failed to delete spaces object %s: %v", paper.SpacesKey, err)
		}
	}
	return response.NoContent(c)
}

// GetDownloadURL handles GET /api/v1/papers/:id/download
func (h *PaperHandler) GetDownloadURL(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid paper ID")
	}

	var paper model.Paper
	if err := h.db.First(&paper, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Paper not found")
		}
		return response.InternalServerError(c, "Failed to fetch paper")
	}

	if h.spaces == nil || paper.SpacesKey == "" {
		return response.NotFound(c, "Paper has no stored file")
	}

	url, err := h.spaces.PresignedURL(paper.SpacesKey, 15*time.Minute)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate download URL")
	}
	return response.Success(c, fiber.Map{
		"url":        url,
		"expires_in": int((15 * time.Minute).Seconds()),
	})
}

func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
