package subject

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/examtrace/api/model"
	"github.com/examtrace/api/services"
	"github.com/examtrace/api/utils/response"
	"github.com/examtrace/api/utils/validation"
)

// SubjectHandler handles subject, module, exam pattern and rule requests
type SubjectHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewSubjectHandler creates a new subject handler
func NewSubjectHandler(db *gorm.DB) *SubjectHandler {
	return &SubjectHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateSubjectRequest is the payload for creating or updating a subject
type CreateSubjectRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=255"`
	Code           string `json:"code" validate:"max=50"`
	UniversityType string `json:"university_type" validate:"omitempty,oneof=KTU OTHER"`
	SyllabusText   string `json:"syllabus_text"`
}

// ModuleRequest describes one module in a module-list replacement
type ModuleRequest struct {
	Number   int      `json:"number" validate:"required,gte=1,lte=20"`
	Name     string   `json:"name" validate:"required,min=2,max=255"`
	Topics   []string `json:"topics"`
	Keywords []string `json:"keywords"`
}

// RuleRequest is the payload for creating a classification rule
type RuleRequest struct {
	Name         string            `json:"name" validate:"required,min=2,max=255"`
	ModuleNumber int               `json:"module_number" validate:"required,gte=1"`
	Expression   services.RuleExpr `json:"expression" validate:"required"`
}

// ListSubjects handles GET /api/v1/subjects
func (h *SubjectHandler) ListSubjects(c *fiber.Ctx) error {
	var subjects []model.Subject
	if err := h.db.Order("name ASC").Find(&subjects).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch subjects")
	}
	return response.Success(c, fiber.Map{
		"subjects": subjects,
		"total":    len(subjects),
	})
}

// GetSubject handles GET /api/v1/subjects/:id
func (h *SubjectHandler) GetSubject(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var subject model.Subject
	err = h.db.Preload("Modules", func(db *gorm.DB) *gorm.DB {
		return db.Order("modules.number ASC")
	}).Preload("ExamPattern").First(&subject, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	return response.Success(c, subject)
}

// CreateSubject handles POST /api/v1/subjects
func (h *SubjectHandler) CreateSubject(c *fiber.Ctx) error {
	var req CreateSubjectRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	universityType := model.UniversityType(req.UniversityType)
	if universityType == "" {
		universityType = model.UniversityKTU
	}

	subject := model.Subject{
		Name:           validation.SanitizeString(req.Name),
		Code:           validation.SanitizeString(req.Code),
		UniversityType: universityType,
		SyllabusText:   req.SyllabusText,
	}
	if err := h.db.Create(&subject).Error; err != nil {
		return response.InternalServerError(c, "Failed to create subject")
	}

	return response.Created(c, subject)
}

// UpdateSubject handles PUT /api/v1/subjects/:id
func (h *SubjectHandler) UpdateSubject(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var subject model.Subject
	if err := h.db.First(&subject, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	var req CreateSubjectRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	subject.Name = validation.SanitizeString(req.Name)
	subject.Code = validation.SanitizeString(req.Code)
	if req.UniversityType != "" {
		subject.UniversityType = model.UniversityType(req.UniversityType)
	}
	subject.SyllabusText = req.SyllabusText

	if err := h.db.Save(&subject).Error; err != nil {
		return response.InternalServerError(c, "Failed to update subject")
	}
	return response.Success(c, subject)
}

// DeleteSubject handles DELETE /api/v1/subjects/:id
func (h *SubjectHandler) DeleteSubject(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	result := h.db.Delete(&model.Subject{}, id)
	if result.Error != nil {
		return response.InternalServerError(c, "Failed to delete subject")
	}
	if result.RowsAffected == 0 {
		return response.NotFound(c, "Subject not found")
	}
	return response.NoContent(c)
}

// ReplaceModules handles PUT /api/v1/subjects/:id/modules.
// The full module list is replaced; module numbers must be unique.
func (h *SubjectHandler) ReplaceModules(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var subject model.Subject
	if err := h.db.First(&subject, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	var reqs []ModuleRequest
	if err := c.BodyParser(&reqs); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if len(reqs) == 0 {
		return response.BadRequest(c, "At least one module is required")
	}

	seen := make(map[int]bool)
	for _, req := range reqs {
		if err := h.validator.ValidateStruct(req); err != nil {
			return response.ValidationError(c, err)
		}
		if seen[req.Number] {
			return response.BadRequest(c, "Duplicate module number")
		}
		seen[req.Number] = true
	}

	var modules []model.Module
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("subject_id = ?", subject.ID).Delete(&model.Module{}).Error; err != nil {
			return err
		}
		for _, req := range reqs {
			module := model.Module{
				SubjectID: subject.ID,
				Number:    req.Number,
				Name:      validation.SanitizeString(req.Name),
			}
			module.SetTopics(req.Topics)
			module.SetKeywords(req.Keywords)
			if err := tx.Create(&module).Error; err != nil {
				return err
			}
			modules = append(modules, module)
		}
		return nil
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to replace modules")
	}

	return response.Success(c, fiber.Map{
		"modules": modules,
		"total":   len(modules),
	})
}

// PutExamPattern handles PUT /api/v1/subjects/:id/exam-pattern
func (h *SubjectHandler) PutExamPattern(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var subject model.Subject
	if err := h.db.First(&subject, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	var req struct {
		Name    string         `json:"name"`
		Mapping map[string]int `json:"mapping"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if len(req.Mapping) == 0 {
		return response.BadRequest(c, "Mapping is required")
	}

	var pattern model.ExamPattern
	err = h.db.Where("subject_id = ?", subject.ID).First(&pattern).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return response.InternalServerError(c, "Failed to fetch exam pattern")
	}

	pattern.SubjectID = subject.ID
	pattern.Name = validation.SanitizeString(req.Name)
	if err := pattern.SetMapping(req.Mapping); err != nil {
		return response.BadRequest(c, "Invalid mapping")
	}

	if err := h.db.Save(&pattern).Error; err != nil {
		return response.InternalServerError(c, "Failed to save exam pattern")
	}
	return response.Success(c, pattern)
}

// ListRules handles GET /api/v1/subjects/:id/rules
func (h *SubjectHandler) ListRules(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var rules []model.ClassificationRule
	if err := h.db.Where("subject_id = ?", id).Order("id ASC").Find(&rules).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch rules")
	}
	return response.Success(c, fiber.Map{
		"rules": rules,
		"total": len(rules),
	})
}

// CreateRule handles POST /api/v1/subjects/:id/rules.
// The rule expression is validated structurally before it is stored, so a
// malformed rule fails here rather than silently during classification.
func (h *SubjectHandler) CreateRule(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}

	var subject model.Subject
	if err := h.db.First(&subject, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Subject not found")
		}
		return response.InternalServerError(c, "Failed to fetch subject")
	}

	var req RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if err := req.Expression.Validate(); err != nil {
		return response.BadRequest(c, "Invalid rule expression: "+err.Error())
	}

	var moduleCount int64
	h.db.Model(&model.Module{}).
		Where("subject_id = ? AND number = ?", subject.ID, req.ModuleNumber).
		Count(&moduleCount)
	if moduleCount == 0 {
		return response.BadRequest(c, "Rule targets a module number the subject does not have")
	}

	rule := model.ClassificationRule{
		SubjectID:    subject.ID,
		Name:         validation.SanitizeString(req.Name),
		ModuleNumber: req.ModuleNumber,
		IsActive:     true,
	}
	expr, err := encodeRuleExpr(&req.Expression)
	if err != nil {
		return response.BadRequest(c, "Invalid rule expression")
	}
	rule.Expression = expr

	if err := h.db.Create(&rule).Error; err != nil {
		return response.InternalServerError(c, "Failed to create rule")
	}
	return response.Created(c, rule)
}

// DeleteRule handles DELETE /api/v1/subjects/:id/rules/:rule_id
func (h *SubjectHandler) DeleteRule(c *fiber.Ctx) error {
	subjectID, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid subject ID")
	}
	ruleID, err := parseID(c, "rule_id")
	if err != nil {
		return response.BadRequest(c, "Invalid rule ID")
	}

	result := h.db.Where("subject_id = ?", subjectID).Delete(&model.ClassificationRule{}, ruleID)
	if result.Error != nil {
		return response.InternalServerError(c, "Failed to delete rule")
	}
	if result.RowsAffected == 0 {
		return response.NotFound(c, "Rule not found")
	}
	return response.NoContent(c)
}

func encodeRuleExpr(expr *services.RuleExpr) (datatypes.JSON, error) {
	data, err := json.Marshal(expr)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
