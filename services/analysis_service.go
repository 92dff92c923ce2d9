package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/examtrace/api/model"
)

var (
	// ErrPaperBusy means another analysis of the same paper is running
	ErrPaperBusy = errors.New("paper analysis already in progress")
	// ErrClusteringBusy means a clustering run for the subject is running
	ErrClusteringBusy = errors.New("clustering already in progress for subject")
	// ErrNoText means the paper has no extracted text to analyze
	ErrNoText = errors.New("paper has no extracted text")
)

// Progress checkpoints for the analysis state machine
const (
	progressStarted     = 5
	progressExtracted   = 30
	progressClassifying = 40
	progressClassified  = 60
	progressAnalyzed    = 90
	progressDone        = 100
)

// AnalysisService orchestrates the full pipeline for one paper: extraction,
// classification, semantic analysis, and persistence. Job state lives in
// Postgres and is mirrored to Redis for polling.
type AnalysisService struct {
	db         *gorm.DB
	tracker    *ProgressTracker
	normalizer *TextNormalizer
	extractor  *QuestionExtractor
	classifier *ModuleClassifier
	bloom      *BloomClassifier
	difficulty *DifficultyClassifier
	embedder   *EmbeddingService
	clustering *TopicClusteringService
}

// NewAnalysisService wires the pipeline together. llm and the embedding
// backend inside embedder may be nil; every AI-assisted step has a local
// fallback.
func NewAnalysisService(db *gorm.DB, tracker *ProgressTracker, llm LLMClient, embedder *EmbeddingService, clustering *TopicClusteringService) *AnalysisService {
	return &AnalysisService{
		db:         db,
		tracker:    tracker,
		normalizer: NewTextNormalizer(),
		extractor:  NewQuestionExtractor(),
		classifier: NewModuleClassifier(llm),
		bloom:      NewBloomClassifier(llm),
		difficulty: NewDifficultyClassifier(llm),
		embedder:   embedder,
		clustering: clustering,
	}
}

// StartAnalysis creates an analysis job for a paper and returns it. The
// caller decides whether to run it inline (tests) or via StartAnalysisAsync.
func (s *AnalysisService) StartAnalysis(ctx context.Context, paperID uint) (*model.AnalysisJob, error) {
	var paper model.Paper
	if err := s.db.WithContext(ctx).First(&paper, paperID).Error; err != nil {
		return nil, fmt.Errorf("loading paper %d: %w", paperID, err)
	}
	if paper.RawText == "" {
		return nil, ErrNoText
	}

	if !s.tracker.AcquirePaperLock(ctx, paperID) {
		return nil, ErrPaperBusy
	}

	job := &model.AnalysisJob{
		JobID:        uuid.New().String(),
		PaperID:      paperID,
		Status:       model.AnalysisQueued,
		StatusDetail: "Analysis queued",
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		s.tracker.ReleasePaperLock(ctx, paperID)
		return nil, fmt.Errorf("creating analysis job: %w", err)
	}
	s.tracker.MirrorJob(ctx, job)
	return job, nil
}

// StartAnalysisAsync starts the job and runs the pipeline in a goroutine.
// The run detaches from the request context: a client disconnect must not
// abort a half-written analysis.
func (s *AnalysisService) StartAnalysisAsync(ctx context.Context, paperID uint) (*model.AnalysisJob, error) {
	job, err := s.StartAnalysis(ctx, paperID)
	if err != nil {
		return nil, err
	}

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		defer s.tracker.ReleasePaperLock(runCtx, paperID)

		if err := s.Run(runCtx, job.JobID); err != nil {
			log.Printf("AnalysisService: job %s failed: %v", job.JobID, err)
		}
	}()

	return job, nil
}

// Run executes the pipeline for an existing job. Exported so tests and the
// cron recovery path can run jobs synchronously.
func (s *AnalysisService) Run(ctx context.Context, jobID string) error {
	var job model.AnalysisJob
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return fmt.Errorf("loading job %s: %w", jobID, err)
	}

	var paper model.Paper
	if err := s.db.WithContext(ctx).Preload("Subject").First(&paper, job.PaperID).Error; err != nil {
		return s.fail(ctx, &job, nil, fmt.Errorf("loading paper %d: %w", job.PaperID, err))
	}

	now := time.Now()
	job.StartedAt = &now
	s.update(ctx, &job, model.AnalysisExtracting, progressStarted, "Extracting questions")
	s.updatePaper(ctx, &paper, model.PaperProcessing, "Extracting questions", progressStarted)

	// Phase 1: extraction, with one fallback pass when the structured
	// strategies find nothing
	extracted, err := s.extractor.Extract(paper.RawText)
	if err != nil {
		if !errors.Is(err, ErrNoQuestionsFound) {
			return s.fail(ctx, &job, &paper, fmt.Errorf("extraction: %w", err))
		}
		log.Printf("AnalysisService: job %s: structured extraction empty, trying fallback", jobID)
		extracted, err = s.extractor.ExtractFallback(paper.RawText)
		if err != nil {
			return s.fail(ctx, &job, &paper, fmt.Errorf("extraction: %w", err))
		}
	}
	if len(extracted) == 0 {
		return s.fail(ctx, &job, &paper, ErrNoQuestionsFound)
	}

	job.QuestionsExtracted = len(extracted)
	paper.QuestionsExtracted = len(extracted)
	s.update(ctx, &job, model.AnalysisExtracting, progressExtracted,
		fmt.Sprintf("Extracted %d questions", len(extracted)))

	// Phase 2: classification
	s.update(ctx, &job, model.AnalysisClassifying, progressClassifying, "Classifying questions")
	questions, err := s.classify(ctx, &paper, extracted)
	if err != nil {
		return s.fail(ctx, &job, &paper, fmt.Errorf("classification: %w", err))
	}

	job.QuestionsClassified = countClassified(questions)
	paper.QuestionsClassified = job.QuestionsClassified
	s.update(ctx, &job, model.AnalysisClassifying, progressClassified,
		fmt.Sprintf("Classified %d of %d questions", job.QuestionsClassified, len(questions)))

	// Phase 3: semantic analysis - embeddings plus duplicate detection
	s.update(ctx, &job, model.AnalysisAnalyzing, progressClassified, "Analyzing similarity")
	batchDups := s.analyze(ctx, &paper, questions)
	job.DuplicatesFound = countDuplicates(questions)
	s.update(ctx, &job, model.AnalysisAnalyzing, progressAnalyzed, "Saving results")

	// Phase 4: persist. Re-analysis replaces the paper's question set.
	if err := s.saveQuestions(ctx, paper.ID, questions, batchDups); err != nil {
		return s.fail(ctx, &job, &paper, fmt.Errorf("saving questions: %w", err))
	}

	done := time.Now()
	job.CompletedAt = &done
	s.update(ctx, &job, model.AnalysisCompleted, progressDone, "Analysis complete")

	paper.ProcessedAt = &done
	paper.ProcessingError = ""
	s.updatePaper(ctx, &paper, model.PaperCompleted, "Analysis complete", progressDone)

	log.Printf("AnalysisService: job %s completed: %d questions, %d classified, %d duplicates",
		jobID, job.QuestionsExtracted, job.QuestionsClassified, job.DuplicatesFound)
	return nil
}

// classify builds Question rows with module, type, difficulty and Bloom
// level. KTU-style subjects use the pattern path; everything else runs the
// heuristic batch, which defaults unmatched questions to module 1.
func (s *AnalysisService) classify(ctx context.Context, paper *model.Paper, extracted []ExtractedQuestion) ([]*model.Question, error) {
	subject := &paper.Subject

	var modules []model.Module
	if err := s.db.WithContext(ctx).
		Where("subject_id = ?", subject.ID).
		Order("number ASC").
		Find(&modules).Error; err != nil {
		return nil, fmt.Errorf("loading modules: %w", err)
	}
	moduleByNumber := make(map[int]*model.Module, len(modules))
	for i := range modules {
		moduleByNumber[modules[i].Number] = &modules[i]
	}

	questions := make([]*model.Question, len(extracted))

	if subject.IsKTU() {
		var pattern model.ExamPattern
		var patternPtr *model.ExamPattern
		err := s.db.WithContext(ctx).Where("subject_id = ?", subject.ID).First(&pattern).Error
		if err == nil {
			patternPtr = &pattern
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("loading exam pattern: %w", err)
		}

		for i, eq := range extracted {
			num := s.classifier.ClassifyByPattern(patternPtr, eq.QuestionNumber, eq.Part)
			questions[i] = s.buildQuestion(ctx, paper.ID, eq, moduleByNumber[num])
		}
		return questions, nil
	}

	var rules []model.ClassificationRule
	if err := s.db.WithContext(ctx).
		Where("subject_id = ? AND is_active = ?", subject.ID, true).
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("loading classification rules: %w", err)
	}

	assignments := s.classifier.ClassifyBatch(ctx, extracted, subject, modules, rules)
	for i, eq := range extracted {
		questions[i] = s.buildQuestion(ctx, paper.ID, eq, moduleByNumber[assignments[i]])
	}
	return questions, nil
}

func (s *AnalysisService) buildQuestion(ctx context.Context, paperID uint, eq ExtractedQuestion, module *model.Module) *model.Question {
	q := &model.Question{
		PaperID:        paperID,
		QuestionNumber: eq.QuestionNumber,
		Text:           eq.Text,
		Marks:          eq.Marks,
		Part:           eq.Part,
		QuestionType:   QuestionTypeOf(eq.Text),
		Difficulty:     s.difficulty.Classify(ctx, eq.Text, eq.Marks),
		BloomLevel:     s.bloom.Classify(ctx, eq.Text),
	}
	if module != nil {
		q.ModuleID = &module.ID
	}
	return q
}

// analyze attaches embeddings and flags duplicates, first within the batch,
// then against the subject's previously stored questions. Both checks are
// best-effort: a missing embedding backend degrades to keyword similarity.
// The returned map links within-batch duplicate index to original index;
// those references become real IDs at save time.
func (s *AnalysisService) analyze(ctx context.Context, paper *model.Paper, questions []*model.Question) map[int]int {
	items := make([]SimilarityItem, len(questions))
	texts := make([]string, len(questions))
	for i, q := range questions {
		texts[i] = cleanQuestionText(q.Text)
		items[i] = SimilarityItem{Text: texts[i]}
	}

	if s.embedder != nil && s.embedder.Enabled() {
		vectors := s.embedder.EmbedBatch(ctx, texts)
		for i := range questions {
			questions[i].SetEmbedding(vectors[i])
			items[i].Embedding = vectors[i]
		}
	}

	// Within-batch duplicates point at the earliest occurrence
	batchDups := BatchFindDuplicates(items)
	for dup := range batchDups {
		questions[dup].IsDuplicate = true
	}

	// Cross-paper duplicates against the subject's existing questions
	var existing []model.Question
	err := s.db.WithContext(ctx).
		Joins("JOIN papers ON papers.id = questions.paper_id").
		Where("papers.subject_id = ? AND questions.paper_id <> ? AND questions.is_duplicate = ?",
			paper.SubjectID, paper.ID, false).
		Find(&existing).Error
	if err != nil {
		log.Printf("AnalysisService: loading existing questions for duplicate check: %v", err)
		return batchDups
	}
	if len(existing) == 0 {
		return batchDups
	}

	candidates := make([]SimilarityItem, len(existing))
	for i := range existing {
		candidates[i] = SimilarityItem{
			Text:      cleanQuestionText(existing[i].Text),
			Embedding: existing[i].EmbeddingVector(),
		}
	}
	for i, q := range questions {
		if q.IsDuplicate {
			continue
		}
		if match := FindDuplicate(items[i], candidates); match >= 0 {
			q.IsDuplicate = true
			id := existing[match].ID
			q.DuplicateOf = &id
		}
	}
	return batchDups
}

// saveQuestions replaces the paper's question set in one transaction and
// resolves within-batch duplicate references to real IDs.
func (s *AnalysisService) saveQuestions(ctx context.Context, paperID uint, questions []*model.Question, batchDups map[int]int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("paper_id = ?", paperID).Delete(&model.Question{}).Error; err != nil {
			return fmt.Errorf("clearing previous questions: %w", err)
		}

		for _, q := range questions {
			if err := tx.Create(q).Error; err != nil {
				return fmt.Errorf("creating question %s: %w", q.QuestionNumber, err)
			}
		}

		// Second pass: point within-batch duplicates at their originals
		for dup, orig := range batchDups {
			id := questions[orig].ID
			err := tx.Model(questions[dup]).Update("duplicate_of", id).Error
			if err != nil {
				return fmt.Errorf("linking duplicate question: %w", err)
			}
			questions[dup].DuplicateOf = &id
		}
		return nil
	})
}

// GetJobStatus returns a job's polling payload, preferring the Redis mirror
func (s *AnalysisService) GetJobStatus(ctx context.Context, jobID string) (*model.AnalysisJobStatusResponse, error) {
	if mirrored, err := s.tracker.GetMirroredJob(ctx, jobID); err == nil && mirrored != nil {
		return mirrored, nil
	}

	var job model.AnalysisJob
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	resp := job.ToStatusResponse()
	return &resp, nil
}

// ResetAndReanalyze wipes a paper's questions and runs a fresh analysis
func (s *AnalysisService) ResetAndReanalyze(ctx context.Context, paperID uint) (*model.AnalysisJob, error) {
	var paper model.Paper
	if err := s.db.WithContext(ctx).First(&paper, paperID).Error; err != nil {
		return nil, fmt.Errorf("loading paper %d: %w", paperID, err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("paper_id = ?", paperID).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		return tx.Model(&paper).Updates(map[string]interface{}{
			"status":               model.PaperPending,
			"processing_error":     "",
			"status_detail":        "",
			"questions_extracted":  0,
			"questions_classified": 0,
			"progress_percent":     0,
			"processed_at":         nil,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("resetting paper %d: %w", paperID, err)
	}

	return s.StartAnalysisAsync(ctx, paperID)
}

// ResetSubject wipes every question and cluster of a subject and returns its
// papers to pending, so the whole subject can be re-analyzed from scratch.
func (s *AnalysisService) ResetSubject(ctx context.Context, subjectID uint) error {
	var subject model.Subject
	if err := s.db.WithContext(ctx).First(&subject, subjectID).Error; err != nil {
		return fmt.Errorf("loading subject %d: %w", subjectID, err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paperIDs := tx.Model(&model.Paper{}).Select("id").Where("subject_id = ?", subjectID)
		if err := tx.Unscoped().Where("paper_id IN (?)", paperIDs).Delete(&model.Question{}).Error; err != nil {
			return fmt.Errorf("clearing questions: %w", err)
		}
		if err := tx.Unscoped().Where("subject_id = ?", subjectID).Delete(&model.TopicCluster{}).Error; err != nil {
			return fmt.Errorf("clearing clusters: %w", err)
		}
		err := tx.Model(&model.Paper{}).Where("subject_id = ?", subjectID).Updates(map[string]interface{}{
			"status":               model.PaperPending,
			"processing_error":     "",
			"status_detail":        "",
			"questions_extracted":  0,
			"questions_classified": 0,
			"progress_percent":     0,
			"processed_at":         nil,
		}).Error
		if err != nil {
			return fmt.Errorf("resetting papers: %w", err)
		}
		return nil
	})
}

// TriggerClustering rebuilds a subject's topic clusters under the
// per-subject lock. Returns the cluster count.
func (s *AnalysisService) TriggerClustering(ctx context.Context, subjectID uint) (int, error) {
	if !s.tracker.AcquireClusterLock(ctx, subjectID) {
		return 0, ErrClusteringBusy
	}
	defer s.tracker.ReleaseClusterLock(ctx, subjectID)

	return s.clustering.ClusterSubject(ctx, subjectID)
}

// update persists job progress and mirrors it. Progress never moves
// backwards even when a phase reports a lower checkpoint.
func (s *AnalysisService) update(ctx context.Context, job *model.AnalysisJob, status model.AnalysisJobStatus, progress int, detail string) {
	if progress > job.Progress {
		job.Progress = progress
	}
	job.Status = status
	job.StatusDetail = detail

	if err := s.db.WithContext(ctx).Save(job).Error; err != nil {
		log.Printf("AnalysisService: failed to persist job %s: %v", job.JobID, err)
	}
	s.tracker.MirrorJob(ctx, job)
}

func (s *AnalysisService) updatePaper(ctx context.Context, paper *model.Paper, status model.PaperStatus, detail string, progress int) {
	paper.Status = status
	paper.StatusDetail = detail
	paper.ProgressPercent = progress

	if err := s.db.WithContext(ctx).Save(paper).Error; err != nil {
		log.Printf("AnalysisService: failed to persist paper %d: %v", paper.ID, err)
	}
}

// fail marks both the job and, when known, the paper as failed
func (s *AnalysisService) fail(ctx context.Context, job *model.AnalysisJob, paper *model.Paper, cause error) error {
	now := time.Now()
	job.Status = model.AnalysisFailed
	job.ErrorMessage = cause.Error()
	job.StatusDetail = "Analysis failed"
	job.CompletedAt = &now

	if err := s.db.WithContext(ctx).Save(job).Error; err != nil {
		log.Printf("AnalysisService: failed to persist failed job %s: %v", job.JobID, err)
	}
	s.tracker.MirrorJob(ctx, job)

	if paper != nil {
		paper.ProcessingError = cause.Error()
		s.updatePaper(ctx, paper, model.PaperFailed, "Analysis failed", paper.ProgressPercent)
	}
	return cause
}

func countClassified(questions []*model.Question) int {
	count := 0
	for _, q := range questions {
		if q.ModuleID != nil {
			count++
		}
	}
	return count
}

func countDuplicates(questions []*model.Question) int {
	count := 0
	for _, q := range questions {
		if q.IsDuplicate {
			count++
		}
	}
	return count
}
