package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/examtrace/api/model"
)

// Priority tier thresholds: a topic seen in this many distinct exam years
// lands in the corresponding tier.
const (
	tier1MinYears = 4
	tier2MinYears = 3
	tier3MinYears = 2
)

const topicNameMaxLen = 80

// TopicClusteringService rebuilds a subject's topic clusters from its
// classified questions. Clustering is destructive per subject: each run
// clears the previous clusters inside one transaction and rebuilds them.
type TopicClusteringService struct {
	db       *gorm.DB
	embedder *EmbeddingService

	// preSort orders questions longest-first before the greedy pass, which
	// tends to pick fuller texts as cluster representatives. Off by default
	// to keep run-over-run cluster numbering stable with the stored order.
	preSort bool
}

// NewTopicClusteringService creates the clustering service
func NewTopicClusteringService(db *gorm.DB, embedder *EmbeddingService) *TopicClusteringService {
	return &TopicClusteringService{
		db:       db,
		embedder: embedder,
		preSort:  os.Getenv("CLUSTER_PRESORT") == "true",
	}
}

// clusterDraft accumulates member questions while the greedy pass runs
type clusterDraft struct {
	representative SimilarityItem
	moduleID       *uint
	questions      []*model.Question
}

// ClusterSubject rebuilds all topic clusters for a subject and returns the
// number of clusters created. Duplicate questions and questions from
// unprocessed papers are excluded.
func (s *TopicClusteringService) ClusterSubject(ctx context.Context, subjectID uint) (int, error) {
	var questions []model.Question
	err := s.db.WithContext(ctx).
		Joins("JOIN papers ON papers.id = questions.paper_id").
		Where("papers.subject_id = ? AND papers.status = ? AND questions.is_duplicate = ?",
			subjectID, model.PaperCompleted, false).
		Preload("Paper").
		Find(&questions).Error
	if err != nil {
		return 0, fmt.Errorf("loading questions for subject %d: %w", subjectID, err)
	}

	if len(questions) == 0 {
		// Still clear stale clusters from a previous run
		if err := s.replaceClusters(ctx, subjectID, nil); err != nil {
			return 0, err
		}
		return 0, nil
	}

	items := s.buildItems(ctx, questions)

	// Cluster within each module so cross-module topics never merge; the
	// unclassified group clusters on its own.
	groups := make(map[uint][]int)
	var order []uint
	for i := range questions {
		key := uint(0)
		if questions[i].ModuleID != nil {
			key = *questions[i].ModuleID
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	sort.Slice(order, func(a, b int) bool { return order[a] < order[b] })

	var drafts []*clusterDraft
	for _, key := range order {
		drafts = append(drafts, s.clusterGroup(questions, items, groups[key])...)
	}

	clusters := s.buildClusters(subjectID, drafts)
	if err := s.replaceClusters(ctx, subjectID, clusters); err != nil {
		return 0, err
	}

	log.Printf("TopicClusteringService: subject %d: %d questions -> %d clusters", subjectID, len(questions), len(clusters))
	return len(clusters), nil
}

// buildItems prepares the similarity inputs, reusing stored embeddings and
// fetching missing ones in one batch when a backend is available.
func (s *TopicClusteringService) buildItems(ctx context.Context, questions []model.Question) []SimilarityItem {
	items := make([]SimilarityItem, len(questions))
	var missingTexts []string
	var missingIdx []int

	for i := range questions {
		items[i] = SimilarityItem{
			Text:      cleanQuestionText(questions[i].Text),
			Embedding: questions[i].EmbeddingVector(),
		}
		if items[i].Embedding == nil {
			missingTexts = append(missingTexts, items[i].Text)
			missingIdx = append(missingIdx, i)
		}
	}

	if s.embedder != nil && s.embedder.Enabled() && len(missingTexts) > 0 {
		vectors := s.embedder.EmbedBatch(ctx, missingTexts)
		for k, i := range missingIdx {
			items[i].Embedding = vectors[k]
		}
	}
	return items
}

// clusterGroup runs the greedy single-pass clustering over one module's
// questions. Each question joins the earliest-seeded cluster whose
// representative (its first member) scores at or above the clustering
// threshold, or starts a new cluster. First match wins even when a later
// seed scores higher: each seed absorbs every qualifying question before
// the next seed exists.
func (s *TopicClusteringService) clusterGroup(questions []model.Question, items []SimilarityItem, indexes []int) []*clusterDraft {
	if s.preSort {
		sort.SliceStable(indexes, func(a, b int) bool {
			return len(items[indexes[a]].Text) > len(items[indexes[b]].Text)
		})
	}

	var drafts []*clusterDraft
	for _, i := range indexes {
		joined := false
		for d := range drafts {
			if Similarity(items[i], drafts[d].representative) >= ClusteringThreshold {
				drafts[d].questions = append(drafts[d].questions, &questions[i])
				joined = true
				break
			}
		}
		if joined {
			continue
		}
		drafts = append(drafts, &clusterDraft{
			representative: items[i],
			moduleID:       questions[i].ModuleID,
			questions:      []*model.Question{&questions[i]},
		})
	}
	return drafts
}

// buildClusters turns drafts into persistable clusters with repetition stats
func (s *TopicClusteringService) buildClusters(subjectID uint, drafts []*clusterDraft) []*model.TopicCluster {
	clusters := make([]*model.TopicCluster, 0, len(drafts))
	for _, draft := range drafts {
		topicName := extractTopicName(draft.representative.Text)
		cluster := &model.TopicCluster{
			SubjectID:          subjectID,
			ModuleID:           draft.moduleID,
			TopicName:          topicName,
			NormalizedKey:      strings.ToLower(topicName),
			RepresentativeText: draft.representative.Text,
			QuestionCount:      len(draft.questions),
		}

		yearSet := make(map[string]bool)
		for _, q := range draft.questions {
			year := strings.TrimSpace(q.Paper.Year)
			if year == "" {
				// a year-less paper still counts as one distinct sighting
				year = "unknown"
			}
			yearSet[year] = true
			cluster.TotalMarks += q.Marks
			switch strings.ToUpper(q.Part) {
			case "A":
				cluster.PartACount++
			case "B":
				cluster.PartBCount++
			}
		}

		years := make([]string, 0, len(yearSet))
		for year := range yearSet {
			years = append(years, year)
		}
		sort.Strings(years)
		cluster.SetYears(years)
		cluster.CalculatePriorityTier(tier1MinYears, tier2MinYears, tier3MinYears)

		clusters = append(clusters, cluster)
	}
	return clusters
}

// replaceClusters swaps the subject's cluster set in one transaction:
// detach questions, drop old clusters, insert new ones, reattach members.
func (s *TopicClusteringService) replaceClusters(ctx context.Context, subjectID uint, clusters []*model.TopicCluster) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Question{}).
			Where("topic_cluster_id IN (?)",
				tx.Model(&model.TopicCluster{}).Select("id").Where("subject_id = ?", subjectID)).
			Update("topic_cluster_id", nil).Error
		if err != nil {
			return fmt.Errorf("detaching questions: %w", err)
		}

		if err := tx.Unscoped().Where("subject_id = ?", subjectID).Delete(&model.TopicCluster{}).Error; err != nil {
			return fmt.Errorf("clearing clusters: %w", err)
		}

		for i, cluster := range clusters {
			members := cluster.Questions
			cluster.Questions = nil
			if err := tx.Create(cluster).Error; err != nil {
				return fmt.Errorf("creating cluster %d: %w", i, err)
			}

			memberIDs := make([]uint, 0, len(members))
			for _, q := range members {
				memberIDs = append(memberIDs, q.ID)
			}
			if len(memberIDs) > 0 {
				err := tx.Model(&model.Question{}).
					Where("id IN ?", memberIDs).
					Update("topic_cluster_id", cluster.ID).Error
				if err != nil {
					return fmt.Errorf("attaching questions to cluster %d: %w", cluster.ID, err)
				}
			}
		}
		return nil
	})
}

var (
	subPartPrefixRegex = regexp.MustCompile(`(?i)^\(?[a-d]\)\s*`)
	orJoinRegex        = regexp.MustCompile(`(?im)^\s*or\s*$`)

	topicActionVerbs = []string{
		"explain briefly", "write short notes on", "write a short note on",
		"write short note on", "what do you mean by", "what is meant by",
		"explain", "describe", "discuss", "define", "what is", "what are",
		"list", "state", "illustrate", "differentiate between", "compare",
		"derive", "mention", "outline", "briefly",
	}
)

// cleanQuestionText strips structural noise (sub-part prefixes, OR joiners,
// mark annotations) so similarity operates on content words.
func cleanQuestionText(text string) string {
	normalizer := NewTextNormalizer()
	text, _ = normalizer.StripMarkAnnotation(text)
	text = orJoinRegex.ReplaceAllString(text, " ")
	text = subPartPrefixRegex.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// extractTopicName derives a short display name from a representative
// question: leading action verbs stripped, truncated near 80 characters at a
// word boundary, first letter capitalized.
func extractTopicName(text string) string {
	name := cleanQuestionText(text)
	lower := strings.ToLower(name)
	for _, verb := range topicActionVerbs {
		if strings.HasPrefix(lower, verb) {
			name = strings.TrimSpace(name[len(verb):])
			name = strings.TrimLeft(name, ":,.- ")
			break
		}
	}
	if name == "" {
		name = strings.Join(strings.Fields(text), " ")
	}

	if len(name) > topicNameMaxLen {
		cut := strings.LastIndex(name[:topicNameMaxLen], " ")
		if cut <= 0 {
			cut = topicNameMaxLen
		}
		name = name[:cut]
	}
	name = strings.TrimRight(name, ".,;:- ")

	if name == "" {
		return "General"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
