package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/examtrace/api/config"
	"github.com/examtrace/api/model"
)

// PostgreSQLStore is a raw database/sql connection used for the read-heavy
// reporting queries that don't fit the ORM well. It shares the database with
// the GORM store but keeps its own pool.
type PostgreSQLStore struct {
	db *sql.DB
}

// Start opens the raw PostgreSQL connection for reporting
func Start() (*PostgreSQLStore, error) {
	getEnv, err := config.Get()
	if err != nil {
		return nil, err
	}

	connectStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv.DB_HOST, getEnv.DB_PORT, getEnv.DB_USER_NAME, getEnv.DB_PASSWORD, getEnv.DB_NAME, getEnv.DB_SSL_MODE)

	db, err := sql.Open("postgres", connectStr)
	if err != nil {
		log.Println("Unable to open raw PostgreSQL connection:", err)
		return nil, err
	}

	log.Println("Successfully connected raw PostgreSQL reporting store.")
	return &PostgreSQLStore{db: db}, nil
}

// Close closes the raw connection
func (s *PostgreSQLStore) Close() error {
	log.Println("Closing raw PostgreSQL connection...")
	return s.db.Close()
}

// HealthCheck verifies the connection is alive
func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}

// TopicReportRow is one cluster row of the priority report
type TopicReportRow struct {
	ClusterID      uint     `json:"cluster_id"`
	TopicName      string   `json:"topic_name"`
	ModuleNumber   *int     `json:"module_number,omitempty"`
	ModuleName     string   `json:"module_name,omitempty"`
	FrequencyCount int      `json:"frequency_count"`
	QuestionCount  int      `json:"question_count"`
	TotalMarks     int      `json:"total_marks"`
	YearsAppeared  []string `json:"years_appeared"`
	PartACount     int      `json:"part_a_count"`
	PartBCount     int      `json:"part_b_count"`
}

// TierReport groups the report rows of one priority tier
type TierReport struct {
	Tier   model.PriorityTier `json:"tier"`
	Label  string             `json:"label"`
	Topics []TopicReportRow   `json:"topics"`
}

// PriorityReport is the study-priority report for a subject: every topic
// cluster grouped by tier, highest priority first.
type PriorityReport struct {
	SubjectID   uint         `json:"subject_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	TopicCount  int          `json:"topic_count"`
	Tiers       []TierReport `json:"tiers"`
}

// PriorityReport builds the report straight from SQL. Ordering: tier
// ascending (tier_1 sorts first), then frequency and marks descending
// within a tier.
func (s *PostgreSQLStore) PriorityReport(ctx context.Context, subjectID uint) (*PriorityReport, error) {
	const query = `
		SELECT tc.id, tc.topic_name, tc.priority_tier,
		       tc.frequency_count, tc.question_count, tc.total_marks,
		       COALESCE(tc.years_appeared::text, '[]'),
		       tc.part_a_count, tc.part_b_count,
		       m.number, COALESCE(m.name, '')
		FROM topic_clusters tc
		LEFT JOIN modules m ON m.id = tc.module_id
		WHERE tc.subject_id = $1 AND tc.deleted_at IS NULL
		ORDER BY tc.priority_tier ASC, tc.frequency_count DESC, tc.total_marks DESC`

	rows, err := s.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("querying priority report: %w", err)
	}
	defer rows.Close()

	report := &PriorityReport{
		SubjectID:   subjectID,
		GeneratedAt: time.Now().UTC(),
	}

	tierIndex := make(map[model.PriorityTier]int)
	for rows.Next() {
		var row TopicReportRow
		var tier string
		var yearsJSON string
		var moduleNumber sql.NullInt64
		var moduleName string

		err := rows.Scan(&row.ClusterID, &row.TopicName, &tier,
			&row.FrequencyCount, &row.QuestionCount, &row.TotalMarks,
			&yearsJSON, &row.PartACount, &row.PartBCount,
			&moduleNumber, &moduleName)
		if err != nil {
			return nil, fmt.Errorf("scanning priority report row: %w", err)
		}

		if moduleNumber.Valid {
			num := int(moduleNumber.Int64)
			row.ModuleNumber = &num
			row.ModuleName = moduleName
		}
		if err := json.Unmarshal([]byte(yearsJSON), &row.YearsAppeared); err != nil {
			row.YearsAppeared = nil
		}
		if row.YearsAppeared == nil {
			row.YearsAppeared = []string{}
		}

		tierKey := model.PriorityTier(tier)
		idx, ok := tierIndex[tierKey]
		if !ok {
			report.Tiers = append(report.Tiers, TierReport{
				Tier:  tierKey,
				Label: tierKey.TierLabel(),
			})
			idx = len(report.Tiers) - 1
			tierIndex[tierKey] = idx
		}
		report.Tiers[idx].Topics = append(report.Tiers[idx].Topics, row)
		report.TopicCount++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading priority report rows: %w", err)
	}

	return report, nil
}
