package database

import (
	"log"

	"gorm.io/gorm"

	"github.com/examtrace/api/model"
)

// Seed creates a demo subject with its modules and exam pattern when the
// database is empty. Idempotent: a non-empty subjects table is left alone.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Subject{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	log.Println("Seeding demo subject...")

	subject := model.Subject{
		Name:           "Disaster Management",
		Code:           "MCN301",
		UniversityType: model.UniversityKTU,
	}

	modules := []struct {
		name     string
		topics   []string
		keywords []string
	}{
		{
			name:     "Hazards and Vulnerability",
			topics:   []string{"Types of disasters", "Hazard classification", "Vulnerability assessment", "Risk concepts"},
			keywords: []string{"disaster", "hazard", "vulnerability", "risk", "natural disaster", "man-made"},
		},
		{
			name:     "Disaster Risk Reduction",
			topics:   []string{"Mitigation strategies", "Preparedness planning", "Early warning systems", "Disaster management cycle"},
			keywords: []string{"mitigation", "preparedness", "prevention", "early warning", "risk reduction"},
		},
		{
			name:     "Institutional Framework",
			topics:   []string{"Disaster Management Act", "NDMA structure", "State and district authorities", "National policy"},
			keywords: []string{"NDMA", "SDMA", "DDMA", "act", "policy", "authority", "framework"},
		},
		{
			name:     "Response and Recovery",
			topics:   []string{"Emergency response", "Relief operations", "Rehabilitation", "Reconstruction"},
			keywords: []string{"response", "relief", "rehabilitation", "recovery", "rescue", "evacuation"},
		},
		{
			name:     "Community-Based Management",
			topics:   []string{"Community participation", "Awareness programs", "Role of NGOs", "Capacity building"},
			keywords: []string{"community", "participation", "awareness", "NGO", "training", "volunteer"},
		},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&subject).Error; err != nil {
			return err
		}

		for i, spec := range modules {
			module := model.Module{
				SubjectID: subject.ID,
				Number:    i + 1,
				Name:      spec.name,
			}
			module.SetTopics(spec.topics)
			module.SetKeywords(spec.keywords)
			if err := tx.Create(&module).Error; err != nil {
				return err
			}
		}

		// Standard KTU mapping: Part A question pairs and Part B question
		// pairs each cover one module in order
		mapping := make(map[string]int)
		for q := 1; q <= 10; q++ {
			mapping[model.PatternKey(q, "A")] = (q + 1) / 2
		}
		for q := 11; q <= 20; q++ {
			mapping[model.PatternKey(q, "B")] = (q - 9) / 2
		}

		pattern := model.ExamPattern{
			SubjectID: subject.ID,
			Name:      "KTU End Semester",
		}
		if err := pattern.SetMapping(mapping); err != nil {
			return err
		}
		if err := tx.Create(&pattern).Error; err != nil {
			return err
		}

		log.Printf("Seeded subject %q with %d modules", subject.Name, len(modules))
		return nil
	})
}
