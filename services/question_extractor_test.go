package services

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

const ktuPaperText = `APJ ABDUL KALAM TECHNOLOGICAL UNIVERSITY
Third Semester B.Tech Degree Examination, December 2023
Course Code: MCN301
Course Name: DISASTER MANAGEMENT
Max. Marks: 100 Duration: 3 Hours

PART A (Answer all questions, each carries 3 marks)
1. Define hazard and vulnerability with examples.
2. List the different types of natural disasters.
3. What is meant by disaster risk reduction?
4. State the objectives of the Disaster Management Act 2005.
5. Mention the functions of NDMA in disaster management.
6. What is an early warning system in disasters?
7. Define rehabilitation and reconstruction after disasters.
8. List the phases of emergency response operations.
9. What is community based disaster management?
10. Mention the role of NGOs in disaster awareness programs.

PART B (Answer any one full question from each module, each carries 14 marks)
11 a) Explain the disaster management cycle with a neat diagram. (14)
b) Describe the classification of disasters with suitable examples. (14)
12 a) Explain vulnerability assessment and its types in detail. (14)
b) Discuss the factors contributing to disaster risk in India. (14)
13 a) Explain the strategies for disaster mitigation and preparedness. (14)
b) Describe the components of an early warning system. (14)
14 a) Discuss the disaster risk reduction framework in detail. (14)
b) Explain capacity building for disaster preparedness. (14)
15 a) Explain the institutional framework for disaster management in India. (14)
b) Discuss the salient features of the Disaster Management Act 2005. (14)
16 a) Describe the structure and functions of NDMA and SDMA. (14)
b) Explain the national policy on disaster management. (14)
17 a) Explain the phases of emergency response during a disaster. (14)
b) Describe relief and rehabilitation operations with examples. (14)
18 a) Discuss post disaster recovery and reconstruction strategies. (14)
b) Explain the role of medical aid and shelters in disaster response. (14)
19 a) Explain community based disaster management with case studies. (14)
b) Discuss the role of local bodies in disaster preparedness. (14)
20 a) Describe capacity building and training for disaster volunteers. (14)
b) Explain the role of NGOs and stakeholders in disaster awareness. (14)`

func TestExtractKTUPaper(t *testing.T) {
	e := NewQuestionExtractor()

	questions, err := e.Extract(ktuPaperText)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(questions) != 20 {
		t.Fatalf("expected 20 questions, got %d", len(questions))
	}

	for i := 0; i < 10; i++ {
		q := questions[i]
		if q.Part != "A" {
			t.Errorf("question %d: expected Part A, got %q", i+1, q.Part)
		}
		if q.Marks != 3 {
			t.Errorf("question %d: expected 3 marks, got %d", i+1, q.Marks)
		}
	}
	if questions[0].QuestionNumber != "1" {
		t.Errorf("expected first question number 1, got %q", questions[0].QuestionNumber)
	}
	if questions[0].Text != "Define hazard and vulnerability with examples." {
		t.Errorf("unexpected first question text: %q", questions[0].Text)
	}

	for i := 10; i < 20; i++ {
		q := questions[i]
		if q.Part != "B" {
			t.Errorf("question %s: expected Part B, got %q", q.QuestionNumber, q.Part)
		}
		if q.Marks != 14 {
			t.Errorf("question %s: expected 14 marks, got %d", q.QuestionNumber, q.Marks)
		}
		if !strings.Contains(q.Text, "\nOR\n") {
			t.Errorf("question %s: expected OR-joined alternatives, got %q", q.QuestionNumber, q.Text)
		}
		if strings.Contains(q.Text, "(14)") {
			t.Errorf("question %s: mark annotation not stripped: %q", q.QuestionNumber, q.Text)
		}
	}
	if questions[10].QuestionNumber != "11" {
		t.Errorf("expected question number 11, got %q", questions[10].QuestionNumber)
	}
	if questions[19].QuestionNumber != "20" {
		t.Errorf("expected question number 20, got %q", questions[19].QuestionNumber)
	}
}

// OCR output often confuses 1 with l or I and 0 with O in question numbers.
func TestExtractPartBWithOCRConfusedDigits(t *testing.T) {
	paper := `PART B (Answer any one full question from each module, each carries 14 marks)
l1 a) Explain the disaster management cycle with a neat diagram. (14)
b) Describe the classification of disasters with examples. (14)
I2 a) Explain vulnerability assessment and its types in detail. (14)
b) Discuss the factors contributing to disaster risk. (14)
13 a) Explain the strategies for disaster mitigation in detail. (14)
b) Describe the components of an early warning system. (14)
14 a) Discuss the disaster risk reduction framework in detail. (14)
b) Explain capacity building for disaster preparedness. (14)
15 a) Explain the institutional framework for disaster management. (14)
b) Discuss the features of the Disaster Management Act 2005. (14)
16 a) Describe the structure and functions of NDMA and SDMA. (14)
b) Explain the national policy on disaster management. (14)
17 a) Explain the phases of emergency response during a disaster. (14)
b) Describe relief and rehabilitation operations with examples. (14)
18 a) Discuss post disaster recovery and reconstruction strategies. (14)
b) Explain the role of medical aid in disaster response. (14)
19 a) Explain community based disaster management with case studies. (14)
b) Discuss the role of local bodies in disaster preparedness. (14)
2O a) Describe capacity building and training for volunteers. (14)
b) Explain the role of NGOs in disaster awareness. (14)`

	e := NewQuestionExtractor()
	questions, err := e.Extract(paper)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(questions) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(questions))
	}
	if questions[0].QuestionNumber != "11" {
		t.Errorf("expected l1 normalized to 11, got %q", questions[0].QuestionNumber)
	}
	if questions[1].QuestionNumber != "12" {
		t.Errorf("expected I2 normalized to 12, got %q", questions[1].QuestionNumber)
	}
	if questions[9].QuestionNumber != "20" {
		t.Errorf("expected 2O normalized to 20, got %q", questions[9].QuestionNumber)
	}
}

// Part B sections organized by module headings instead of question numbers
// get sequential numbers from 11 and carry the module as a hint.
func TestExtractPartBModuleGrouped(t *testing.T) {
	paper := `PART A (Answer all questions, each carries 3 marks)
1. Define hazard and vulnerability with suitable examples.
2. List the different types of natural disasters in India.

PART B (Answer one full question from each module, each carries 14 marks)
Module 1
a) Explain the disaster management cycle in detail with a neat sketch. (14)
b) Describe various types of natural hazards with examples. (14)
Module 2
a) Explain the strategies for disaster mitigation and preparedness. (14)
b) Discuss the components of an early warning system. (14)`

	e := NewQuestionExtractor()
	questions, err := e.Extract(paper)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	var partB []ExtractedQuestion
	for _, q := range questions {
		if q.Part == "B" {
			partB = append(partB, q)
		}
	}
	if len(partB) != 2 {
		t.Fatalf("expected 2 Part B questions, got %d", len(partB))
	}
	if partB[0].QuestionNumber != "11" || partB[0].ModuleHint != 1 {
		t.Errorf("expected question 11 with module hint 1, got %q hint %d",
			partB[0].QuestionNumber, partB[0].ModuleHint)
	}
	if partB[1].QuestionNumber != "12" || partB[1].ModuleHint != 2 {
		t.Errorf("expected question 12 with module hint 2, got %q hint %d",
			partB[1].QuestionNumber, partB[1].ModuleHint)
	}
	if !strings.Contains(partB[0].Text, "\nOR\n") {
		t.Errorf("expected OR-joined alternatives, got %q", partB[0].Text)
	}
}

func TestExtractLineFallbackWithoutSections(t *testing.T) {
	paper := `MODEL QUESTION PAPER
1. What is a hazard and how is it classified? 3 marks
2. Explain the concept of vulnerability in disaster studies. 3 marks
3. Describe the disaster management cycle in detail. 14 marks
4. Discuss the role of NDMA in disaster management. 14 marks
5. Explain community based disaster management programs. 14 marks
6. What are the phases of emergency response operations? 3 marks`

	e := NewQuestionExtractor()
	questions, err := e.Extract(paper)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(questions) != 6 {
		t.Fatalf("expected 6 questions, got %d", len(questions))
	}
	if questions[0].QuestionNumber != "1" || questions[0].Marks != 3 {
		t.Errorf("unexpected first question: %+v", questions[0])
	}
	if strings.Contains(questions[0].Text, "3 marks") {
		t.Errorf("mark annotation not stripped: %q", questions[0].Text)
	}
}

func TestExtractFailsOnUnstructuredText(t *testing.T) {
	e := NewQuestionExtractor()

	_, err := e.Extract("This document contains no exam questions at all, just prose.")
	if !errors.Is(err, ErrNoQuestionsFound) {
		t.Fatalf("expected ErrNoQuestionsFound, got %v", err)
	}

	_, err = e.Extract("")
	if !errors.Is(err, ErrNoQuestionsFound) {
		t.Fatalf("expected ErrNoQuestionsFound for empty input, got %v", err)
	}
}

// ExtractFallback has no minimum-count gate: two parseable lines suffice.
func TestExtractFallbackAcceptsShortLists(t *testing.T) {
	paper := `1. Define hazard and vulnerability with examples. 3 marks
2. Explain the disaster management cycle briefly. 14 marks`

	e := NewQuestionExtractor()

	if _, err := e.Extract(paper); !errors.Is(err, ErrNoQuestionsFound) {
		t.Fatalf("expected Extract to reject a 2-question unsectioned paper, got %v", err)
	}

	questions, err := e.ExtractFallback(paper)
	if err != nil {
		t.Fatalf("ExtractFallback failed: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[1].QuestionNumber != "2" || questions[1].Marks != 14 {
		t.Errorf("unexpected second question: %+v", questions[1])
	}
}

// Recovery scans run two patterns over the same section; recovered
// questions must still come out in document order.
func TestRecoverPartBKeepsDocumentOrder(t *testing.T) {
	section := `a) 11. Explain the disaster management cycle in Kerala context
12 a) Describe flood routing methods for river basins`

	e := NewQuestionExtractor()
	questions := e.recoverPartB(section, map[string]bool{})

	if len(questions) != 2 {
		t.Fatalf("expected 2 recovered questions, got %d", len(questions))
	}
	if questions[0].QuestionNumber != "11" || questions[1].QuestionNumber != "12" {
		t.Fatalf("recovered out of order: %q then %q",
			questions[0].QuestionNumber, questions[1].QuestionNumber)
	}
	if !strings.HasPrefix(questions[0].Text, "Explain the disaster management cycle") {
		t.Errorf("unexpected text for question 11: %q", questions[0].Text)
	}
	if !strings.HasPrefix(questions[1].Text, "Describe flood routing") {
		t.Errorf("unexpected text for question 12: %q", questions[1].Text)
	}
}

func TestTruncateTextKeepsRuneBoundary(t *testing.T) {
	long := strings.Repeat("x", maxQuestionTextLen-1) + "界"

	got := truncateText(long)
	if len(got) > maxQuestionTextLen {
		t.Fatalf("truncated text too long: %d bytes", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got[len(got)-4:])
	}
	if len(got) != maxQuestionTextLen-1 {
		t.Errorf("expected cut before the split rune, got %d bytes", len(got))
	}
}
